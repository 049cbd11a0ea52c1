package buffer

import (
	"fmt"

	"github.com/jobala/petrosql/storage/fs"
)

const (
	DEFAULT_CAPACITY = 64
	replacerK        = 2
)

// Create writes a fresh header to an empty stream and returns a store over
// it.
func Create(handle *fs.Handle, capacity int) (*NodeStore, error) {
	store := NewNodeStore(handle, capacity)
	store.header = header{NextNodeID: 1}
	if err := store.writeHeader(); err != nil {
		return nil, err
	}

	return store, nil
}

// Open reads the header of a stream previously set up by Create.
func Open(handle *fs.Handle, capacity int) (*NodeStore, error) {
	store := NewNodeStore(handle, capacity)

	data := make([]byte, HEADER_SIZE)
	if err := store.readAt(data, 0); err != nil {
		return nil, fmt.Errorf("reading node store header: %w", err)
	}

	var h header
	if err := decodeHeader(data, &h); err != nil {
		return nil, err
	}
	if h.NextNodeID == 0 {
		return nil, fmt.Errorf("%w: next node id is 0", ErrCorrupt)
	}

	store.header = h
	return store, nil
}

func NewNodeStore(handle *fs.Handle, capacity int) *NodeStore {
	if capacity <= 0 {
		capacity = DEFAULT_CAPACITY
	}

	frames := make([]*frame, capacity)
	freeFrames := make([]int, capacity)
	for i := 0; i < capacity; i++ {
		frames[i] = &frame{id: i, node: &Node{}}
		freeFrames[i] = i
	}

	return &NodeStore{
		handle:     handle,
		frames:     frames,
		nodeTable:  make(map[uint64]int),
		replacer:   newReplacer(replacerK),
		freeFrames: freeFrames,
	}
}

// Alloc reserves the next node id, writes a zeroed record for it and
// returns it pinned.
func (s *NodeStore) Alloc() (*NodePtr, error) {
	if s.err != nil {
		return nil, s.err
	}

	id := s.header.NextNodeID
	s.header.NextNodeID++
	if err := s.writeHeader(); err != nil {
		return nil, err
	}

	frame := s.getFrame(id)
	frame.node.ID = id
	if err := s.flush(frame); err != nil {
		return nil, err
	}

	if s.onAlloc != nil {
		s.onAlloc()
	}

	return NewNodePtr(frame, s), nil
}

// Load pins the node with the given id. Loading an id that is already
// pinned returns a guard over the same record.
func (s *NodeStore) Load(id uint64) (*NodePtr, error) {
	if s.err != nil {
		return nil, s.err
	}

	if id == 0 || id >= s.header.NextNodeID {
		return nil, fmt.Errorf("%w: id %d", ErrNodeNotFound, id)
	}

	if fid, ok := s.nodeTable[id]; ok {
		frame := s.frames[fid]
		frame.pin()
		s.replacer.access(frame.id)
		s.replacer.setEvictable(frame.id, false)
		return NewNodePtr(frame, s), nil
	}

	data := make([]byte, RECORD_SIZE)
	if err := s.readAt(data, recordOffset(id)); err != nil {
		return nil, fmt.Errorf("%w: id %d: %v", ErrNodeNotFound, id, err)
	}

	frame := s.getFrame(id)
	if err := frame.node.decode(data); err != nil {
		s.release(frame)
		return nil, fmt.Errorf("%w: decoding node %d: %v", ErrCorrupt, id, err)
	}

	return NewNodePtr(frame, s), nil
}

func (s *NodeStore) Root() uint64 {
	return s.header.Root
}

func (s *NodeStore) Height() uint64 {
	return s.header.Height
}

func (s *NodeStore) SetRoot(id uint64) error {
	s.header.Root = id
	return s.writeHeader()
}

func (s *NodeStore) SetHeight(height uint64) error {
	s.header.Height = height
	return s.writeHeader()
}

// SetAllocHook registers fn to run after every successful Alloc.
func (s *NodeStore) SetAllocHook(fn func()) {
	s.onAlloc = fn
}

// Close writes back every cached node and the header. Guards still pinned
// at this point are written too, but stay usable only until the handle is
// closed by its owner.
func (s *NodeStore) Close() error {
	for _, frame := range s.frames {
		if _, ok := s.nodeTable[frame.nodeId]; ok && frame.dirty {
			if err := s.flush(frame); err != nil {
				return err
			}
		}
	}

	if err := s.writeHeader(); err != nil {
		return err
	}

	return s.err
}

// getFrame finds a frame for id, taking a free one, then an evicted one,
// and growing the pool when every frame is pinned. The frame comes back
// pinned.
func (s *NodeStore) getFrame(id uint64) *frame {
	var f *frame

	if len(s.freeFrames) > 0 {
		fid := s.freeFrames[0]
		f = s.frames[fid]
		s.freeFrames = s.freeFrames[1:]
	} else if fid, ok := s.replacer.victim(); ok {
		f = s.frames[fid]
		if f.dirty {
			if err := s.flush(f); err != nil && s.err == nil {
				s.err = err
			}
		}
		delete(s.nodeTable, f.nodeId)
	} else {
		f = &frame{id: len(s.frames)}
		s.frames = append(s.frames, f)
	}

	f.reset(id)
	f.pin()
	s.nodeTable[id] = f.id

	s.replacer.access(f.id)
	s.replacer.setEvictable(f.id, false)
	return f
}

// release returns a frame that never made it to a caller to the free list.
func (s *NodeStore) release(frame *frame) {
	delete(s.nodeTable, frame.nodeId)
	s.replacer.forget(frame.id)
	s.freeFrames = append(s.freeFrames, frame.id)
}

// flush writes the frame's node back to its slot.
func (s *NodeStore) flush(frame *frame) error {
	data, err := frame.node.encode()
	if err != nil {
		return err
	}

	if err := s.writeAt(data, recordOffset(frame.nodeId)); err != nil {
		return fmt.Errorf("writing node %d: %w", frame.nodeId, err)
	}

	frame.dirty = false
	return nil
}

func (s *NodeStore) writeHeader() error {
	data, err := encodeHeader(&s.header)
	if err != nil {
		return err
	}

	if err := s.writeAt(data, 0); err != nil {
		return fmt.Errorf("writing node store header: %w", err)
	}

	return nil
}

func (s *NodeStore) readAt(data []byte, off uint64) error {
	if pos, err := s.handle.Seek(off); err != nil {
		return err
	} else if pos != off {
		return fmt.Errorf("offset %d is past the end of the stream", off)
	}

	n, err := s.handle.Read(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("short read of %d bytes at offset %d", n, off)
	}

	return nil
}

func (s *NodeStore) writeAt(data []byte, off uint64) error {
	if pos, err := s.handle.Seek(off); err != nil {
		return err
	} else if pos != off {
		return fmt.Errorf("%w: offset %d is past the end of the stream", ErrCorrupt, off)
	}

	_, err := s.handle.Write(data)
	return err
}

// NodeStore maps node ids to records in one stream, keeping pinned nodes
// and recently released ones cached in frames. A node is written back when
// its last guard is dropped.
type NodeStore struct {
	handle     *fs.Handle
	header     header
	frames     []*frame
	nodeTable  map[uint64]int
	replacer   *replacer
	freeFrames []int
	onAlloc    func()
	err        error
}
