package fs

import (
	"errors"
	"fmt"

	"github.com/jobala/petrosql/storage/disk"
)

var (
	ErrNotFormatted   = errors.New("backing store is not formatted")
	ErrCorrupt        = errors.New("filesystem structure is corrupt")
	ErrTooManyStreams = errors.New("stream table is full")
	ErrNameTooLong    = errors.New("stream name too long")
	ErrEmptyName      = errors.New("stream name is empty")
	ErrClosed         = errors.New("stream handle is closed")
)

// Format writes an empty root page. It must run exactly once on a fresh
// backing before New.
func Format(backing disk.Backing) error {
	root := make([]byte, disk.PAGE_SIZE)
	if _, err := backing.WriteAt(root, 0); err != nil {
		return fmt.Errorf("formatting root page: %w", err)
	}

	return backing.Sync()
}

// New loads the stream table of a formatted backing. The filesystem owns
// the backing from here on and closes it in Close.
func New(backing disk.Backing) (*Filesystem, error) {
	if backing.Size() < disk.PAGE_SIZE {
		return nil, ErrNotFormatted
	}

	f := &Filesystem{backing: backing}
	if err := readRecord(backing, 0, &f.header); err != nil {
		return nil, err
	}

	if f.header.StreamCount > MAX_STREAMS {
		return nil, fmt.Errorf("%w: stream count %d", ErrNotFormatted, f.header.StreamCount)
	}

	for i := uint64(0); i < f.header.StreamCount; i++ {
		stream := &streamHeader{}
		if err := readRecord(backing, streamSlotOffset(i), stream); err != nil {
			return nil, err
		}
		f.streams = append(f.streams, stream)
	}

	return f, nil
}

// Open returns a handle positioned at the start of the named stream. A
// missing stream is created when create is set; otherwise the returned
// handle is not open. Not finding a stream is never an error.
func (f *Filesystem) Open(name string, create bool) (*Handle, error) {
	for _, stream := range f.streams {
		if stream.name() == name {
			return f.newHandle(stream)
		}
	}

	if !create {
		return &Handle{}, nil
	}

	stream, err := f.create(name)
	if err != nil {
		return nil, err
	}

	return f.newHandle(stream)
}

// Streams lists stream names in creation order.
func (f *Filesystem) Streams() []string {
	names := make([]string, 0, len(f.streams))
	for _, stream := range f.streams {
		names = append(names, stream.name())
	}

	return names
}

// Close persists every stream header and the stream count, then closes the
// backing.
func (f *Filesystem) Close() error {
	if f.backing == nil {
		return nil
	}

	for _, stream := range f.streams {
		if err := writeRecord(f.backing, streamSlotOffset(stream.ID), stream); err != nil {
			return err
		}
	}

	if err := writeRecord(f.backing, 0, &f.header); err != nil {
		return err
	}

	err := f.backing.Close()
	f.backing = nil
	return err
}

func (f *Filesystem) create(name string) (*streamHeader, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	if len(name) > MAX_NAME_LENGTH {
		return nil, fmt.Errorf("%w: %q is %d bytes, max %d", ErrNameTooLong, name, len(name), MAX_NAME_LENGTH)
	}

	if f.header.StreamCount >= MAX_STREAMS {
		return nil, ErrTooManyStreams
	}

	first, err := f.allocPage(0)
	if err != nil {
		return nil, err
	}

	stream := &streamHeader{FirstPage: first, ID: f.header.StreamCount}
	copy(stream.Name[:], name)

	if err := writeRecord(f.backing, streamSlotOffset(stream.ID), stream); err != nil {
		return nil, err
	}

	f.header.StreamCount++
	if err := writeRecord(f.backing, 0, &f.header); err != nil {
		return nil, err
	}

	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *Filesystem) newHandle(stream *streamHeader) (*Handle, error) {
	h := &Handle{fs: f, stream: stream, cursor: PAGE_HEADER_SIZE}
	if err := f.readPageHeader(stream.FirstPage, &h.page); err != nil {
		return nil, err
	}

	return h, nil
}

// allocPage appends an empty page linked back to previous and returns its
// index.
func (f *Filesystem) allocPage(previous uint64) (uint64, error) {
	size := f.backing.Size()
	index := uint64((size + disk.PAGE_SIZE - 1) / disk.PAGE_SIZE)

	page := make([]byte, disk.PAGE_SIZE)
	if _, err := f.backing.WriteAt(page, pageOffset(index)); err != nil {
		return 0, err
	}

	header := pageHeader{
		PageLength:   PAGE_HEADER_SIZE,
		PreviousPage: previous,
		CurrentPage:  index,
	}
	if err := f.writePageHeader(&header); err != nil {
		return 0, err
	}

	return index, nil
}

func (f *Filesystem) readPageHeader(index uint64, header *pageHeader) error {
	if index == 0 {
		return fmt.Errorf("%w: page link to the root page", ErrCorrupt)
	}

	return readRecord(f.backing, pageOffset(index), header)
}

func (f *Filesystem) writePageHeader(header *pageHeader) error {
	return writeRecord(f.backing, pageOffset(header.CurrentPage), header)
}

// Filesystem multiplexes named streams over one backing store. Page 0
// holds the stream table, every other page belongs to exactly one stream's
// doubly linked chain.
type Filesystem struct {
	backing disk.Backing
	header  fileHeader
	streams []*streamHeader
}
