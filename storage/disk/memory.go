package disk

import "io"

func NewMemoryBacking() *MemoryBacking {
	return &MemoryBacking{}
}

func (mb *MemoryBacking) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(mb.data)) {
		return 0, io.EOF
	}

	n := copy(p, mb.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (mb *MemoryBacking) WriteAt(p []byte, off int64) (int, error) {
	if end := off + int64(len(p)); end > int64(len(mb.data)) {
		if end > int64(cap(mb.data)) {
			grown := make([]byte, end, 2*end)
			copy(grown, mb.data)
			mb.data = grown
		} else {
			mb.data = mb.data[:end]
		}
	}

	return copy(mb.data[off:], p), nil
}

func (mb *MemoryBacking) Size() int64 {
	return int64(len(mb.data))
}

func (mb *MemoryBacking) Sync() error  { return nil }
func (mb *MemoryBacking) Close() error { return nil }

// MemoryBacking keeps the whole store in a growable byte slice.
type MemoryBacking struct {
	data []byte
}
