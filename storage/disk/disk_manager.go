package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const PAGE_SIZE = 4096

var ErrIO = errors.New("i/o error")

// Backing is the linear byte store a paged filesystem is laid over.
type Backing interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
	Sync() error
	Close() error
}

// OpenFile opens the database file at path. When create is set a missing
// file is created and an existing one is truncated.
func OpenFile(path string, create bool) (*FileBacking, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE | os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}

	return NewFileBacking(file)
}

func NewFileBacking(file *os.File) (*FileBacking, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, file.Name(), err)
	}

	return &FileBacking{
		dbFile: file,
		size:   info.Size(),
	}, nil
}

func (fb *FileBacking) ReadAt(p []byte, off int64) (int, error) {
	n, err := fb.dbFile.ReadAt(p, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: reading %d bytes at offset %d: %v", ErrIO, len(p), off, err)
	}

	return n, err
}

func (fb *FileBacking) WriteAt(p []byte, off int64) (int, error) {
	n, err := fb.dbFile.WriteAt(p, off)
	if err != nil {
		return n, fmt.Errorf("%w: writing %d bytes at offset %d: %v", ErrIO, len(p), off, err)
	}

	if end := off + int64(n); end > fb.size {
		fb.size = end
	}

	return n, nil
}

func (fb *FileBacking) Size() int64 {
	return fb.size
}

func (fb *FileBacking) Sync() error {
	if err := fb.dbFile.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrIO, err)
	}

	return nil
}

func (fb *FileBacking) Close() error {
	if fb.dbFile == nil {
		return nil
	}

	syncErr := fb.dbFile.Sync()
	closeErr := fb.dbFile.Close()
	fb.dbFile = nil

	return errors.Join(syncErr, closeErr)
}

type FileBacking struct {
	dbFile *os.File
	size   int64
}
