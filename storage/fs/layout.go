package fs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jobala/petrosql/storage/disk"
)

const (
	FILE_HEADER_SIZE   = 8
	STREAM_HEADER_SIZE = 40
	PAGE_HEADER_SIZE   = 32
	PAGE_DATA_SIZE     = disk.PAGE_SIZE - PAGE_HEADER_SIZE
	MAX_NAME_LENGTH    = 16
	MAX_STREAMS        = (disk.PAGE_SIZE - FILE_HEADER_SIZE) / STREAM_HEADER_SIZE
)

// PageLength is the in-page offset one past the last valid byte, so an
// empty page has PageLength == PAGE_HEADER_SIZE.
type pageHeader struct {
	PageLength   uint64
	PreviousPage uint64
	CurrentPage  uint64
	NextPage     uint64
}

type streamHeader struct {
	Name      [MAX_NAME_LENGTH]byte
	FirstPage uint64
	Size      uint64
	ID        uint64
}

type fileHeader struct {
	StreamCount uint64
}

func (s *streamHeader) name() string {
	return string(bytes.TrimRight(s.Name[:], "\x00"))
}

func pageOffset(page uint64) int64 {
	return int64(page) * disk.PAGE_SIZE
}

func streamSlotOffset(id uint64) int64 {
	return FILE_HEADER_SIZE + int64(id)*STREAM_HEADER_SIZE
}

func writeRecord(backing disk.Backing, off int64, record any) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, record); err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	_, err := backing.WriteAt(buf.Bytes(), off)
	return err
}

func readRecord(backing disk.Backing, off int64, record any) error {
	data := make([]byte, binary.Size(record))
	if n, err := backing.ReadAt(data, off); n != len(data) {
		return fmt.Errorf("%w: short read of %d bytes at offset %d: %v", ErrCorrupt, n, off, err)
	}

	return binary.Read(bytes.NewReader(data), binary.LittleEndian, record)
}
