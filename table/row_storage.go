package table

import (
	"encoding/binary"
	"fmt"

	"github.com/jobala/petrosql/storage/fs"
	"github.com/jobala/petrosql/types"
)

const (
	ROW_HEADER_SIZE = 16
	COLUMN_SIZE     = 16
)

// NewRowStorage stores rows of the given shape in two streams: index holds
// one fixed-size record per row, data holds string bytes.
func NewRowStorage(meta TableMetadata, index, data *fs.Handle) *RowStorage {
	return &RowStorage{
		meta:       meta,
		index:      index,
		data:       data,
		recordSize: ROW_HEADER_SIZE + COLUMN_SIZE*uint64(len(meta.Columns)),
	}
}

// Count is the number of slots ever written, dead ones included.
func (r *RowStorage) Count() uint64 {
	return r.index.Size() / r.recordSize
}

// Store appends row and returns its slot.
func (r *RowStorage) Store(row types.Row) (uint64, error) {
	slot := r.Count()
	if err := r.write(slot, row); err != nil {
		return 0, err
	}

	return slot, nil
}

func (r *RowStorage) Load(slot uint64) (types.Row, error) {
	record, err := r.readRecord(slot)
	if err != nil {
		return nil, err
	}

	if binary.LittleEndian.Uint64(record[8:16]) == 0 {
		return nil, fmt.Errorf("%w: slot %d was erased", ErrRowNotFound, slot)
	}

	row := make(types.Row, len(r.meta.Columns))
	for i, col := range r.meta.Columns {
		field := record[ROW_HEADER_SIZE+i*COLUMN_SIZE:]
		switch col.Type {
		case types.INT:
			row[i] = types.Int(int64(binary.LittleEndian.Uint64(field[:8])))
		case types.STRING:
			off := binary.LittleEndian.Uint64(field[:8])
			length := binary.LittleEndian.Uint64(field[8:16])
			str, err := r.readString(off, length)
			if err != nil {
				return nil, err
			}
			row[i] = types.String(str)
		}
	}

	return row, nil
}

// Update rewrites the row in slot. Strings that changed are appended to the
// data stream; the old bytes are left behind.
func (r *RowStorage) Update(slot uint64, row types.Row) error {
	if slot >= r.Count() {
		return fmt.Errorf("%w: slot %d", ErrRowNotFound, slot)
	}

	return r.write(slot, row)
}

// Erase marks the slot dead. Slots are never reused.
func (r *RowStorage) Erase(slot uint64) error {
	record, err := r.readRecord(slot)
	if err != nil {
		return err
	}

	binary.LittleEndian.PutUint64(record[8:16], 0)
	return r.writeAt(r.index, slot*r.recordSize, record)
}

func (r *RowStorage) Close() error {
	return closeAll(r.index, r.data)
}

func (r *RowStorage) write(slot uint64, row types.Row) error {
	if len(row) != len(r.meta.Columns) {
		return fmt.Errorf("%w: %d values for %d columns", ErrRowShape, len(row), len(r.meta.Columns))
	}

	record := make([]byte, r.recordSize)
	binary.LittleEndian.PutUint64(record[0:8], slot)
	binary.LittleEndian.PutUint64(record[8:16], 1)

	for i, col := range r.meta.Columns {
		value := row[i]
		if value.Type != col.Type {
			return fmt.Errorf("%w: column %s is %s, got %s", ErrRowShape, col.Name, col.Type, value.Type)
		}

		field := record[ROW_HEADER_SIZE+i*COLUMN_SIZE:]
		switch col.Type {
		case types.INT:
			binary.LittleEndian.PutUint64(field[:8], uint64(value.Int))
		case types.STRING:
			off := r.data.Size()
			if err := r.writeAt(r.data, off, []byte(value.Str)); err != nil {
				return err
			}
			binary.LittleEndian.PutUint64(field[:8], off)
			binary.LittleEndian.PutUint64(field[8:16], uint64(len(value.Str)))
		}
	}

	return r.writeAt(r.index, slot*r.recordSize, record)
}

func (r *RowStorage) readRecord(slot uint64) ([]byte, error) {
	if slot >= r.Count() {
		return nil, fmt.Errorf("%w: slot %d", ErrRowNotFound, slot)
	}

	record := make([]byte, r.recordSize)
	if err := r.readAt(r.index, slot*r.recordSize, record); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *RowStorage) readString(off, length uint64) (string, error) {
	buf := make([]byte, length)
	if err := r.readAt(r.data, off, buf); err != nil {
		return "", err
	}

	return string(buf), nil
}

func (r *RowStorage) readAt(h *fs.Handle, off uint64, buf []byte) error {
	if _, err := h.Seek(off); err != nil {
		return err
	}

	n, err := h.Read(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short read of %d bytes from %s at %d", ErrCorrupt, n, h.Name(), off)
	}

	return nil
}

func (r *RowStorage) writeAt(h *fs.Handle, off uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	if pos, err := h.Seek(off); err != nil {
		return err
	} else if pos != off {
		return fmt.Errorf("%w: seek to %d in %s landed at %d", ErrCorrupt, off, h.Name(), pos)
	}

	_, err := h.Write(buf)
	return err
}

// RowStorage serializes rows into fixed-size records. An INT column holds
// its value; a STRING column holds the offset and length of its bytes in
// the data stream.
type RowStorage struct {
	meta       TableMetadata
	index      *fs.Handle
	data       *fs.Handle
	recordSize uint64
}
