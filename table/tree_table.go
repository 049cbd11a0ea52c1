package table

import (
	"errors"
	"fmt"

	"github.com/jobala/petrosql/buffer"
	"github.com/jobala/petrosql/index"
	"github.com/jobala/petrosql/storage/fs"
	"github.com/jobala/petrosql/types"
	"github.com/jobala/petrosql/util"
)

var (
	ErrRowNotFound = errors.New("row not found")
	ErrRowShape    = errors.New("row does not match table columns")
	ErrCorrupt     = errors.New("table storage is corrupt")
)

// TABLE_STREAMS are the suffixes of the streams that back one table.
var TABLE_STREAMS = []string{".i", ".d", ".t"}

// OpenTreeTable opens, creating when missing, the three streams that back
// a table and rebuilds the cursor order from the row index.
func OpenTreeTable(filesystem *fs.Filesystem, meta TableMetadata, capacity int) (*TreeTable, error) {
	handles := make([]*fs.Handle, 0, len(TABLE_STREAMS))
	for _, suffix := range TABLE_STREAMS {
		h, err := filesystem.Open(meta.Name+suffix, true)
		if err != nil {
			_ = closeAll(handles...)
			return nil, fmt.Errorf("opening table %s: %w", meta.Name, err)
		}
		handles = append(handles, h)
	}

	tree, err := openTree(handles[2], capacity)
	if err != nil {
		_ = closeAll(handles...)
		return nil, fmt.Errorf("opening index of table %s: %w", meta.Name, err)
	}

	t := &TreeTable{
		meta:       meta,
		rows:       NewRowStorage(meta, handles[0], handles[1]),
		tree:       tree,
		treeHandle: handles[2],
	}
	t.nextRid = t.rows.Count()

	err = tree.Ascend(func(key, _ uint64) bool {
		t.rids = append(t.rids, key-1)
		return true
	})
	if err != nil {
		_ = t.Close()
		return nil, err
	}

	return t, nil
}

func openTree(handle *fs.Handle, capacity int) (*index.BTree, error) {
	var store *buffer.NodeStore
	var err error

	if handle.Size() == 0 {
		store, err = buffer.Create(handle, capacity)
	} else {
		store, err = buffer.Open(handle, capacity)
	}
	if err != nil {
		return nil, err
	}

	return index.NewBTree(store), nil
}

func (t *TreeTable) Metadata() TableMetadata {
	return t.meta
}

// RowCount is the number of live rows the cursor walks over.
func (t *TreeTable) RowCount() int {
	return len(t.rids)
}

// Load returns the row at cursor position pos.
func (t *TreeTable) Load(pos int) (types.Row, error) {
	slot, err := t.slot(pos)
	if err != nil {
		return nil, err
	}

	return t.rows.Load(slot)
}

// Insert appends row, checking it against the table's columns, and returns
// its row id.
func (t *TreeTable) Insert(row types.Row) (uint64, error) {
	if err := t.check(row); err != nil {
		return 0, err
	}

	slot, err := t.rows.Store(row)
	if err != nil {
		return 0, err
	}

	rid := t.nextRid
	if err := t.tree.Insert(rid+1, slot+1); err != nil {
		return 0, err
	}

	t.nextRid++
	t.rids = append(t.rids, rid)
	return rid, nil
}

// Erase removes the row at cursor position pos. Later rows shift down by
// one position.
func (t *TreeTable) Erase(pos int) error {
	slot, err := t.slot(pos)
	if err != nil {
		return err
	}

	if _, err := t.tree.Erase(t.rids[pos] + 1); err != nil {
		return err
	}
	if err := t.rows.Erase(slot); err != nil {
		return err
	}

	t.rids = append(t.rids[:pos], t.rids[pos+1:]...)
	return nil
}

// Update sets one column of the row at cursor position pos.
func (t *TreeTable) Update(pos int, col int, value types.Variable) error {
	if col < 0 || col >= len(t.meta.Columns) {
		return util.NewSemanticError("column %d out of range for table %s", col, t.meta.Name)
	}

	column := t.meta.Columns[col]
	if value.Type != column.Type {
		return util.NewSemanticError("cannot set %s column %s to a %s value", column.Type, column.Name, value.Type)
	}

	slot, err := t.slot(pos)
	if err != nil {
		return err
	}

	row, err := t.rows.Load(slot)
	if err != nil {
		return err
	}

	row[col] = value
	return t.rows.Update(slot, row)
}

// Clear erases every row.
func (t *TreeTable) Clear() error {
	for len(t.rids) > 0 {
		if err := t.Erase(len(t.rids) - 1); err != nil {
			return err
		}
	}

	return nil
}

func (t *TreeTable) SetAllocHook(fn func()) {
	t.tree.SetAllocHook(fn)
}

func (t *TreeTable) Close() error {
	return errors.Join(t.tree.Close(), t.treeHandle.Close(), t.rows.Close())
}

func (t *TreeTable) slot(pos int) (uint64, error) {
	if pos < 0 || pos >= len(t.rids) {
		return 0, fmt.Errorf("%w: position %d of %d", ErrRowNotFound, pos, len(t.rids))
	}

	value, found, err := t.tree.Search(t.rids[pos] + 1)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%w: row id %d is not indexed", ErrCorrupt, t.rids[pos])
	}

	return value - 1, nil
}

func (t *TreeTable) check(row types.Row) error {
	if len(row) != len(t.meta.Columns) {
		return util.NewSemanticError("table %s has %d columns, got %d values", t.meta.Name, len(t.meta.Columns), len(row))
	}

	for i, col := range t.meta.Columns {
		if row[i].Type != col.Type {
			return util.NewSemanticError("column %s is %s, got %s value %q", col.Name, col.Type, row[i].Type, row[i].String())
		}
	}

	return nil
}

func closeAll(handles ...*fs.Handle) error {
	var errs []error
	for _, h := range handles {
		errs = append(errs, h.Close())
	}

	return errors.Join(errs...)
}

// TreeTable keeps rows in a RowStorage and indexes them by row id in a
// B-tree. Cursor position i is the i-th live row id in ascending order.
type TreeTable struct {
	meta       TableMetadata
	rows       *RowStorage
	tree       *index.BTree
	treeHandle *fs.Handle
	rids       []uint64
	nextRid    uint64
}
