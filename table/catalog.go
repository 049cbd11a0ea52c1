package table

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/jobala/petrosql/storage/fs"
	"github.com/jobala/petrosql/types"
	"github.com/jobala/petrosql/util"
)

const CATALOG_STREAM = "catalog"

// OpenCatalog loads the table list from the catalog stream, creating the
// stream on a fresh filesystem.
func OpenCatalog(filesystem *fs.Filesystem, capacity int) (*Catalog, error) {
	handle, err := filesystem.Open(CATALOG_STREAM, true)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	c := &Catalog{
		fs:       filesystem,
		handle:   handle,
		capacity: capacity,
		open:     map[string]*TreeTable{},
	}

	if handle.Size() == 0 {
		return c, c.persist()
	}

	if err := c.load(); err != nil {
		return nil, err
	}

	return c, nil
}

// Create registers a new table and allocates its streams.
func (c *Catalog) Create(name string, columns []ColumnMetadata) (TableMetadata, error) {
	if name == "" {
		return TableMetadata{}, util.NewSemanticError("table name is empty")
	}
	if len(name) > MAX_TABLE_NAME {
		return TableMetadata{}, util.NewSemanticError("table name %q is longer than %d bytes", name, MAX_TABLE_NAME)
	}
	if _, ok := c.Lookup(name); ok {
		return TableMetadata{}, util.NewSemanticError("table %q already exists", name)
	}
	if len(columns) == 0 {
		return TableMetadata{}, util.NewSemanticError("table %q has no columns", name)
	}
	if !c.hasRoomFor(name) {
		return TableMetadata{}, util.NewSemanticError("no room for table %q: the database holds at most %d streams", name, fs.MAX_STREAMS)
	}

	meta := TableMetadata{ID: c.state.NextTableID, Name: name}
	seen := map[string]bool{}
	for i, col := range columns {
		if seen[col.Name] {
			return TableMetadata{}, util.NewSemanticError("duplicate column %q in table %q", col.Name, name)
		}
		seen[col.Name] = true

		meta.Columns = append(meta.Columns, ColumnMetadata{ID: uint64(i), Name: col.Name, Type: col.Type})
	}

	t, err := OpenTreeTable(c.fs, meta, c.capacity)
	if err != nil {
		return TableMetadata{}, err
	}

	c.track(name, t)
	c.state.NextTableID++
	c.state.Tables = append(c.state.Tables, meta)
	return meta, c.persist()
}

func (c *Catalog) Lookup(name string) (TableMetadata, bool) {
	for _, meta := range c.state.Tables {
		if meta.Name == name {
			return meta, true
		}
	}

	return TableMetadata{}, false
}

// Tables lists table metadata in creation order.
func (c *Catalog) Tables() []TableMetadata {
	return c.state.Tables
}

// Table returns the open table with the given name.
func (c *Catalog) Table(name string) (*TreeTable, error) {
	if t, ok := c.open[name]; ok {
		return t, nil
	}

	meta, ok := c.Lookup(name)
	if !ok {
		return nil, util.NewSemanticError("no such table %q", name)
	}

	t, err := OpenTreeTable(c.fs, meta, c.capacity)
	if err != nil {
		return nil, err
	}

	c.track(name, t)
	return t, nil
}

// SetAllocHook registers fn to run whenever any table's index allocates a
// node, including tables opened later.
func (c *Catalog) SetAllocHook(fn func()) {
	c.onAlloc = fn
	for _, t := range c.open {
		t.SetAllocHook(fn)
	}
}

// hasRoomFor reports whether the stream table can take every stream the
// named table still needs.
func (c *Catalog) hasRoomFor(name string) bool {
	existing := c.fs.Streams()
	needed := 0
	for _, suffix := range TABLE_STREAMS {
		if !slices.Contains(existing, name+suffix) {
			needed++
		}
	}

	return len(existing)+needed <= fs.MAX_STREAMS
}

func (c *Catalog) track(name string, t *TreeTable) {
	if c.onAlloc != nil {
		t.SetAllocHook(c.onAlloc)
	}
	c.open[name] = t
}

// Close closes every open table and writes the catalog back.
func (c *Catalog) Close() error {
	var errs []error
	for name, t := range c.open {
		errs = append(errs, t.Close())
		delete(c.open, name)
	}

	errs = append(errs, c.persist(), c.handle.Close())
	return errors.Join(errs...)
}

// persist writes the catalog as a length-prefixed msgpack blob at the start
// of its stream.
func (c *Catalog) persist() error {
	data, err := util.ToBytes(c.state)
	if err != nil {
		return fmt.Errorf("encoding catalog: %w", err)
	}

	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(data)))
	buf = append(buf, data...)

	if _, err := c.handle.Seek(0); err != nil {
		return err
	}
	_, err = c.handle.Write(buf)
	return err
}

func (c *Catalog) load() error {
	if _, err := c.handle.Seek(0); err != nil {
		return err
	}

	prefix := make([]byte, 8)
	if n, err := c.handle.Read(prefix); err != nil {
		return err
	} else if n != len(prefix) {
		return fmt.Errorf("%w: catalog length prefix is truncated", ErrCorrupt)
	}

	data := make([]byte, binary.LittleEndian.Uint64(prefix))
	if n, err := c.handle.Read(data); err != nil {
		return err
	} else if n != len(data) {
		return fmt.Errorf("%w: catalog is truncated", ErrCorrupt)
	}

	state, err := util.FromBytes[catalogState](data)
	if err != nil {
		return fmt.Errorf("%w: decoding catalog: %v", ErrCorrupt, err)
	}

	c.state = state
	return nil
}

// NewColumn is a convenience for building column lists.
func NewColumn(name string, t types.Type) ColumnMetadata {
	return ColumnMetadata{Name: name, Type: t}
}

type catalogState struct {
	NextTableID uint64          `msgpack:"next_table_id"`
	Tables      []TableMetadata `msgpack:"tables"`
}

// Catalog owns table metadata and the open tables of one filesystem.
type Catalog struct {
	fs       *fs.Filesystem
	handle   *fs.Handle
	state    catalogState
	capacity int
	open     map[string]*TreeTable
	onAlloc  func()
}
