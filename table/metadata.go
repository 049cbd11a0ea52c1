package table

import "github.com/jobala/petrosql/types"

// MAX_TABLE_NAME keeps "<table>.x" stream names within the filesystem's
// name limit.
const MAX_TABLE_NAME = 14

// ColumnIndex returns the position of the named column.
func (m *TableMetadata) ColumnIndex(name string) (int, bool) {
	for i, col := range m.Columns {
		if col.Name == name {
			return i, true
		}
	}

	return -1, false
}

type ColumnMetadata struct {
	ID   uint64     `msgpack:"id"`
	Name string     `msgpack:"name"`
	Type types.Type `msgpack:"type"`
}

type TableMetadata struct {
	ID      uint64           `msgpack:"id"`
	Name    string           `msgpack:"name"`
	Columns []ColumnMetadata `msgpack:"columns"`
}
