package compiler

import (
	"encoding/binary"

	"github.com/jobala/petrosql/table"
	"github.com/jobala/petrosql/types"
	"github.com/jobala/petrosql/util"
)

type QueryType int

const (
	QUERY_SELECT QueryType = iota
	QUERY_INSERT
	QUERY_UPDATE
	QUERY_DELETE
	QUERY_CREATE
	QUERY_SHOW
	QUERY_DESC
)

func (q QueryType) String() string {
	switch q {
	case QUERY_SELECT:
		return "select"
	case QUERY_INSERT:
		return "insert"
	case QUERY_UPDATE:
		return "update"
	case QUERY_DELETE:
		return "delete"
	case QUERY_CREATE:
		return "create"
	case QUERY_SHOW:
		return "show"
	case QUERY_DESC:
		return "desc"
	}
	return "unknown"
}

func newStatement(typ QueryType) *Statement {
	return &Statement{QueryType: typ}
}

func (s *Statement) addString(value string) (byte, error) {
	for i, existing := range s.Strings {
		if existing == value {
			return byte(i), nil
		}
	}

	if len(s.Strings) >= MAX_POOL_ENTRIES {
		return 0, util.NewSemanticError("too many string literals in one statement")
	}

	s.Strings = append(s.Strings, value)
	return byte(len(s.Strings) - 1), nil
}

func (s *Statement) addColumn(name string) (byte, error) {
	for i, existing := range s.Columns {
		if existing == name {
			return byte(i), nil
		}
	}

	if len(s.Columns) >= MAX_POOL_ENTRIES {
		return 0, util.NewSemanticError("too many column references in one statement")
	}

	s.Columns = append(s.Columns, name)
	return byte(len(s.Columns) - 1), nil
}

func (s *Statement) addNested(nested *Statement) (byte, error) {
	if len(s.Nested) >= MAX_POOL_ENTRIES {
		return 0, util.NewSemanticError("too many subqueries in one statement")
	}

	s.Nested = append(s.Nested, nested)
	return byte(len(s.Nested) - 1), nil
}

// Linked reports whether the statement has been resolved against a schema.
func (s *Statement) Linked() bool {
	return s.linked
}

// resultColumns names the columns of the rows a linked SELECT produces.
// Results that are not a bare column reference are left unnamed.
func (s *Statement) resultColumns() []table.ColumnMetadata {
	var columns []table.ColumnMetadata

	for _, clause := range s.Results {
		switch {
		case len(clause) == 2 && Opcode(clause[0]) == LOAD_ALL:
			for _, col := range s.Table.Columns {
				columns = append(columns, table.ColumnMetadata{Name: col.Name, Type: col.Type})
			}
		case len(clause) == 3 && Opcode(clause[0]) == LOAD_COL:
			col := s.Table.Columns[s.ColumnMap[clause[1]]]
			columns = append(columns, table.ColumnMetadata{Name: col.Name, Type: col.Type})
		default:
			columns = append(columns, table.ColumnMetadata{Type: types.INT})
		}
	}

	for i := range columns {
		columns[i].ID = uint64(i)
	}
	return columns
}

func emit(code *[]byte, op Opcode) {
	*code = append(*code, byte(op))
}

func emitIndex(code *[]byte, op Opcode, index byte) {
	*code = append(*code, byte(op), index)
}

func emitInt(code *[]byte, value int64) {
	*code = append(*code, byte(PUSH_INT64))
	*code = binary.LittleEndian.AppendUint64(*code, uint64(value))
}

// Statement is a compiled query. Every clause is a bytecode program ending
// in QUIT; clauses the query does not have are nil. Index operands in the
// bytecode refer to Strings, ColumnMap and Nested.
type Statement struct {
	QueryType QueryType
	TableName string

	// From is a subquery used as the row source of a SELECT.
	From *Statement

	Results [][]byte
	Where   []byte
	Limit   []byte
	OrderBy []byte
	Desc    bool

	// UPDATE assigns each SetClauses[i] to column SetColumns[i].
	SetColumns []string
	SetClauses [][]byte

	// INSERT ... VALUES pushes Tuples groups of TupleWidth values, while
	// INSERT ... SELECT reads its rows from Source.
	InsertColumns []string
	Values        []byte
	Tuples        int
	TupleWidth    int
	Source        *Statement

	CreateColumns []table.ColumnMetadata

	Strings []string
	Columns []string
	Nested  []*Statement

	// Resolved by Link. ColumnMap turns a LOAD_COL operand into a row
	// index, SetIndexes does the same for SetColumns and InsertOrder maps
	// each table column to its position in an inserted tuple, or -1.
	Table       table.TableMetadata
	ColumnMap   []int
	SetIndexes  []int
	InsertOrder []int
	linked      bool
}
