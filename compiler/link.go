package compiler

import (
	"github.com/jobala/petrosql/table"
	"github.com/jobala/petrosql/util"
)

// Schema resolves table names during linking.
type Schema interface {
	Lookup(name string) (table.TableMetadata, bool)
}

// Compile parses query and links it against schema.
func Compile(query string, schema Schema) (*Statement, error) {
	stmt, err := Parse(query)
	if err != nil {
		return nil, err
	}

	if err := Link(stmt, schema); err != nil {
		return nil, err
	}
	return stmt, nil
}

// Link resolves the table a statement reads or writes and every column it
// names, along with those of its subqueries. CREATE statements are left
// for the catalog to validate.
func Link(stmt *Statement, schema Schema) error {
	if stmt.linked {
		return nil
	}

	for _, nested := range stmt.Nested {
		if err := Link(nested, schema); err != nil {
			return err
		}
	}

	switch stmt.QueryType {
	case QUERY_CREATE, QUERY_SHOW:
		stmt.linked = true
		return nil
	}

	if stmt.From != nil {
		if err := Link(stmt.From, schema); err != nil {
			return err
		}
		stmt.Table = table.TableMetadata{Columns: stmt.From.resultColumns()}
	} else if stmt.TableName != "" {
		meta, ok := schema.Lookup(stmt.TableName)
		if !ok {
			return util.NewSemanticError("unknown table %q", stmt.TableName)
		}
		stmt.Table = meta
	}

	stmt.ColumnMap = make([]int, len(stmt.Columns))
	for i, name := range stmt.Columns {
		col, err := resolveColumn(stmt, name)
		if err != nil {
			return err
		}
		stmt.ColumnMap[i] = col
	}

	switch stmt.QueryType {
	case QUERY_UPDATE:
		stmt.SetIndexes = make([]int, len(stmt.SetColumns))
		for i, name := range stmt.SetColumns {
			col, err := resolveColumn(stmt, name)
			if err != nil {
				return err
			}
			stmt.SetIndexes[i] = col
		}
	case QUERY_INSERT:
		if err := linkInsert(stmt, schema); err != nil {
			return err
		}
	}

	stmt.linked = true
	return nil
}

func linkInsert(stmt *Statement, schema Schema) error {
	if stmt.Source != nil {
		if err := Link(stmt.Source, schema); err != nil {
			return err
		}
	}

	columns := stmt.Table.Columns
	stmt.InsertOrder = make([]int, len(columns))

	if stmt.InsertColumns == nil {
		if stmt.Source == nil && stmt.TupleWidth != len(columns) {
			return util.NewSemanticError("table %q has %d columns but %d values were given", stmt.TableName, len(columns), stmt.TupleWidth)
		}

		for i := range columns {
			stmt.InsertOrder[i] = i
		}
		return nil
	}

	for i := range stmt.InsertOrder {
		stmt.InsertOrder[i] = -1
	}

	for pos, name := range stmt.InsertColumns {
		col, err := resolveColumn(stmt, name)
		if err != nil {
			return err
		}
		if stmt.InsertOrder[col] != -1 {
			return util.NewSemanticError("column %q is named twice", name)
		}
		stmt.InsertOrder[col] = pos
	}

	return nil
}

func resolveColumn(stmt *Statement, name string) (int, error) {
	if stmt.TableName == "" && stmt.From == nil {
		return 0, util.NewSemanticError("column %q used without a table", name)
	}

	col, ok := stmt.Table.ColumnIndex(name)
	if !ok {
		return 0, util.NewSemanticError("unknown column %q", name)
	}
	return col, nil
}
