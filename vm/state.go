package vm

import (
	"github.com/jobala/petrosql/compiler"
	"github.com/jobala/petrosql/table"
	"github.com/jobala/petrosql/types"
	"github.com/jobala/petrosql/util"
)

// rowSource is what a statement iterates: a table or rows already
// produced by a subquery.
type rowSource interface {
	RowCount() int
	Load(pos int) (types.Row, error)
}

type rowSet []types.Row

func (r rowSet) RowCount() int {
	return len(r)
}

func (r rowSet) Load(pos int) (types.Row, error) {
	return r[pos], nil
}

// currentRow loads the row under the cursor, once per position.
func (s *state) currentRow() (types.Row, error) {
	if s.row != nil {
		return s.row, nil
	}

	if s.source == nil || s.pos >= s.source.RowCount() {
		return nil, util.NewSemanticError("no row to read columns from")
	}

	row, err := s.source.Load(s.pos)
	if err != nil {
		return nil, err
	}

	s.row = row
	return row, nil
}

// advance moves to the next row. A statement without a source produces at
// most one row.
func (s *state) advance() {
	s.pos++
	s.row = nil

	if s.source == nil || s.pos >= s.source.RowCount() {
		s.done = true
	}
}

// state is one statement in flight.
type state struct {
	stmt   *compiler.Statement
	source rowSource
	table  *table.TreeTable

	pos    int
	row    types.Row
	frames []int

	limitEvaluated bool
	hasLimit       bool
	limit          int64
	returned       int64
	affected       int

	done bool
}
