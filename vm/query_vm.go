package vm

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/jobala/petrosql/compiler"
	"github.com/jobala/petrosql/table"
	"github.com/jobala/petrosql/types"
	"github.com/jobala/petrosql/util"
)

var (
	ErrBadBytecode = errors.New("malformed bytecode")
	ErrNotLinked   = errors.New("statement is not linked")
	ErrNoStatement = errors.New("no statement to run")
)

// Catalog is the schema and table access a QueryVM runs statements
// against.
type Catalog interface {
	compiler.Schema
	Create(name string, columns []table.ColumnMetadata) (table.TableMetadata, error)
	Tables() []table.TableMetadata
	Table(name string) (*table.TreeTable, error)
}

func New(catalog Catalog) *QueryVM {
	return &QueryVM{catalog: catalog}
}

// Eval prepares stmt for execution, dropping whatever was running before.
// Rows are then pulled with FetchRow.
func (vm *QueryVM) Eval(stmt *compiler.Statement) error {
	vm.Reset()

	if !stmt.Linked() {
		return ErrNotLinked
	}

	st, err := vm.newState(stmt)
	if err != nil {
		return err
	}

	vm.current = st
	return nil
}

// RunCycle advances the statement by one step: a SELECT tests one row, an
// UPDATE or DELETE visits one row, and the other statements finish in a
// single cycle. The returned row is nil when the step produced nothing.
func (vm *QueryVM) RunCycle() (types.Row, error) {
	if vm.current == nil {
		return nil, ErrNoStatement
	}
	if vm.current.done {
		return nil, nil
	}

	row, err := vm.cycle(vm.current)
	if err != nil {
		vm.current.done = true
		return nil, err
	}

	return row, nil
}

// FetchRow runs cycles until one produces a row or the statement is done.
func (vm *QueryVM) FetchRow() (types.Row, bool, error) {
	for !vm.Done() {
		row, err := vm.RunCycle()
		if err != nil {
			return nil, false, err
		}
		if row != nil {
			return row, true, nil
		}
	}

	return nil, false, nil
}

func (vm *QueryVM) Done() bool {
	return vm.current == nil || vm.current.done
}

// Affected is the number of rows the running statement inserted, updated
// or deleted so far.
func (vm *QueryVM) Affected() int {
	if vm.current == nil {
		return 0
	}
	return vm.current.affected
}

// Reset drops the running statement and clears the stack.
func (vm *QueryVM) Reset() {
	vm.stack.Reset()
	vm.current = nil
	vm.depth = 0
}

func (vm *QueryVM) newState(stmt *compiler.Statement) (*state, error) {
	st := &state{stmt: stmt}

	switch stmt.QueryType {
	case compiler.QUERY_SELECT:
		if stmt.From != nil {
			rows, err := vm.drain(stmt.From)
			if err != nil {
				return nil, err
			}
			st.source = rowSet(rows)
		} else if stmt.TableName != "" {
			t, err := vm.catalog.Table(stmt.TableName)
			if err != nil {
				return nil, err
			}
			st.source = t
		}

		if st.source != nil && st.source.RowCount() == 0 {
			st.done = true
		}
	case compiler.QUERY_INSERT, compiler.QUERY_UPDATE, compiler.QUERY_DELETE:
		t, err := vm.catalog.Table(stmt.TableName)
		if err != nil {
			return nil, err
		}
		st.table = t
		st.source = t
	case compiler.QUERY_SHOW:
		var rows rowSet
		for _, meta := range vm.catalog.Tables() {
			rows = append(rows, types.Row{types.String(meta.Name)})
		}
		st.source = rows
	case compiler.QUERY_DESC:
		var rows rowSet
		for _, col := range stmt.Table.Columns {
			rows = append(rows, types.Row{types.String(col.Name), types.String(col.Type.String())})
		}
		st.source = rows
	}

	return st, nil
}

func (vm *QueryVM) cycle(st *state) (types.Row, error) {
	switch st.stmt.QueryType {
	case compiler.QUERY_SELECT:
		return vm.selectCycle(st)
	case compiler.QUERY_INSERT:
		return nil, vm.insertCycle(st)
	case compiler.QUERY_UPDATE:
		return nil, vm.updateCycle(st)
	case compiler.QUERY_DELETE:
		return nil, vm.deleteCycle(st)
	case compiler.QUERY_CREATE:
		st.done = true
		_, err := vm.catalog.Create(st.stmt.TableName, st.stmt.CreateColumns)
		return nil, err
	case compiler.QUERY_SHOW, compiler.QUERY_DESC:
		return vm.listCycle(st)
	}

	return nil, fmt.Errorf("unknown query type %d", st.stmt.QueryType)
}

func (vm *QueryVM) selectCycle(st *state) (types.Row, error) {
	stmt := st.stmt

	if !st.limitEvaluated {
		st.limitEvaluated = true

		if stmt.Limit != nil {
			limit, err := vm.evalInt(st, stmt.Limit, "LIMIT")
			if err != nil {
				return nil, err
			}
			st.hasLimit = true
			st.limit = max(limit, 0)
		}
	}

	if st.hasLimit && st.returned >= st.limit {
		st.done = true
		return nil, nil
	}

	matched, err := vm.matches(st)
	if err != nil {
		return nil, err
	}

	var row types.Row
	if matched {
		base := vm.stack.Len()
		for _, clause := range stmt.Results {
			if err := vm.exec(st, clause); err != nil {
				return nil, err
			}
		}

		row = vm.stack.From(base)
		vm.stack.Truncate(base)
		st.returned++
	}

	st.advance()
	return row, nil
}

// insertCycle writes every row of the statement at once. Rows are checked
// against the table before the first one is stored.
func (vm *QueryVM) insertCycle(st *state) error {
	st.done = true
	stmt := st.stmt

	tuples, err := vm.insertTuples(st)
	if err != nil {
		return err
	}

	width := len(stmt.InsertColumns)
	if stmt.InsertColumns == nil {
		width = len(stmt.Table.Columns)
	}

	rows := make([]types.Row, 0, len(tuples))
	for _, tuple := range tuples {
		if len(tuple) != width {
			return util.NewSemanticError("expected %d values per row but got %d", width, len(tuple))
		}

		row := make(types.Row, len(stmt.Table.Columns))
		for i, col := range stmt.Table.Columns {
			pos := stmt.InsertOrder[i]
			if pos < 0 {
				row[i] = types.Zero(col.Type)
				continue
			}

			if tuple[pos].Type != col.Type {
				return util.NewSemanticError("column %q is %s but got %s", col.Name, col.Type, tuple[pos].Type)
			}
			row[i] = tuple[pos]
		}
		rows = append(rows, row)
	}

	for _, row := range rows {
		if _, err := st.table.Insert(row); err != nil {
			return err
		}
		st.affected++
	}

	return nil
}

func (vm *QueryVM) insertTuples(st *state) ([]types.Row, error) {
	stmt := st.stmt
	if stmt.Source != nil {
		return vm.drain(stmt.Source)
	}

	base := vm.stack.Len()
	if err := vm.exec(st, stmt.Values); err != nil {
		return nil, err
	}
	values := vm.stack.From(base)
	vm.stack.Truncate(base)

	if len(values) != stmt.Tuples*stmt.TupleWidth {
		return nil, util.NewSemanticError("VALUES produced %d values for %d rows of %d", len(values), stmt.Tuples, stmt.TupleWidth)
	}

	tuples := make([]types.Row, stmt.Tuples)
	for i := range tuples {
		tuples[i] = values[i*stmt.TupleWidth : (i+1)*stmt.TupleWidth]
	}
	return tuples, nil
}

func (vm *QueryVM) updateCycle(st *state) error {
	if st.pos >= st.table.RowCount() {
		st.done = true
		return nil
	}

	matched, err := vm.matches(st)
	if err != nil || !matched {
		st.advance()
		return err
	}

	stmt := st.stmt
	values := make([]types.Variable, len(stmt.SetClauses))
	for i, clause := range stmt.SetClauses {
		if values[i], err = vm.evalScalar(st, clause); err != nil {
			return err
		}

		col := stmt.Table.Columns[stmt.SetIndexes[i]]
		if values[i].Type != col.Type {
			return util.NewSemanticError("column %q is %s but got %s", col.Name, col.Type, values[i].Type)
		}
	}

	for i, value := range values {
		if err := st.table.Update(st.pos, stmt.SetIndexes[i], value); err != nil {
			return err
		}
	}

	st.affected++
	st.advance()
	return nil
}

func (vm *QueryVM) deleteCycle(st *state) error {
	if st.stmt.Where == nil {
		st.done = true
		st.affected = st.table.RowCount()
		return st.table.Clear()
	}

	if st.pos >= st.table.RowCount() {
		st.done = true
		return nil
	}

	matched, err := vm.matches(st)
	if err != nil {
		return err
	}
	if !matched {
		st.advance()
		return nil
	}

	// the next row slides into this position
	if err := st.table.Erase(st.pos); err != nil {
		return err
	}
	st.affected++
	st.row = nil
	if st.pos >= st.table.RowCount() {
		st.done = true
	}
	return nil
}

func (vm *QueryVM) listCycle(st *state) (types.Row, error) {
	if st.pos >= st.source.RowCount() {
		st.done = true
		return nil, nil
	}

	row, err := st.currentRow()
	if err != nil {
		return nil, err
	}

	st.advance()
	return row, nil
}

// matches evaluates the WHERE clause against the current row.
func (vm *QueryVM) matches(st *state) (bool, error) {
	if st.stmt.Where == nil {
		return true, nil
	}

	v, err := vm.evalScalar(st, st.stmt.Where)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// evalScalar runs a clause that must leave exactly one value.
func (vm *QueryVM) evalScalar(st *state, code []byte) (types.Variable, error) {
	base := vm.stack.Len()
	if err := vm.exec(st, code); err != nil {
		return types.Variable{}, err
	}

	if n := vm.stack.Len() - base; n != 1 {
		vm.stack.Truncate(base)
		return types.Variable{}, util.NewSemanticError("expression produced %d values where one was expected", n)
	}
	return vm.stack.Pop()
}

func (vm *QueryVM) evalInt(st *state, code []byte, clause string) (int64, error) {
	v, err := vm.evalScalar(st, code)
	if err != nil {
		return 0, err
	}

	if v.Type != types.INT {
		return 0, util.NewSemanticError("%s must be an integer", clause)
	}
	return v.Int, nil
}

// drain runs a nested SELECT to completion and returns its rows. It gets
// a state of its own, so its cursor, frames and LIMIT are independent of
// the statement that called it.
func (vm *QueryVM) drain(stmt *compiler.Statement) ([]types.Row, error) {
	if vm.depth >= MAX_DEPTH {
		return nil, util.NewSemanticError("subqueries nested deeper than %d", MAX_DEPTH)
	}

	vm.depth++
	defer func() { vm.depth-- }()

	st, err := vm.newState(stmt)
	if err != nil {
		return nil, err
	}

	var rows []types.Row
	for !st.done {
		row, err := vm.cycle(st)
		if err != nil {
			return nil, err
		}
		if row != nil {
			rows = append(rows, row)
		}
	}

	return rows, nil
}

// exec interprets one clause until QUIT. The clause may never consume
// values that were on the stack before it started.
func (vm *QueryVM) exec(st *state, code []byte) error {
	stmt := st.stmt
	entry := vm.stack.Len()

	for pc := 0; pc < len(code); {
		op := compiler.Opcode(code[pc])
		end := pc + 1 + op.OperandSize()
		if end > len(code) {
			return fmt.Errorf("%w: %s operand cut short", ErrBadBytecode, op)
		}
		operand := code[pc+1 : end]
		pc = end

		switch op {
		case compiler.QUIT:
			return nil
		case compiler.PUSH_INT64:
			vm.stack.Push(types.Int(int64(binary.LittleEndian.Uint64(operand))))
		case compiler.PUSH_STRING:
			idx := int(operand[0])
			if idx >= len(stmt.Strings) {
				return fmt.Errorf("%w: string %d out of range", ErrBadBytecode, idx)
			}
			vm.stack.Push(types.String(stmt.Strings[idx]))
		case compiler.MULT, compiler.DIV, compiler.MOD, compiler.SUB, compiler.ADD,
			compiler.COMP_NE, compiler.COMP_EQ, compiler.COMP_GT, compiler.COMP_LT:
			rhs, err := vm.pop(entry)
			if err != nil {
				return err
			}
			lhs, err := vm.pop(entry)
			if err != nil {
				return err
			}

			result, err := apply(op, lhs, rhs)
			if err != nil {
				return err
			}
			vm.stack.Push(result)
		case compiler.LOAD_COL:
			idx := int(operand[0])
			if idx >= len(stmt.ColumnMap) {
				return fmt.Errorf("%w: column %d out of range", ErrBadBytecode, idx)
			}

			row, err := st.currentRow()
			if err != nil {
				return err
			}

			col := stmt.ColumnMap[idx]
			if col >= len(row) {
				return util.NewSemanticError("row has no column %q", stmt.Columns[idx])
			}
			vm.stack.Push(row[col])
		case compiler.LOAD_ALL:
			row, err := st.currentRow()
			if err != nil {
				return err
			}
			for _, v := range row {
				vm.stack.Push(v)
			}
		case compiler.EXEC_SUBQUERY:
			idx := int(operand[0])
			if idx >= len(stmt.Nested) {
				return fmt.Errorf("%w: subquery %d out of range", ErrBadBytecode, idx)
			}

			rows, err := vm.drain(stmt.Nested[idx])
			if err != nil {
				return err
			}
			for _, row := range rows {
				for _, v := range row {
					vm.stack.Push(v)
				}
			}
		case compiler.FRAME_MARKER:
			st.frames = append(st.frames, vm.stack.Len())
		case compiler.FILTER_MUTUAL:
			if len(st.frames) == 0 {
				return fmt.Errorf("%w: no frame to filter", ErrStackUnderflow)
			}
			mark := st.frames[len(st.frames)-1]
			st.frames = st.frames[:len(st.frames)-1]
			if mark <= entry || mark > vm.stack.Len() {
				return fmt.Errorf("%w: frame has no probe value", ErrStackUnderflow)
			}

			probe := vm.stack.At(mark - 1)
			found := false
			for i := mark; i < vm.stack.Len() && !found; i++ {
				found = probe.Equal(vm.stack.At(i))
			}

			vm.stack.Truncate(mark - 1)
			vm.stack.Push(types.Bool(found))
		case compiler.FLIP:
			v, err := vm.pop(entry)
			if err != nil {
				return err
			}
			vm.stack.Push(types.Bool(!v.Truthy()))
		default:
			return fmt.Errorf("%w: unknown opcode %d", ErrBadBytecode, byte(op))
		}

		if vm.stack.Len() < entry {
			return fmt.Errorf("%w: %s dropped below the clause's entry depth", ErrStackUnderflow, op)
		}
	}

	return fmt.Errorf("%w: clause does not end in QUIT", ErrBadBytecode)
}

// pop takes the top value unless that would reach below floor.
func (vm *QueryVM) pop(floor int) (types.Variable, error) {
	if vm.stack.Len() <= floor {
		return types.Variable{}, fmt.Errorf("%w: clause reads below its entry depth", ErrStackUnderflow)
	}
	return vm.stack.Pop()
}

// apply computes lhs op rhs, lhs being the value pushed first.
func apply(op compiler.Opcode, lhs, rhs types.Variable) (types.Variable, error) {
	switch op {
	case compiler.COMP_EQ:
		return types.Bool(lhs.Equal(rhs)), nil
	case compiler.COMP_NE:
		return types.Bool(!lhs.Equal(rhs)), nil
	}

	if lhs.Type != types.INT || rhs.Type != types.INT {
		return types.Variable{}, util.NewSemanticError("%s needs integers but got %s and %s", op, lhs.Type, rhs.Type)
	}

	a, b := lhs.Int, rhs.Int
	switch op {
	case compiler.ADD:
		return types.Int(a + b), nil
	case compiler.SUB:
		return types.Int(a - b), nil
	case compiler.MULT:
		return types.Int(a * b), nil
	case compiler.DIV:
		if b == 0 {
			return types.Variable{}, util.NewSemanticError("division by zero")
		}
		return types.Int(a / b), nil
	case compiler.MOD:
		if b == 0 {
			return types.Variable{}, util.NewSemanticError("modulo by zero")
		}
		return types.Int(a % b), nil
	case compiler.COMP_GT:
		return types.Bool(a > b), nil
	case compiler.COMP_LT:
		return types.Bool(a < b), nil
	}

	return types.Variable{}, fmt.Errorf("%w: %s is not a binary operator", ErrBadBytecode, op)
}

const MAX_DEPTH = 32

// QueryVM executes compiled statements. Subqueries run on the same stack
// in a state of their own.
type QueryVM struct {
	catalog Catalog
	stack   Stack
	current *state
	depth   int
}
