package vm

import (
	"errors"

	"github.com/jobala/petrosql/types"
)

var ErrStackUnderflow = errors.New("stack underflow")

func (s *Stack) Push(v types.Variable) {
	s.values = append(s.values, v)
}

func (s *Stack) Pop() (types.Variable, error) {
	if len(s.values) == 0 {
		return types.Variable{}, ErrStackUnderflow
	}

	v := s.values[len(s.values)-1]
	s.values = s.values[:len(s.values)-1]
	return v, nil
}

func (s *Stack) Len() int {
	return len(s.values)
}

// At returns the value at depth i counted from the bottom.
func (s *Stack) At(i int) types.Variable {
	return s.values[i]
}

// From copies every value from depth i to the top.
func (s *Stack) From(i int) []types.Variable {
	out := make([]types.Variable, len(s.values)-i)
	copy(out, s.values[i:])
	return out
}

func (s *Stack) Truncate(n int) {
	s.values = s.values[:n]
}

func (s *Stack) Reset() {
	s.values = s.values[:0]
}

// Stack is the operand stack shared by a statement and the subqueries it
// runs.
type Stack struct {
	values []types.Variable
}
