package types

import (
	"strconv"
	"strings"
)

type Type uint8

const (
	INT Type = iota
	STRING
)

func Int(v int64) Variable {
	return Variable{Type: INT, Int: v}
}

func String(s string) Variable {
	return Variable{Type: STRING, Str: s}
}

func Bool(b bool) Variable {
	if b {
		return Int(1)
	}

	return Int(0)
}

// Zero is the value an omitted column of type t takes.
func Zero(t Type) Variable {
	return Variable{Type: t}
}

// ParseType maps a column type name, including its aliases, to a Type.
func ParseType(name string) (Type, bool) {
	switch strings.ToUpper(name) {
	case "INT", "INTEGER":
		return INT, true
	case "STRING", "TEXT", "VARCHAR":
		return STRING, true
	}

	return INT, false
}

func (t Type) String() string {
	if t == STRING {
		return "STRING"
	}

	return "INT"
}

// Equal compares type and value. Values of different types are never
// equal.
func (v Variable) Equal(o Variable) bool {
	if v.Type != o.Type {
		return false
	}

	if v.Type == INT {
		return v.Int == o.Int
	}
	return v.Str == o.Str
}

// Truthy is false only for the integer 0.
func (v Variable) Truthy() bool {
	return v.Type != INT || v.Int != 0
}

func (v Variable) String() string {
	if v.Type == STRING {
		return v.Str
	}

	return strconv.FormatInt(v.Int, 10)
}

// Variable is the single runtime value: a signed 64-bit integer or a
// string.
type Variable struct {
	Type Type
	Int  int64
	Str  string
}

type Row []Variable
