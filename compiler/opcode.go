package compiler

import (
	"encoding/binary"
	"fmt"
)

type Opcode byte

// Operands follow the opcode inline: PUSH_INT64 carries 8 little-endian
// bytes, the other opcodes marked below carry a single index byte.
const (
	QUIT          Opcode = iota
	PUSH_INT64           // int64
	PUSH_STRING          // string pool index
	MULT
	DIV
	MOD
	SUB
	ADD
	COMP_NE
	COMP_EQ
	COMP_GT
	COMP_LT
	LOAD_COL      // column redirect index
	LOAD_ALL
	EXEC_SUBQUERY // nested statement index
	FRAME_MARKER
	FILTER_MUTUAL
	FLIP
)

const MAX_POOL_ENTRIES = 256

var opcodeNames = [...]string{
	QUIT:          "QUIT",
	PUSH_INT64:    "PUSH_INT64",
	PUSH_STRING:   "PUSH_STRING",
	MULT:          "MULT",
	DIV:           "DIV",
	MOD:           "MOD",
	SUB:           "SUB",
	ADD:           "ADD",
	COMP_NE:       "COMP_NE",
	COMP_EQ:       "COMP_EQ",
	COMP_GT:       "COMP_GT",
	COMP_LT:       "COMP_LT",
	LOAD_COL:      "LOAD_COL",
	LOAD_ALL:      "LOAD_ALL",
	EXEC_SUBQUERY: "EXEC_SUBQUERY",
	FRAME_MARKER:  "FRAME_MARKER",
	FILTER_MUTUAL: "FILTER_MUTUAL",
	FLIP:          "FLIP",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", byte(op))
}

// OperandSize is the number of bytes following op in a clause.
func (op Opcode) OperandSize() int {
	switch op {
	case PUSH_INT64:
		return 8
	case PUSH_STRING, LOAD_COL, EXEC_SUBQUERY:
		return 1
	}
	return 0
}

// Disassemble renders a clause one instruction per line, stopping after
// QUIT.
func Disassemble(code []byte) []string {
	var out []string

	for off := 0; off < len(code); {
		op := Opcode(code[off])
		size := op.OperandSize()
		if off+1+size > len(code) {
			return append(out, fmt.Sprintf("%s <truncated>", op))
		}

		switch size {
		case 8:
			out = append(out, fmt.Sprintf("%s %d", op, int64(binary.LittleEndian.Uint64(code[off+1:]))))
		case 1:
			out = append(out, fmt.Sprintf("%s %d", op, code[off+1]))
		default:
			out = append(out, op.String())
		}

		if op == QUIT {
			break
		}
		off += 1 + size
	}

	return out
}
