package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/jobala/petrosql/engine"
	"github.com/jobala/petrosql/types"
)

const (
	PROMPT          = "petrosql> "
	CONTINUE_PROMPT = "     ...> "
)

func newShell(db *engine.Engine, out io.Writer) *shell {
	return &shell{db: db, out: out}
}

// interact reads statements from the terminal until .quit or EOF.
func (s *shell) interact() error {
	rl, err := newReadline()
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if s.pending.Len() == 0 {
				return nil
			}
			s.pending.Reset()
			rl.SetPrompt(PROMPT)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if s.feed(line) {
			return nil
		}

		if s.pending.Len() > 0 {
			rl.SetPrompt(CONTINUE_PROMPT)
		} else {
			rl.SetPrompt(PROMPT)
		}
	}
}

// feed adds a line of input, running every statement it completes. It
// reports whether the user asked to quit.
func (s *shell) feed(line string) bool {
	trimmed := strings.TrimSpace(line)
	if s.pending.Len() == 0 {
		switch trimmed {
		case "":
			return false
		case ".quit", ".exit":
			return true
		case ".tables":
			for _, name := range s.db.Tables() {
				fmt.Fprintln(s.out, name)
			}
			return false
		}
	}

	s.pending.WriteString(line)
	s.pending.WriteString("\n")

	statements, rest := splitStatements(s.pending.String())
	s.pending.Reset()
	if strings.TrimSpace(rest) != "" {
		s.pending.WriteString(rest)
	}

	for _, stmt := range statements {
		s.exec(stmt)
	}
	return false
}

func (s *shell) exec(query string) {
	printed := 0
	err := s.db.Exec(query, func(row types.Row) error {
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = v.String()
		}

		printed++
		_, err := fmt.Fprintln(s.out, strings.Join(values, "\t"))
		return err
	})

	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	if printed == 0 && s.db.Changes() > 0 {
		fmt.Fprintf(s.out, "%d row(s) changed\n", s.db.Changes())
	}
}

// splitStatements cuts input at every ';' outside a quoted string. The
// statements keep their terminator; rest is whatever follows the last one.
func splitStatements(input string) (statements []string, rest string) {
	var quote byte
	start := 0

	for i := 0; i < len(input); i++ {
		ch := input[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
		case ch == ';':
			if stmt := strings.TrimSpace(input[start : i+1]); stmt != ";" {
				statements = append(statements, stmt)
			}
			start = i + 1
		}
	}

	return statements, input[start:]
}

type shell struct {
	db      *engine.Engine
	out     io.Writer
	pending strings.Builder
}
