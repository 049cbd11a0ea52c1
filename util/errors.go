package util

import (
	"errors"
	"fmt"
	"strings"
)

func NewSyntaxError(token string, expected ...string) *SyntaxError {
	msg := fmt.Sprintf("syntax error: unexpected %s", token)
	if len(expected) > 0 {
		msg += fmt.Sprintf(", expected %s", strings.Join(expected, " or "))
	}

	return &SyntaxError{
		DatabaseError: &DatabaseError{Message: msg},
		Token:         token,
		Expected:      expected,
	}
}

func NewSemanticError(format string, args ...any) *SemanticError {
	return &SemanticError{
		DatabaseError: &DatabaseError{Message: "semantic error: " + fmt.Sprintf(format, args...)},
	}
}

// IsDatabaseError reports whether err is a user-facing error that aborts
// only the query that raised it.
func IsDatabaseError(err error) bool {
	var target databaseError
	return errors.As(err, &target)
}

func (e *DatabaseError) Error() string {
	return e.Message
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

func (e *DatabaseError) databaseError() {}

func (e *SyntaxError) Unwrap() error {
	return e.DatabaseError
}

func (e *SemanticError) Unwrap() error {
	return e.DatabaseError
}

type databaseError interface {
	error
	databaseError()
}

// DatabaseError is the base of every error a query can raise on bad input.
type DatabaseError struct {
	Message string
	Err     error
}

type SyntaxError struct {
	*DatabaseError
	Token    string
	Expected []string
}

type SemanticError struct {
	*DatabaseError
}
