package util

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	t.Run("syntax errors name the token and what was expected", func(t *testing.T) {
		err := NewSyntaxError("FROM", "identifier", "*")

		assert.Equal(t, "syntax error: unexpected FROM, expected identifier or *", err.Error())
		assert.Equal(t, "FROM", err.Token)
		assert.Equal(t, []string{"identifier", "*"}, err.Expected)
	})

	t.Run("semantic errors format their message", func(t *testing.T) {
		err := NewSemanticError("no such table %q", "user")
		assert.Equal(t, `semantic error: no such table "user"`, err.Error())
	})

	t.Run("database errors survive wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("running query: %w", NewSemanticError("bad"))
		assert.True(t, IsDatabaseError(wrapped))

		var semantic *SemanticError
		assert.True(t, errors.As(wrapped, &semantic))

		var syntax *SyntaxError
		assert.False(t, errors.As(wrapped, &syntax))
	})

	t.Run("subtypes match the common database error", func(t *testing.T) {
		cause := errors.New("short read")
		errs := []error{
			NewSyntaxError("FROM"),
			NewSemanticError("bad"),
			fmt.Errorf("running query: %w", NewSemanticError("bad")),
			&SemanticError{DatabaseError: &DatabaseError{Message: "wrapped", Err: cause}},
		}

		for _, err := range errs {
			var target *DatabaseError
			assert.True(t, errors.As(err, &target), err.Error())
			assert.NotEmpty(t, target.Message)
		}

		assert.ErrorIs(t, errs[3], cause)
	})

	t.Run("other errors are not database errors", func(t *testing.T) {
		assert.False(t, IsDatabaseError(errors.New("disk on fire")))
		assert.False(t, IsDatabaseError(nil))
	})
}

func TestConvert(t *testing.T) {
	type record struct {
		Name    string
		Columns []string
	}

	t.Run("round trips a struct", func(t *testing.T) {
		data, err := ToBytes(record{Name: "user", Columns: []string{"id", "name"}})
		assert.NoError(t, err)

		res, err := FromBytes[record](data)
		assert.NoError(t, err)
		assert.Equal(t, record{Name: "user", Columns: []string{"id", "name"}}, res)
	})

	t.Run("reports garbage input", func(t *testing.T) {
		_, err := FromBytes[record]([]byte{0xc1})
		assert.Error(t, err)
	})
}
