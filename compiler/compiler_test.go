package compiler

import (
	"testing"

	"github.com/jobala/petrosql/table"
	"github.com/jobala/petrosql/types"
	"github.com/jobala/petrosql/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer(t *testing.T) {
	t.Run("scans keywords case insensitively", func(t *testing.T) {
		tokens, err := tokenize("select Name_1.x FrOm users")
		require.NoError(t, err)

		assert.Equal(t, []Token{
			{Type: SELECT, Data: "SELECT"},
			{Type: ID, Data: "Name_1.x"},
			{Type: FROM, Data: "FROM"},
			{Type: ID, Data: "users"},
			{Type: EOI},
		}, tokens)
	})

	t.Run("scans operators", func(t *testing.T) {
		tokens, err := tokenize("( ) ; , = == != < > + - * / %")
		require.NoError(t, err)

		var typs []TokenType
		for _, token := range tokens {
			typs = append(typs, token.Type)
		}
		assert.Equal(t, []TokenType{
			OPEN_PARENTHESIS, CLOSE_PARENTHESIS, SEMI_COLON, COMMA, EQUALS, DOES_EQUAL,
			DOES_NOT_EQUAL, ANGULAR_OPEN, ANGULAR_CLOSE, PLUS, MINUS, ASTERISK,
			FORWARDS_SLASH, MODULO, EOI,
		}, typs)
	})

	t.Run("scans literals", func(t *testing.T) {
		tokens, err := tokenize(`"double" 'single' 42 TRUE false`)
		require.NoError(t, err)

		assert.Equal(t, []Token{
			{Type: STRING, Data: "double"},
			{Type: STRING, Data: "single"},
			{Type: INT, Data: "42"},
			{Type: INT, Data: "1"},
			{Type: INT, Data: "0"},
			{Type: EOI},
		}, tokens)
	})

	t.Run("minus before digits starts a literal only where an operand belongs", func(t *testing.T) {
		tokens, err := tokenize("SELECT -10, 3 -2, (1)-4")
		require.NoError(t, err)

		assert.Equal(t, []Token{
			{Type: SELECT, Data: "SELECT"},
			{Type: INT, Data: "-10"},
			{Type: COMMA},
			{Type: INT, Data: "3"},
			{Type: MINUS},
			{Type: INT, Data: "2"},
			{Type: COMMA},
			{Type: OPEN_PARENTHESIS},
			{Type: INT, Data: "1"},
			{Type: CLOSE_PARENTHESIS},
			{Type: MINUS},
			{Type: INT, Data: "4"},
			{Type: EOI},
		}, tokens)
	})

	t.Run("keeps returning end of input", func(t *testing.T) {
		lexer := NewLexer("  ")
		for i := 0; i < 3; i++ {
			token, err := lexer.Next()
			assert.NoError(t, err)
			assert.Equal(t, EOI, token.Type)
		}
	})

	t.Run("rejects unterminated strings", func(t *testing.T) {
		_, err := tokenize(`SELECT "bob`)
		var syntaxErr *util.SyntaxError
		assert.ErrorAs(t, err, &syntaxErr)
	})

	t.Run("rejects unknown characters", func(t *testing.T) {
		_, err := tokenize("SELECT @")
		var syntaxErr *util.SyntaxError
		require.ErrorAs(t, err, &syntaxErr)
		assert.Equal(t, "@", syntaxErr.Token)
	})
}

func TestParseExpressions(t *testing.T) {
	cases := []struct {
		query string
		code  []string
	}{
		{"SELECT 10 + 5 * 2", []string{"PUSH_INT64 10", "PUSH_INT64 5", "PUSH_INT64 2", "MULT", "ADD", "QUIT"}},
		{"SELECT 8 - 2 - 1", []string{"PUSH_INT64 8", "PUSH_INT64 2", "SUB", "PUSH_INT64 1", "SUB", "QUIT"}},
		{"SELECT (1 + 2) % 3", []string{"PUSH_INT64 1", "PUSH_INT64 2", "ADD", "PUSH_INT64 3", "MOD", "QUIT"}},
		{"SELECT -10", []string{"PUSH_INT64 -10", "QUIT"}},
		{"SELECT 10 -5", []string{"PUSH_INT64 10", "PUSH_INT64 5", "SUB", "QUIT"}},
		{"SELECT -(3)", []string{"PUSH_INT64 0", "PUSH_INT64 3", "SUB", "QUIT"}},
		{"SELECT 1 < 2 = 1", []string{"PUSH_INT64 1", "PUSH_INT64 2", "COMP_LT", "PUSH_INT64 1", "COMP_EQ", "QUIT"}},
		{"SELECT 1 != 2", []string{"PUSH_INT64 1", "PUSH_INT64 2", "COMP_NE", "QUIT"}},
		{"SELECT 3 > 2 == true", []string{"PUSH_INT64 3", "PUSH_INT64 2", "COMP_GT", "PUSH_INT64 1", "COMP_EQ", "QUIT"}},
		{"SELECT NOT 10 = 11", []string{"PUSH_INT64 10", "PUSH_INT64 11", "COMP_EQ", "FLIP", "QUIT"}},
		{
			"SELECT 10 + 5 IN (11, 15)",
			[]string{"PUSH_INT64 10", "PUSH_INT64 5", "ADD", "FRAME_MARKER", "PUSH_INT64 11", "PUSH_INT64 15", "FILTER_MUTUAL", "QUIT"},
		},
		{
			"SELECT 50 NOT IN (70, 50)",
			[]string{"PUSH_INT64 50", "FRAME_MARKER", "PUSH_INT64 70", "PUSH_INT64 50", "FILTER_MUTUAL", "FLIP", "QUIT"},
		},
		{
			"SELECT 1 IN (SELECT 5)",
			[]string{"PUSH_INT64 1", "FRAME_MARKER", "EXEC_SUBQUERY 0", "FILTER_MUTUAL", "QUIT"},
		},
		{"SELECT (SELECT 2) * 3", []string{"EXEC_SUBQUERY 0", "PUSH_INT64 3", "MULT", "QUIT"}},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			stmt, err := Parse(tc.query)
			require.NoError(t, err)
			require.Len(t, stmt.Results, 1)
			assert.Equal(t, tc.code, Disassemble(stmt.Results[0]))
		})
	}
}

func TestParseStatements(t *testing.T) {
	t.Run("select with every clause", func(t *testing.T) {
		stmt, err := Parse("select *, name from user where id > 1 order by age desc limit 2;")
		require.NoError(t, err)

		assert.Equal(t, QUERY_SELECT, stmt.QueryType)
		assert.Equal(t, "user", stmt.TableName)
		assert.Equal(t, []string{"LOAD_ALL", "QUIT"}, Disassemble(stmt.Results[0]))
		assert.Equal(t, []string{"LOAD_COL 0", "QUIT"}, Disassemble(stmt.Results[1]))
		assert.Equal(t, []string{"LOAD_COL 1", "PUSH_INT64 1", "COMP_GT", "QUIT"}, Disassemble(stmt.Where))
		assert.Equal(t, []string{"LOAD_COL 2", "QUIT"}, Disassemble(stmt.OrderBy))
		assert.True(t, stmt.Desc)
		assert.Equal(t, []string{"PUSH_INT64 2", "QUIT"}, Disassemble(stmt.Limit))
		assert.Equal(t, []string{"name", "id", "age"}, stmt.Columns)
	})

	t.Run("string literals share pool entries", func(t *testing.T) {
		stmt, err := Parse(`SELECT "bob", 'bob', "alice"`)
		require.NoError(t, err)

		assert.Equal(t, []string{"bob", "alice"}, stmt.Strings)
		assert.Equal(t, []string{"PUSH_STRING 0", "QUIT"}, Disassemble(stmt.Results[1]))
		assert.Equal(t, []string{"PUSH_STRING 1", "QUIT"}, Disassemble(stmt.Results[2]))
	})

	t.Run("select from a subquery", func(t *testing.T) {
		stmt, err := Parse("SELECT * FROM (SELECT 10, 20)")
		require.NoError(t, err)

		require.NotNil(t, stmt.From)
		assert.Empty(t, stmt.TableName)
		assert.Len(t, stmt.From.Results, 2)
	})

	t.Run("insert values", func(t *testing.T) {
		stmt, err := Parse(`INSERT INTO user (id, name, age) VALUES (1,"Garry",10),(2,"Barry",15),(3,"Larry",5)`)
		require.NoError(t, err)

		assert.Equal(t, QUERY_INSERT, stmt.QueryType)
		assert.Equal(t, []string{"id", "name", "age"}, stmt.InsertColumns)
		assert.Equal(t, 3, stmt.Tuples)
		assert.Equal(t, 3, stmt.TupleWidth)
		assert.Equal(t, []string{"Garry", "Barry", "Larry"}, stmt.Strings)
		assert.Equal(t, "QUIT", Disassemble(stmt.Values)[9])
	})

	t.Run("insert from select", func(t *testing.T) {
		stmt, err := Parse("INSERT INTO admin SELECT id, id FROM user")
		require.NoError(t, err)

		require.NotNil(t, stmt.Source)
		assert.Equal(t, "user", stmt.Source.TableName)
		assert.Nil(t, stmt.Values)
	})

	t.Run("update", func(t *testing.T) {
		stmt, err := Parse("UPDATE user SET age = age + 1, name = 'x' WHERE id = 2")
		require.NoError(t, err)

		assert.Equal(t, QUERY_UPDATE, stmt.QueryType)
		assert.Equal(t, []string{"age", "name"}, stmt.SetColumns)
		assert.Equal(t, []string{"LOAD_COL 0", "PUSH_INT64 1", "ADD", "QUIT"}, Disassemble(stmt.SetClauses[0]))
		assert.NotNil(t, stmt.Where)
	})

	t.Run("delete", func(t *testing.T) {
		stmt, err := Parse("DELETE FROM user")
		require.NoError(t, err)

		assert.Equal(t, QUERY_DELETE, stmt.QueryType)
		assert.Nil(t, stmt.Where)
	})

	t.Run("create table", func(t *testing.T) {
		stmt, err := Parse("CREATE TABLE user (id INT, name string, bio TEXT)")
		require.NoError(t, err)

		assert.Equal(t, QUERY_CREATE, stmt.QueryType)
		assert.Equal(t, []table.ColumnMetadata{
			table.NewColumn("id", types.INT),
			table.NewColumn("name", types.STRING),
			table.NewColumn("bio", types.STRING),
		}, stmt.CreateColumns)
	})

	t.Run("show and desc", func(t *testing.T) {
		stmt, err := Parse("SHOW TABLES")
		require.NoError(t, err)
		assert.Equal(t, QUERY_SHOW, stmt.QueryType)

		stmt, err = Parse("desc user;")
		require.NoError(t, err)
		assert.Equal(t, QUERY_DESC, stmt.QueryType)
		assert.Equal(t, "user", stmt.TableName)
	})
}

func TestParseErrors(t *testing.T) {
	syntaxErrors := []string{
		"",
		"SELECT",
		"SELECT 1 FROM",
		"SELECT (1",
		"SELECT 1 2",
		"SELECT 1;;",
		"FOO",
		"INSERT user VALUES (1)",
		"UPDATE user SET",
		"CREATE TABLE t ()",
		"SELECT 1 NOT 2",
		"SHOW",
	}
	for _, query := range syntaxErrors {
		t.Run(query, func(t *testing.T) {
			_, err := Parse(query)
			var syntaxErr *util.SyntaxError
			assert.ErrorAs(t, err, &syntaxErr)
			assert.True(t, util.IsDatabaseError(err))
		})
	}

	t.Run("message names the token and the expectation", func(t *testing.T) {
		_, err := Parse("SELECT")
		assert.EqualError(t, err, "syntax error: unexpected end of input, expected expression")

		_, err = Parse("SELECT 1 FROM 5")
		assert.EqualError(t, err, "syntax error: unexpected 5, expected identifier")
	})

	semanticErrors := []string{
		"INSERT INTO user VALUES (1), (1, 2)",
		"INSERT INTO user (a, b) VALUES (1)",
		"CREATE TABLE t (a BLOB)",
		"SELECT 99999999999999999999",
		"SELECT * FROM a, b",
	}
	for _, query := range semanticErrors {
		t.Run(query, func(t *testing.T) {
			_, err := Parse(query)
			var semanticErr *util.SemanticError
			assert.ErrorAs(t, err, &semanticErr)
		})
	}

	t.Run("string pool is bounded", func(t *testing.T) {
		query := "SELECT 1 IN ("
		for i := 0; i < MAX_POOL_ENTRIES+1; i++ {
			if i > 0 {
				query += ","
			}
			query += `"s` + string(rune('a'+i%26)) + string(rune('a'+i/26)) + `"`
		}
		query += ")"

		_, err := Parse(query)
		var semanticErr *util.SemanticError
		assert.ErrorAs(t, err, &semanticErr)
	})
}

func TestLink(t *testing.T) {
	schema := testSchema{
		"user": {Name: "user", Columns: []table.ColumnMetadata{
			table.NewColumn("id", types.INT),
			table.NewColumn("name", types.STRING),
			table.NewColumn("age", types.INT),
		}},
		"admin": {Name: "admin", Columns: []table.ColumnMetadata{
			table.NewColumn("id", types.INT),
			table.NewColumn("user_id", types.INT),
		}},
	}

	t.Run("maps column references to row positions", func(t *testing.T) {
		stmt, err := Compile("SELECT age, id FROM user WHERE name = 'x'", schema)
		require.NoError(t, err)

		assert.True(t, stmt.Linked())
		assert.Equal(t, "user", stmt.Table.Name)
		assert.Equal(t, []string{"age", "id", "name"}, stmt.Columns)
		assert.Equal(t, []int{2, 0, 1}, stmt.ColumnMap)
	})

	t.Run("links nested statements against their own table", func(t *testing.T) {
		stmt, err := Compile("SELECT name FROM user WHERE id IN (SELECT user_id FROM admin)", schema)
		require.NoError(t, err)

		require.Len(t, stmt.Nested, 1)
		assert.Equal(t, "admin", stmt.Nested[0].Table.Name)
		assert.Equal(t, []int{1}, stmt.Nested[0].ColumnMap)
	})

	t.Run("names subquery columns after the columns they select", func(t *testing.T) {
		stmt, err := Compile("SELECT age FROM (SELECT name, age, 1 FROM user)", schema)
		require.NoError(t, err)

		var names []string
		for _, col := range stmt.Table.Columns {
			names = append(names, col.Name)
		}
		assert.Equal(t, []string{"name", "age", ""}, names)
		assert.Equal(t, []int{1}, stmt.ColumnMap)
	})

	t.Run("orders partial inserts by table column", func(t *testing.T) {
		stmt, err := Compile("INSERT INTO user (age, id) VALUES (10, 1)", schema)
		require.NoError(t, err)
		assert.Equal(t, []int{1, -1, 0}, stmt.InsertOrder)

		stmt, err = Compile("INSERT INTO admin VALUES (1, 2)", schema)
		require.NoError(t, err)
		assert.Equal(t, []int{0, 1}, stmt.InsertOrder)
	})

	t.Run("resolves update targets", func(t *testing.T) {
		stmt, err := Compile("UPDATE user SET age = 1, name = 'a'", schema)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 1}, stmt.SetIndexes)
	})

	failures := []string{
		"SELECT * FROM nobody",
		"SELECT nope FROM user",
		"SELECT id",
		"SELECT 1 IN (SELECT nope FROM admin)",
		"INSERT INTO user VALUES (1, 2)",
		"INSERT INTO user (id, id) VALUES (1, 2)",
		"INSERT INTO user (id, nope) VALUES (1, 2)",
		"UPDATE user SET nope = 1",
		"DESC nobody",
		"DELETE FROM nobody",
	}
	for _, query := range failures {
		t.Run(query, func(t *testing.T) {
			_, err := Compile(query, schema)
			var semanticErr *util.SemanticError
			assert.ErrorAs(t, err, &semanticErr)
		})
	}

	t.Run("create and show need no tables", func(t *testing.T) {
		_, err := Compile("CREATE TABLE user (id INT)", schema)
		assert.NoError(t, err)

		_, err = Compile("SHOW TABLES", schema)
		assert.NoError(t, err)
	})
}

type testSchema map[string]table.TableMetadata

func (s testSchema) Lookup(name string) (table.TableMetadata, bool) {
	meta, ok := s[name]
	return meta, ok
}

// tokenize scans the whole query, stopping at the first EOI.
func tokenize(query string) ([]Token, error) {
	lexer := NewLexer(query)

	var tokens []Token
	for {
		token, err := lexer.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
		if token.Type == EOI {
			return tokens, nil
		}
	}
}
