package compiler

import (
	"strconv"

	"github.com/jobala/petrosql/table"
	"github.com/jobala/petrosql/types"
	"github.com/jobala/petrosql/util"
)

// Parse compiles a single query into a Statement. Bytecode is emitted
// while parsing; column references stay symbolic until Link.
func Parse(query string) (*Statement, error) {
	p := &Parser{lexer: NewLexer(query)}
	if err := p.advance(); err != nil {
		return nil, err
	}

	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	if _, err := p.accept(SEMI_COLON); err != nil {
		return nil, err
	}
	if _, err := p.expect(EOI); err != nil {
		return nil, err
	}

	return stmt, nil
}

func (p *Parser) parseStatement() (*Statement, error) {
	switch p.current.Type {
	case SELECT:
		return p.parseSelect()
	case INSERT:
		return p.parseInsert()
	case UPDATE:
		return p.parseUpdate()
	case DELETE:
		return p.parseDelete()
	case CREATE:
		return p.parseCreate()
	case SHOW:
		return p.parseShow()
	case DESC:
		return p.parseDesc()
	}

	return nil, p.unexpected("SELECT", "INSERT", "UPDATE", "DELETE", "CREATE", "SHOW", "DESC")
}

func (p *Parser) parseSelect() (*Statement, error) {
	if _, err := p.expect(SELECT); err != nil {
		return nil, err
	}
	stmt := newStatement(QUERY_SELECT)

	for {
		var clause []byte
		if ok, err := p.accept(ASTERISK); err != nil {
			return nil, err
		} else if ok {
			emit(&clause, LOAD_ALL)
		} else if err := p.parseExpr(stmt, &clause); err != nil {
			return nil, err
		}
		emit(&clause, QUIT)
		stmt.Results = append(stmt.Results, clause)

		if ok, err := p.accept(COMMA); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}

	if ok, err := p.accept(FROM); err != nil {
		return nil, err
	} else if ok {
		if err := p.parseSource(stmt); err != nil {
			return nil, err
		}
	}

	if err := p.parseWhere(stmt); err != nil {
		return nil, err
	}

	if ok, err := p.accept(ORDER); err != nil {
		return nil, err
	} else if ok {
		if _, err := p.expect(BY); err != nil {
			return nil, err
		}
		if err := p.parseClause(stmt, &stmt.OrderBy); err != nil {
			return nil, err
		}

		if ok, err := p.accept(DESC); err != nil {
			return nil, err
		} else if ok {
			stmt.Desc = true
		} else if _, err := p.accept(ASC); err != nil {
			return nil, err
		}
	}

	if ok, err := p.accept(LIMIT); err != nil {
		return nil, err
	} else if ok {
		if err := p.parseClause(stmt, &stmt.Limit); err != nil {
			return nil, err
		}
	}

	return stmt, nil
}

// parseSource reads the table or parenthesised subquery after FROM.
func (p *Parser) parseSource(stmt *Statement) error {
	if ok, err := p.accept(OPEN_PARENTHESIS); err != nil {
		return err
	} else if ok {
		from, err := p.parseSelect()
		if err != nil {
			return err
		}
		stmt.From = from

		if _, err := p.expect(CLOSE_PARENTHESIS); err != nil {
			return err
		}
	} else {
		name, err := p.expect(ID)
		if err != nil {
			return err
		}
		stmt.TableName = name.Data
	}

	if p.current.Type == COMMA {
		return util.NewSemanticError("selecting from more than one source is not supported")
	}
	return nil
}

func (p *Parser) parseInsert() (*Statement, error) {
	if _, err := p.expect(INSERT); err != nil {
		return nil, err
	}
	if _, err := p.expect(INTO); err != nil {
		return nil, err
	}

	name, err := p.expect(ID)
	if err != nil {
		return nil, err
	}
	stmt := newStatement(QUERY_INSERT)
	stmt.TableName = name.Data

	if ok, err := p.accept(OPEN_PARENTHESIS); err != nil {
		return nil, err
	} else if ok {
		if stmt.InsertColumns, err = p.parseNames(); err != nil {
			return nil, err
		}
		if _, err := p.expect(CLOSE_PARENTHESIS); err != nil {
			return nil, err
		}
	}

	if p.current.Type == SELECT {
		if stmt.Source, err = p.parseSelect(); err != nil {
			return nil, err
		}
		return stmt, nil
	}

	if _, err := p.expect(VALUES); err != nil {
		return nil, err
	}

	for {
		if _, err := p.expect(OPEN_PARENTHESIS); err != nil {
			return nil, err
		}

		width := 0
		for {
			if err := p.parseExpr(stmt, &stmt.Values); err != nil {
				return nil, err
			}
			width++

			if ok, err := p.accept(COMMA); err != nil {
				return nil, err
			} else if !ok {
				break
			}
		}

		if _, err := p.expect(CLOSE_PARENTHESIS); err != nil {
			return nil, err
		}

		if stmt.Tuples > 0 && width != stmt.TupleWidth {
			return nil, util.NewSemanticError("VALUES tuples have %d and %d values", stmt.TupleWidth, width)
		}
		stmt.TupleWidth = width
		stmt.Tuples++

		if ok, err := p.accept(COMMA); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}
	emit(&stmt.Values, QUIT)

	if stmt.InsertColumns != nil && len(stmt.InsertColumns) != stmt.TupleWidth {
		return nil, util.NewSemanticError("%d columns named but %d values given", len(stmt.InsertColumns), stmt.TupleWidth)
	}

	return stmt, nil
}

func (p *Parser) parseUpdate() (*Statement, error) {
	if _, err := p.expect(UPDATE); err != nil {
		return nil, err
	}

	name, err := p.expect(ID)
	if err != nil {
		return nil, err
	}
	stmt := newStatement(QUERY_UPDATE)
	stmt.TableName = name.Data

	if _, err := p.expect(SET); err != nil {
		return nil, err
	}

	for {
		column, err := p.expect(ID)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(EQUALS); err != nil {
			return nil, err
		}

		var clause []byte
		if err := p.parseClause(stmt, &clause); err != nil {
			return nil, err
		}
		stmt.SetColumns = append(stmt.SetColumns, column.Data)
		stmt.SetClauses = append(stmt.SetClauses, clause)

		if ok, err := p.accept(COMMA); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}

	return stmt, p.parseWhere(stmt)
}

func (p *Parser) parseDelete() (*Statement, error) {
	if _, err := p.expect(DELETE); err != nil {
		return nil, err
	}
	if _, err := p.expect(FROM); err != nil {
		return nil, err
	}

	name, err := p.expect(ID)
	if err != nil {
		return nil, err
	}
	stmt := newStatement(QUERY_DELETE)
	stmt.TableName = name.Data

	return stmt, p.parseWhere(stmt)
}

func (p *Parser) parseCreate() (*Statement, error) {
	if _, err := p.expect(CREATE); err != nil {
		return nil, err
	}
	if _, err := p.expect(TABLE); err != nil {
		return nil, err
	}

	name, err := p.expect(ID)
	if err != nil {
		return nil, err
	}
	stmt := newStatement(QUERY_CREATE)
	stmt.TableName = name.Data

	if _, err := p.expect(OPEN_PARENTHESIS); err != nil {
		return nil, err
	}

	for {
		column, err := p.expect(ID)
		if err != nil {
			return nil, err
		}
		typeName, err := p.expect(ID)
		if err != nil {
			return nil, err
		}

		typ, ok := types.ParseType(typeName.Data)
		if !ok {
			return nil, util.NewSemanticError("unknown type %s for column %q", typeName.Data, column.Data)
		}
		stmt.CreateColumns = append(stmt.CreateColumns, table.NewColumn(column.Data, typ))

		if ok, err := p.accept(COMMA); err != nil {
			return nil, err
		} else if !ok {
			break
		}
	}

	if _, err := p.expect(CLOSE_PARENTHESIS); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseShow() (*Statement, error) {
	if _, err := p.expect(SHOW); err != nil {
		return nil, err
	}
	if _, err := p.expect(TABLES); err != nil {
		return nil, err
	}

	return newStatement(QUERY_SHOW), nil
}

func (p *Parser) parseDesc() (*Statement, error) {
	if _, err := p.expect(DESC); err != nil {
		return nil, err
	}

	name, err := p.expect(ID)
	if err != nil {
		return nil, err
	}
	stmt := newStatement(QUERY_DESC)
	stmt.TableName = name.Data

	return stmt, nil
}

func (p *Parser) parseWhere(stmt *Statement) error {
	if ok, err := p.accept(WHERE); err != nil || !ok {
		return err
	}

	return p.parseClause(stmt, &stmt.Where)
}

func (p *Parser) parseNames() ([]string, error) {
	var names []string

	for {
		name, err := p.expect(ID)
		if err != nil {
			return nil, err
		}
		names = append(names, name.Data)

		if ok, err := p.accept(COMMA); err != nil {
			return nil, err
		} else if !ok {
			return names, nil
		}
	}
}

// parseClause compiles one expression into its own QUIT-terminated clause.
func (p *Parser) parseClause(stmt *Statement, clause *[]byte) error {
	if err := p.parseExpr(stmt, clause); err != nil {
		return err
	}

	emit(clause, QUIT)
	return nil
}

// parseExpr is the loosest level: NOT negates everything to its right.
func (p *Parser) parseExpr(stmt *Statement, code *[]byte) error {
	if ok, err := p.accept(NOT); err != nil {
		return err
	} else if ok {
		if err := p.parseExpr(stmt, code); err != nil {
			return err
		}

		emit(code, FLIP)
		return nil
	}

	return p.parseMembership(stmt, code)
}

// parseMembership compiles [NOT] IN. The probe value sits under a frame
// marker, the candidates are pushed above it and FILTER_MUTUAL collapses
// the lot into one boolean.
func (p *Parser) parseMembership(stmt *Statement, code *[]byte) error {
	if err := p.parseEquality(stmt, code); err != nil {
		return err
	}

	for {
		negate := false
		switch p.current.Type {
		case NOT:
			if err := p.advance(); err != nil {
				return err
			}
			if _, err := p.expect(IN); err != nil {
				return err
			}
			negate = true
		case IN:
			if err := p.advance(); err != nil {
				return err
			}
		default:
			return nil
		}

		if _, err := p.expect(OPEN_PARENTHESIS); err != nil {
			return err
		}
		emit(code, FRAME_MARKER)

		if p.current.Type == SELECT {
			if err := p.parseSubquery(stmt, code); err != nil {
				return err
			}
		} else {
			for {
				if err := p.parseExpr(stmt, code); err != nil {
					return err
				}

				if ok, err := p.accept(COMMA); err != nil {
					return err
				} else if !ok {
					break
				}
			}
		}

		if _, err := p.expect(CLOSE_PARENTHESIS); err != nil {
			return err
		}

		emit(code, FILTER_MUTUAL)
		if negate {
			emit(code, FLIP)
		}
	}
}

func (p *Parser) parseEquality(stmt *Statement, code *[]byte) error {
	return p.parseBinary(stmt, code, p.parseRelational, map[TokenType]Opcode{
		EQUALS:         COMP_EQ,
		DOES_EQUAL:     COMP_EQ,
		DOES_NOT_EQUAL: COMP_NE,
	})
}

func (p *Parser) parseRelational(stmt *Statement, code *[]byte) error {
	return p.parseBinary(stmt, code, p.parseAdditive, map[TokenType]Opcode{
		ANGULAR_OPEN:  COMP_LT,
		ANGULAR_CLOSE: COMP_GT,
	})
}

func (p *Parser) parseAdditive(stmt *Statement, code *[]byte) error {
	return p.parseBinary(stmt, code, p.parseTerm, map[TokenType]Opcode{
		PLUS:  ADD,
		MINUS: SUB,
	})
}

func (p *Parser) parseTerm(stmt *Statement, code *[]byte) error {
	return p.parseBinary(stmt, code, p.parseFactor, map[TokenType]Opcode{
		ASTERISK:       MULT,
		FORWARDS_SLASH: DIV,
		MODULO:         MOD,
	})
}

// parseBinary compiles a left-associative chain of operands joined by the
// operators in ops.
func (p *Parser) parseBinary(stmt *Statement, code *[]byte, operand parseFunc, ops map[TokenType]Opcode) error {
	if err := operand(stmt, code); err != nil {
		return err
	}

	for {
		op, ok := ops[p.current.Type]
		if !ok {
			return nil
		}
		if err := p.advance(); err != nil {
			return err
		}

		if err := operand(stmt, code); err != nil {
			return err
		}
		emit(code, op)
	}
}

func (p *Parser) parseFactor(stmt *Statement, code *[]byte) error {
	token := p.current

	switch token.Type {
	case INT:
		value, err := strconv.ParseInt(token.Data, 10, 64)
		if err != nil {
			return util.NewSemanticError("integer literal %s is out of range", token.Data)
		}
		emitInt(code, value)
		return p.advance()
	case STRING:
		index, err := stmt.addString(token.Data)
		if err != nil {
			return err
		}
		emitIndex(code, PUSH_STRING, index)
		return p.advance()
	case ID:
		index, err := stmt.addColumn(token.Data)
		if err != nil {
			return err
		}
		emitIndex(code, LOAD_COL, index)
		return p.advance()
	case MINUS:
		if err := p.advance(); err != nil {
			return err
		}

		emitInt(code, 0)
		if err := p.parseFactor(stmt, code); err != nil {
			return err
		}
		emit(code, SUB)
		return nil
	case OPEN_PARENTHESIS:
		if err := p.advance(); err != nil {
			return err
		}

		var err error
		if p.current.Type == SELECT {
			err = p.parseSubquery(stmt, code)
		} else {
			err = p.parseExpr(stmt, code)
		}
		if err != nil {
			return err
		}

		_, err = p.expect(CLOSE_PARENTHESIS)
		return err
	}

	return p.unexpected("expression")
}

// parseSubquery compiles a nested SELECT into its own statement and emits
// the instruction that runs it.
func (p *Parser) parseSubquery(stmt *Statement, code *[]byte) error {
	nested, err := p.parseSelect()
	if err != nil {
		return err
	}

	index, err := stmt.addNested(nested)
	if err != nil {
		return err
	}

	emitIndex(code, EXEC_SUBQUERY, index)
	return nil
}

func (p *Parser) advance() error {
	token, err := p.lexer.Next()
	if err != nil {
		return err
	}

	p.current = token
	return nil
}

// accept consumes the current token when it has type typ.
func (p *Parser) accept(typ TokenType) (bool, error) {
	if p.current.Type != typ {
		return false, nil
	}

	return true, p.advance()
}

// expect consumes and returns the current token, failing unless it has
// type typ.
func (p *Parser) expect(typ TokenType) (Token, error) {
	token := p.current
	if token.Type != typ {
		return Token{}, p.unexpected(typ.String())
	}

	return token, p.advance()
}

func (p *Parser) unexpected(expected ...string) error {
	return util.NewSyntaxError(p.current.String(), expected...)
}

type parseFunc func(stmt *Statement, code *[]byte) error

type Parser struct {
	lexer   *Lexer
	current Token
}
