package compiler

type TokenType int

const (
	EOI TokenType = iota
	OPEN_PARENTHESIS
	CLOSE_PARENTHESIS
	SEMI_COLON
	COMMA
	ID
	INT
	STRING
	EQUALS
	DOES_EQUAL
	DOES_NOT_EQUAL
	PLUS
	MINUS
	ASTERISK
	FORWARDS_SLASH
	MODULO
	ANGULAR_OPEN
	ANGULAR_CLOSE
	BANG

	SELECT
	FROM
	WHERE
	ORDER
	BY
	ASC
	DESC
	LIMIT
	INSERT
	INTO
	VALUES
	UPDATE
	SET
	DELETE
	CREATE
	TABLE
	SHOW
	TABLES
	NOT
	IN
)

var keywords = map[string]TokenType{
	"SELECT": SELECT,
	"FROM":   FROM,
	"WHERE":  WHERE,
	"ORDER":  ORDER,
	"BY":     BY,
	"ASC":    ASC,
	"DESC":   DESC,
	"LIMIT":  LIMIT,
	"INSERT": INSERT,
	"INTO":   INTO,
	"VALUES": VALUES,
	"UPDATE": UPDATE,
	"SET":    SET,
	"DELETE": DELETE,
	"CREATE": CREATE,
	"TABLE":  TABLE,
	"SHOW":   SHOW,
	"TABLES": TABLES,
	"NOT":    NOT,
	"IN":     IN,
}

var tokenNames = map[TokenType]string{
	EOI:               "end of input",
	OPEN_PARENTHESIS:  "(",
	CLOSE_PARENTHESIS: ")",
	SEMI_COLON:        ";",
	COMMA:             ",",
	ID:                "identifier",
	INT:               "integer",
	STRING:            "string",
	EQUALS:            "=",
	DOES_EQUAL:        "==",
	DOES_NOT_EQUAL:    "!=",
	PLUS:              "+",
	MINUS:             "-",
	ASTERISK:          "*",
	FORWARDS_SLASH:    "/",
	MODULO:            "%",
	ANGULAR_OPEN:      "<",
	ANGULAR_CLOSE:     ">",
	BANG:              "!",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}

	for word, typ := range keywords {
		if typ == t {
			return word
		}
	}

	return "unknown"
}

// String renders the token the way it appeared, for error messages.
func (t Token) String() string {
	switch t.Type {
	case ID, INT:
		return t.Data
	case STRING:
		return `"` + t.Data + `"`
	}

	return t.Type.String()
}

type Token struct {
	Type TokenType
	Data string
}
