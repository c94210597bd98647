package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable / function name
	NUMBER     // decimal integer literal
	CHARACTER  // character literal 'c'
	TEXT       // string literal "..."

	// Keywords
	INT         // "int"
	CHAR        // "char"
	IF          // "if"
	ELSE        // "else"
	WHILE       // "while"
	FOR         // "for"
	RETURN      // "return"
	BREAK       // "break"
	CONTINUE    // "continue"
	NULL        // "null"
	TRUE        // "true"
	FALSE       // "false"
	TRUE_UPPER  // "TRUE"
	FALSE_UPPER // "FALSE"

	// Paired delimiters
	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	SEMICOLON // ;
	COMMA     // ,

	// Arithmetic operators
	PLUS        // +
	MINUS       // -
	STAR        // * (multiplication, or unary dereference)
	SLASH       // /
	PERCENT     // %
	PLUS_PLUS   // ++
	MINUS_MINUS // --
	AMPERSAND   // & (address-of)
	NOT         // !
	AND_LOGICAL // &&
	OR_LOGICAL  // ||

	// Assignment / comparison  (order matters: ASSIGN before EQUALS)
	ASSIGN         // =
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=

	EQUALS     // ==
	NOT_EQ     // !=
	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=
)

// tokenNames is indexed by TokenType and holds the grammar symbol printed in
// token dumps.
var tokenNames = [...]string{
	EOF:            "EOF",
	IDENTIFIER:     "ID",
	NUMBER:         "NUMBER",
	CHARACTER:      "CHARACTER",
	TEXT:           "TEXT",
	INT:            "INT",
	CHAR:           "CHAR",
	IF:             "IF",
	ELSE:           "ELSE",
	WHILE:          "WHILE",
	FOR:            "FOR",
	RETURN:         "RETURN",
	BREAK:          "BREAK",
	CONTINUE:       "CONTINUE",
	NULL:           "NULL",
	TRUE:           "TRUE",
	FALSE:          "FALSE",
	TRUE_UPPER:     "TRUE_UPPER",
	FALSE_UPPER:    "FALSE_UPPER",
	LBRACE:         "LBRACE",
	RBRACE:         "RBRACE",
	LPAREN:         "LPAREN",
	RPAREN:         "RPAREN",
	LBRACKET:       "LBRACKET",
	RBRACKET:       "RBRACKET",
	SEMICOLON:      "SEMICOL",
	COMMA:          "COMMA",
	PLUS:           "PLUS",
	MINUS:          "MINUS",
	STAR:           "ASTERISK",
	SLASH:          "DIVIDE",
	PERCENT:        "MODULO",
	PLUS_PLUS:      "PLUSPLUS",
	MINUS_MINUS:    "MINUSMINUS",
	AMPERSAND:      "REFERENCE",
	NOT:            "BANG",
	AND_LOGICAL:    "ANDOP",
	OR_LOGICAL:     "OROP",
	ASSIGN:         "EQ",
	PLUS_ASSIGN:    "PLUSEQ",
	MINUS_ASSIGN:   "MINUSEQ",
	STAR_ASSIGN:    "TIMESEQ",
	SLASH_ASSIGN:   "DIVIDEEQ",
	PERCENT_ASSIGN: "MODULOEQ",
	EQUALS:         "EQOP",
	NOT_EQ:         "NOTEQ",
	LESS:           "LT",
	GREATER:        "GT",
	LESS_EQ:        "LE",
	GREATER_EQ:     "GE",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string
	Line   int // 1-based source line
}

func (t Token) String() string {
	return fmt.Sprintf("LexToken(%s,%q,%d)", t.Type, t.Lexeme, t.Line)
}
