package compiler

import (
	"fmt"
	"unicode"
)

// keywords maps source text to its keyword TokenType.
var keywords = map[string]TokenType{
	"int":      INT,
	"char":     CHAR,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"return":   RETURN,
	"break":    BREAK,
	"continue": CONTINUE,
	"null":     NULL,
	"true":     TRUE,
	"false":    FALSE,
	"TRUE":     TRUE_UPPER,
	"FALSE":    FALSE_UPPER,
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment() error {
	startLine := l.line
	for l.pos < len(l.src) {
		if l.hasPrefix("*/") {
			l.advance()
			l.advance()
			return nil
		}
		l.advance()
	}
	return fmt.Errorf("unterminated block comment (opened on line %d)", startLine)
}

// scanIdent collects a full identifier or keyword token.
func (l *Lexer) scanIdent() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) {
		r := l.peek()
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])
	tt := IDENTIFIER
	if kw, ok := keywords[lexeme]; ok {
		tt = kw
	}
	return Token{Type: tt, Lexeme: lexeme, Line: line}
}

// scanNumber collects a decimal or 0x-prefixed hex literal.
func (l *Lexer) scanNumber() (Token, error) {
	line := l.line
	start := l.pos

	if l.peek() == '0' && (l.peek2() == 'x' || l.peek2() == 'X') {
		l.advance()
		l.advance()
		digits := 0
		for l.pos < len(l.src) {
			r := l.peek()
			if unicode.IsDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F') {
				l.advance()
				digits++
				continue
			}
			break
		}
		if digits == 0 {
			return Token{}, fmt.Errorf("malformed hex literal on line %d", line)
		}
	} else {
		for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
			l.advance()
		}
	}

	if r := l.peek(); unicode.IsLetter(r) || r == '_' {
		return Token{}, fmt.Errorf("invalid suffix %q on number literal on line %d", r, line)
	}

	return Token{Type: NUMBER, Lexeme: string(l.src[start:l.pos]), Line: line}, nil
}

// scanEscape decodes the rune following a backslash.
func (l *Lexer) scanEscape(line int) (rune, error) {
	next := l.advance()
	switch next {
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case '0':
		return 0, nil
	case '\\', '\'', '"':
		return next, nil
	}
	return 0, fmt.Errorf("unknown escape sequence \\%c on line %d", next, line)
}

// scanChar collects a character literal 'c'. The lexeme is the decoded character.
func (l *Lexer) scanChar() (Token, error) {
	line := l.line
	l.advance() // consume opening '

	r := l.peek()
	if r == '\'' {
		return Token{}, fmt.Errorf("empty character literal on line %d", line)
	}

	var val rune
	if r == '\\' {
		l.advance()
		esc, err := l.scanEscape(line)
		if err != nil {
			return Token{}, err
		}
		val = esc
	} else {
		val = l.advance()
	}

	if l.peek() != '\'' {
		return Token{}, fmt.Errorf("unterminated character literal on line %d", line)
	}
	l.advance() // consume closing '

	return Token{Type: CHARACTER, Lexeme: string(val), Line: line}, nil
}

// scanString collects a string literal "...". The lexeme is the decoded text.
func (l *Lexer) scanString() (Token, error) {
	line := l.line
	l.advance() // consume opening "
	var val []rune

	for l.pos < len(l.src) {
		r := l.peek()
		if r == '"' {
			break
		}
		if r == '\n' {
			return Token{}, fmt.Errorf("unterminated string literal on line %d", line)
		}
		if r == '\\' {
			l.advance()
			esc, err := l.scanEscape(line)
			if err != nil {
				return Token{}, err
			}
			val = append(val, esc)
			continue
		}
		val = append(val, r)
		l.advance()
	}

	if l.pos >= len(l.src) {
		return Token{}, fmt.Errorf("unterminated string literal on line %d", line)
	}
	l.advance() // consume closing "

	return Token{Type: TEXT, Lexeme: string(val), Line: line}, nil
}

// punctuators lists every operator and delimiter. Two-rune spellings are
// tried before their one-rune prefixes.
var punctuators = []struct {
	text string
	typ  TokenType
}{
	{"++", PLUS_PLUS}, {"--", MINUS_MINUS},
	{"+=", PLUS_ASSIGN}, {"-=", MINUS_ASSIGN}, {"*=", STAR_ASSIGN}, {"/=", SLASH_ASSIGN}, {"%=", PERCENT_ASSIGN},
	{"&&", AND_LOGICAL}, {"||", OR_LOGICAL},
	{"==", EQUALS}, {"!=", NOT_EQ}, {"<=", LESS_EQ}, {">=", GREATER_EQ},
	{"+", PLUS}, {"-", MINUS}, {"*", STAR}, {"/", SLASH}, {"%", PERCENT},
	{"&", AMPERSAND}, {"!", NOT}, {"<", LESS}, {">", GREATER}, {"=", ASSIGN},
	{"{", LBRACE}, {"}", RBRACE}, {"(", LPAREN}, {")", RPAREN}, {"[", LBRACKET}, {"]", RBRACKET},
	{";", SEMICOLON}, {",", COMMA},
}

// hasPrefix reports whether the unread input starts with text.
func (l *Lexer) hasPrefix(text string) bool {
	i := l.pos
	for _, r := range text {
		if i >= len(l.src) || l.src[i] != r {
			return false
		}
		i++
	}
	return true
}

// skipTrivia consumes whitespace and comments.
func (l *Lexer) skipTrivia() error {
	for {
		l.skipWhitespace()
		switch {
		case l.hasPrefix("//"):
			l.pos += 2
			l.skipLineComment()
		case l.hasPrefix("/*"):
			l.pos += 2
			if err := l.skipBlockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// nextToken returns the next Token after any whitespace and comments.
func (l *Lexer) nextToken() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	line := l.line
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Line: line}, nil
	}

	switch ch := l.peek(); {
	case unicode.IsLetter(ch) || ch == '_':
		return l.scanIdent(), nil
	case unicode.IsDigit(ch):
		return l.scanNumber()
	case ch == '"':
		return l.scanString()
	case ch == '\'':
		return l.scanChar()
	}

	for _, p := range punctuators {
		if l.hasPrefix(p.text) {
			l.pos += len(p.text)
			return Token{Type: p.typ, Lexeme: p.text, Line: line}, nil
		}
	}
	ch := l.peek()
	if ch == '|' {
		return Token{}, fmt.Errorf("unexpected character %q on line %d (bitwise operators are not supported)", ch, line)
	}
	return Token{}, fmt.Errorf("unexpected character %q on line %d", ch, line)
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It returns a non-nil error on the first illegal character or unterminated comment.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
