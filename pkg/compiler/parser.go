package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds an AST.
//
// Grammar:
//
//	program     = funcDecl* EOF
//	funcDecl    = type IDENTIFIER "(" (formal ("," formal)*)? ")" block
//	type        = ("int" | "char") "*"*
//	formal      = type IDENTIFIER
//	block       = "{" statement* "}"
//	statement   = if | while | for | return | "break" ";" | "continue" ";" | block | simple ";"
//	simple      = declaration | assignment | expression
//	declaration = type IDENTIFIER ("[" NUMBER "]")? ("=" expression)?
//	assignment  = "*"* IDENTIFIER ("[" expression "]")? assignOp expression
//	expression  = logical_or
//	logical_or  = logical_and ("||" logical_and)*
//	logical_and = equality ("&&" equality)*
//	equality    = relational (("==" | "!=") relational)*
//	relational  = additive (("<" | "<=" | ">" | ">=") additive)*
//	additive    = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = unary (("*" | "/" | "%") unary)*
//	unary       = ("-" | "!" | "&" | "*" | "++" | "--") unary | postfix
//	postfix     = primary ("++" | "--")*
//	primary     = NUMBER | CHARACTER | TEXT | true | false | null
//	            | IDENTIFIER ("(" args ")" | "[" expression "]")? | "(" expression ")"
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// fmtError wraps an error message with the source line where the token appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	lineIdx := tok.Line - 1 // Lines are 1-based

	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}

	return fmt.Errorf("line %d: %s\n  |> %s", tok.Line, msg, snippet)
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	return p.peekAt(0)
}

// peekAt returns the token at the given offset from the current position.
func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+offset]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

func pos(tok Token) Pos { return Pos{Line: tok.Line} }

func isTypeToken(tt TokenType) bool { return tt == INT || tt == CHAR }

// assignOps maps assignment tokens to their AssignOp.
var assignOps = map[TokenType]AssignOp{
	ASSIGN:         AssignSet,
	PLUS_ASSIGN:    AssignAdd,
	MINUS_ASSIGN:   AssignSub,
	STAR_ASSIGN:    AssignMul,
	SLASH_ASSIGN:   AssignDiv,
	PERCENT_ASSIGN: AssignRem,
}

// parseType parses a base type followed by any number of '*'.
func (p *Parser) parseType() (Type, error) {
	tok := p.advance()
	var t Type
	switch tok.Type {
	case INT:
		t = IntType
	case CHAR:
		t = CharType
	default:
		return Type{}, p.fmtError(tok, "expected type, got %s (%q)", tok.Type, tok.Lexeme)
	}
	for p.peek().Type == STAR {
		p.advance()
		t.Pointers++
	}
	return t, nil
}

// parseFunction parses type name(formals) { body }.
func (p *Parser) parseFunction() (*FuncDec, error) {
	start := p.peek()
	retType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var params []*Formal
	if p.peek().Type != RPAREN {
		for {
			ptok := p.peek()
			ptype, err := p.parseType()
			if err != nil {
				return nil, err
			}
			pname, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			params = append(params, &Formal{Pos: pos(ptok), Name: pname.Lexeme, Type: ptype})
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FuncDec{Pos: pos(start), Name: name.Lexeme, ReturnType: retType, Params: params, Body: body}, nil
}

// parseBlock parses { statement* }.
func (p *Parser) parseBlock() (*StmtList, error) {
	open, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	list := &StmtList{Pos: pos(open)}
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		list.Stmts = append(list.Stmts, stmt)
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return list, nil
}

// parseBody parses a braced block, or a single statement wrapped in a StmtList.
func (p *Parser) parseBody() (*StmtList, error) {
	if p.peek().Type == LBRACE {
		return p.parseBlock()
	}
	tok := p.peek()
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &StmtList{Pos: pos(tok), Stmts: []Stmt{stmt}}, nil
}

func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	switch tok.Type {
	case IF:
		p.advance()
		return p.parseIf(tok)
	case WHILE:
		p.advance()
		return p.parseWhile(tok)
	case FOR:
		p.advance()
		return p.parseFor(tok)
	case RETURN:
		p.advance()
		ret := &RetStmt{Pos: pos(tok)}
		if p.peek().Type != SEMICOLON {
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			ret.Value = val
		}
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return ret, nil
	case BREAK:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &BreakStmt{Pos: pos(tok)}, nil
	case CONTINUE:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return nil, err
		}
		return &ContinueStmt{Pos: pos(tok)}, nil
	case LBRACE:
		return p.parseBlock()
	}

	stmt, err := p.parseSimple()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseIf parses if ( cond ) body [ else body ].
// The leading IF token has already been consumed.
func (p *Parser) parseIf(tok Token) (Stmt, error) {
	cond, err := p.parseParenExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	stmt := &IfStmt{Pos: pos(tok), Cond: cond, Then: then}
	if p.peek().Type == ELSE {
		p.advance()
		if stmt.Else, err = p.parseBody(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// parseWhile parses while ( cond ) body.
func (p *Parser) parseWhile(tok Token) (Stmt, error) {
	cond, err := p.parseParenExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Pos: pos(tok), Cond: cond, Body: body}, nil
}

// parseFor parses for ( [init] ; [cond] ; [step] ) body.
func (p *Parser) parseFor(tok Token) (Stmt, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	stmt := &ForStmt{Pos: pos(tok)}
	var err error

	if p.peek().Type != SEMICOLON {
		if stmt.Init, err = p.parseSimple(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	if p.peek().Type != SEMICOLON {
		if stmt.Cond, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return nil, err
	}
	if p.peek().Type != RPAREN {
		if stmt.Step, err = p.parseSimple(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if stmt.Body, err = p.parseBody(); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseParenExpr() (Expr, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return e, nil
}

// parseSimple parses a declaration, an assignment or an expression statement
// without the trailing semicolon.
func (p *Parser) parseSimple() (Stmt, error) {
	tok := p.peek()
	if isTypeToken(tok.Type) {
		return p.parseDeclaration()
	}
	if p.isAssignment() {
		return p.parseAssignment()
	}
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &ExprStmt{Pos: pos(tok), X: e}, nil
}

// isAssignment looks ahead for  *...* IDENTIFIER ([ ... ])? assignOp.
func (p *Parser) isAssignment() bool {
	i := 0
	for p.peekAt(i).Type == STAR {
		i++
	}
	if p.peekAt(i).Type != IDENTIFIER {
		return false
	}
	i++
	if p.peekAt(i).Type == LBRACKET {
		depth := 0
		for {
			tt := p.peekAt(i).Type
			if tt == EOF {
				return false
			}
			if tt == LBRACKET {
				depth++
			} else if tt == RBRACKET {
				depth--
				if depth == 0 {
					i++
					break
				}
			}
			i++
		}
	}
	_, ok := assignOps[p.peekAt(i).Type]
	return ok
}

func (p *Parser) parseDeclaration() (Stmt, error) {
	tok := p.peek()
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	decl := &DeclStmt{Pos: pos(tok), Name: name.Lexeme, Type: typ, IsPointer: typ.IsPointer()}

	if p.peek().Type == LBRACKET {
		p.advance()
		sizeTok, err := p.expect(NUMBER)
		if err != nil {
			return nil, err
		}
		size, err := parseIntLiteral(sizeTok.Lexeme)
		if err != nil || size <= 0 {
			return nil, p.fmtError(sizeTok, "invalid array size %q", sizeTok.Lexeme)
		}
		decl.ArraySize = int(size)
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
		return decl, nil
	}

	if p.peek().Type == ASSIGN {
		p.advance()
		init, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		// Leading dereferences of the initializer are recorded on the declaration.
		for {
			u, ok := init.(*UnaryOp)
			if !ok || u.Op != UnaryDeref {
				break
			}
			decl.Derefs++
			init = u.X
		}
		decl.Init = init
	}
	return decl, nil
}

func (p *Parser) parseAssignment() (Stmt, error) {
	tok := p.peek()
	stmt := &AssignmentStmt{Pos: pos(tok)}
	for p.peek().Type == STAR {
		p.advance()
		stmt.Derefs++
	}
	stmt.IsPointer = stmt.Derefs > 0

	name, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	stmt.Name = name.Lexeme

	if p.peek().Type == LBRACKET {
		p.advance()
		if stmt.Index, err = p.parseExpression(); err != nil {
			return nil, err
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
	}

	opTok := p.advance()
	op, ok := assignOps[opTok.Type]
	if !ok {
		return nil, p.fmtError(opTok, "expected assignment operator, got %s (%q)", opTok.Type, opTok.Lexeme)
	}
	stmt.Op = op

	if stmt.Value, err = p.parseExpression(); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseLogicalOr()
}

// binaryLevel parses one left-associative precedence level.
func (p *Parser) binaryLevel(next func() (Expr, error), ops map[TokenType]BinaryOp) (Expr, error) {
	expr, err := next()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		op, ok := ops[tok.Type]
		if !ok {
			return expr, nil
		}
		p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		expr = &BinOp{Pos: pos(tok), Op: op, Left: expr, Right: right}
	}
}

var (
	orOps             = map[TokenType]BinaryOp{OR_LOGICAL: OpOr}
	andOps            = map[TokenType]BinaryOp{AND_LOGICAL: OpAnd}
	equalityOps       = map[TokenType]BinaryOp{EQUALS: OpEq, NOT_EQ: OpNe}
	relationalOps     = map[TokenType]BinaryOp{LESS: OpLt, LESS_EQ: OpLe, GREATER: OpGt, GREATER_EQ: OpGe}
	additiveOps       = map[TokenType]BinaryOp{PLUS: OpAdd, MINUS: OpSub}
	multiplicativeOps = map[TokenType]BinaryOp{STAR: OpMul, SLASH: OpDiv, PERCENT: OpRem}
)

// parseLogicalOr handles ||
func (p *Parser) parseLogicalOr() (Expr, error) {
	return p.binaryLevel(p.parseLogicalAnd, orOps)
}

// parseLogicalAnd handles &&
func (p *Parser) parseLogicalAnd() (Expr, error) {
	return p.binaryLevel(p.parseEquality, andOps)
}

// parseEquality handles == and !=
func (p *Parser) parseEquality() (Expr, error) {
	return p.binaryLevel(p.parseRelational, equalityOps)
}

// parseRelational handles < <= > >=
func (p *Parser) parseRelational() (Expr, error) {
	return p.binaryLevel(p.parseAdditive, relationalOps)
}

// parseAdditive handles + and -
func (p *Parser) parseAdditive() (Expr, error) {
	return p.binaryLevel(p.parseMultiplicative, additiveOps)
}

// parseMultiplicative handles * / %
func (p *Parser) parseMultiplicative() (Expr, error) {
	return p.binaryLevel(p.parseUnary, multiplicativeOps)
}

var unaryOps = map[TokenType]UnaryOperator{
	MINUS:       UnaryNeg,
	NOT:         UnaryNot,
	AMPERSAND:   UnaryAddr,
	STAR:        UnaryDeref,
	PLUS_PLUS:   UnaryInc,
	MINUS_MINUS: UnaryDec,
}

func (p *Parser) parseUnary() (Expr, error) {
	tok := p.peek()
	if op, ok := unaryOps[tok.Type]; ok {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Pos: pos(tok), Op: op, X: x}, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		switch tok.Type {
		case PLUS_PLUS:
			p.advance()
			expr = &UnaryOp{Pos: pos(tok), Op: UnaryInc, X: expr}
		case MINUS_MINUS:
			p.advance()
			expr = &UnaryOp{Pos: pos(tok), Op: UnaryDec, X: expr}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.advance()
	switch tok.Type {
	case NUMBER:
		v, err := parseIntLiteral(tok.Lexeme)
		if err != nil || v > 0xFFFFFFFF {
			return nil, p.fmtError(tok, "integer literal %s out of range", tok.Lexeme)
		}
		return &Constant{Pos: pos(tok), Kind: ConstInt, Value: tok.Lexeme}, nil
	case CHARACTER, TEXT:
		return &Constant{Pos: pos(tok), Kind: ConstWords, Value: tok.Lexeme}, nil
	case TRUE, TRUE_UPPER:
		return &Constant{Pos: pos(tok), Kind: ConstBool, Value: "true"}, nil
	case FALSE, FALSE_UPPER:
		return &Constant{Pos: pos(tok), Kind: ConstBool, Value: "false"}, nil
	case NULL:
		return &Constant{Pos: pos(tok), Kind: ConstNull, Value: "null"}, nil
	case IDENTIFIER:
		switch p.peek().Type {
		case LPAREN:
			return p.parseCall(tok)
		case LBRACKET:
			p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			return &ArrayExpr{Pos: pos(tok), Name: tok.Lexeme, Index: idx}, nil
		}
		return &Constant{Pos: pos(tok), Kind: ConstID, Value: tok.Lexeme}, nil
	case LPAREN:
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, p.fmtError(tok, "unexpected %s (%q) in expression", tok.Type, tok.Lexeme)
}

// parseCall parses name(args). The name token has already been consumed.
func (p *Parser) parseCall(name Token) (Expr, error) {
	p.advance() // (
	call := &FuncCall{Pos: pos(name), Name: name.Lexeme}
	if p.peek().Type != RPAREN {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return call, nil
}

// parseIntLiteral decodes a decimal or 0x-prefixed literal.
func parseIntLiteral(s string) (int64, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

// Parse builds a Program from tokens. The synthetic printInt is prepended.
func Parse(tokens []Token, rawSource string) (*Program, error) {
	p := NewParser(tokens, rawSource)
	var funcs []*FuncDec
	for p.peek().Type != EOF {
		if !isTypeToken(p.peek().Type) {
			tok := p.peek()
			return nil, p.fmtError(tok, "expected function declaration, got %s (%q)", tok.Type, tok.Lexeme)
		}
		fn, err := p.parseFunction()
		if err != nil {
			return nil, err
		}
		funcs = append(funcs, fn)
	}
	return NewProgram(funcs), nil
}
