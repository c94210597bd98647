package asm

import (
	"fmt"
	"strings"
)

// node is one element of the text format: an atom, a quoted string or a
// parenthesised list.
type node struct {
	atom   string
	quoted bool
	list   []*node
	isList bool
	line   int
}

func (n *node) String() string {
	if !n.isList {
		if n.quoted {
			return fmt.Sprintf("%q", n.atom)
		}
		return n.atom
	}
	parts := make([]string, len(n.list))
	for i, c := range n.list {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// head returns the keyword of a list such as "func" in (func ...).
func (n *node) head() string {
	if !n.isList || len(n.list) == 0 || n.list[0].isList {
		return ""
	}
	return n.list[0].atom
}

type reader struct {
	src  []rune
	pos  int
	line int
}

// read parses src into its top-level forms. Line comments (;; ...) and
// block comments ((; ... ;), nestable) are skipped.
func read(src string) ([]*node, error) {
	r := &reader{src: []rune(src), line: 1}
	var out []*node
	for {
		if err := r.skipSpace(); err != nil {
			return nil, err
		}
		if r.pos >= len(r.src) {
			return out, nil
		}
		n, err := r.readNode()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
}

func (r *reader) peekAt(off int) rune {
	if r.pos+off < len(r.src) {
		return r.src[r.pos+off]
	}
	return 0
}

func (r *reader) skipSpace() error {
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch {
		case c == '\n':
			r.line++
			r.pos++
		case c == ' ' || c == '\t' || c == '\r':
			r.pos++
		case c == ';' && r.peekAt(1) == ';':
			for r.pos < len(r.src) && r.src[r.pos] != '\n' {
				r.pos++
			}
		case c == '(' && r.peekAt(1) == ';':
			if err := r.skipBlockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (r *reader) skipBlockComment() error {
	start := r.line
	depth := 0
	for r.pos < len(r.src) {
		switch {
		case r.src[r.pos] == '(' && r.peekAt(1) == ';':
			depth++
			r.pos += 2
		case r.src[r.pos] == ';' && r.peekAt(1) == ')':
			depth--
			r.pos += 2
			if depth == 0 {
				return nil
			}
		default:
			if r.src[r.pos] == '\n' {
				r.line++
			}
			r.pos++
		}
	}
	return fmt.Errorf("unterminated block comment starting on line %d", start)
}

func (r *reader) readNode() (*node, error) {
	c := r.src[r.pos]
	line := r.line
	switch {
	case c == '(':
		r.pos++
		n := &node{isList: true, line: line}
		for {
			if err := r.skipSpace(); err != nil {
				return nil, err
			}
			if r.pos >= len(r.src) {
				return nil, fmt.Errorf("unclosed ( opened on line %d", line)
			}
			if r.src[r.pos] == ')' {
				r.pos++
				return n, nil
			}
			child, err := r.readNode()
			if err != nil {
				return nil, err
			}
			n.list = append(n.list, child)
		}
	case c == ')':
		return nil, fmt.Errorf("unexpected ) on line %d", line)
	case c == '"':
		return r.readString()
	}

	start := r.pos
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		if c == '(' || c == ')' || c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ';' || c == '"' {
			break
		}
		r.pos++
	}
	return &node{atom: string(r.src[start:r.pos]), line: line}, nil
}

func (r *reader) readString() (*node, error) {
	line := r.line
	r.pos++ // opening quote
	var sb strings.Builder
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		r.pos++
		switch c {
		case '"':
			return &node{atom: sb.String(), quoted: true, line: line}, nil
		case '\n':
			return nil, fmt.Errorf("newline in string on line %d", line)
		case '\\':
			if r.pos >= len(r.src) {
				return nil, fmt.Errorf("unterminated string on line %d", line)
			}
			e := r.src[r.pos]
			r.pos++
			switch e {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '\\', '"', '\'':
				sb.WriteRune(e)
			default:
				return nil, fmt.Errorf("unsupported escape \\%c on line %d", e, line)
			}
		default:
			sb.WriteRune(c)
		}
	}
	return nil, fmt.Errorf("unterminated string on line %d", line)
}
