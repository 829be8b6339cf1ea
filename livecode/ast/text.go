package ast

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ZanzyTHEbar/livecode/livecode/common"
)

// Format renders n on a single line: lists in parentheses, leaves bare unless
// they need quoting.
func Format(n Node) string {
	var b strings.Builder
	writeInline(&b, n)
	return b.String()
}

// FormatPretty renders n over several lines. A list that fits in width columns
// stays on one line; otherwise its head stays on the opening line and each
// remaining child goes on its own line, indented by two spaces.
func FormatPretty(n Node, width int) string {
	var b strings.Builder
	writePretty(&b, n, 0, width)
	b.WriteByte('\n')
	return b.String()
}

func writeInline(b *strings.Builder, n Node) {
	switch x := n.(type) {
	case Leaf:
		b.WriteString(quoteLeaf(string(x)))
	case List:
		b.WriteByte('(')
		for i, child := range x {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeInline(b, child)
		}
		b.WriteByte(')')
	}
}

func writePretty(b *strings.Builder, n Node, indent, width int) {
	inline := Format(n)
	l, isList := n.(List)
	if !isList || len(l) < 2 || indent+utf8.RuneCountInString(inline) <= width {
		b.WriteString(inline)
		return
	}
	b.WriteByte('(')
	writeInline(b, l[0])
	for _, child := range l[1:] {
		b.WriteByte('\n')
		b.WriteString(strings.Repeat(" ", indent+2))
		writePretty(b, child, indent+2, width)
	}
	b.WriteByte(')')
}

func quoteLeaf(s string) string {
	if s == "" {
		return `""`
	}
	for _, r := range s {
		if isDelimiter(r) || !unicode.IsPrint(r) {
			return strconv.Quote(s)
		}
	}
	return s
}

func isDelimiter(r rune) bool {
	return unicode.IsSpace(r) || r == '(' || r == ')' || r == '"' || r == ';'
}

// Parse reads every top-level form in src. Line comments start with ';'.
func Parse(src string) ([]Node, error) {
	p := &parser{src: src, line: 1, col: 1}
	var forms []Node
	for {
		p.skipSpace()
		if p.eof() {
			return forms, nil
		}
		n, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		forms = append(forms, n)
	}
}

// ParseOne reads exactly one form from src.
func ParseOne(src string) (Node, error) {
	forms, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(forms) != 1 {
		return nil, common.Wrap(common.ErrMalformedTree, "expected exactly one form, got %d", len(forms))
	}
	return forms[0], nil
}

type parser struct {
	src       string
	pos       int
	line, col int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	r, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	return r
}

func (p *parser) next() rune {
	r, size := utf8.DecodeRuneInString(p.src[p.pos:])
	p.pos += size
	if r == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
	return r
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return common.Wrap(common.ErrMalformedTree, "%d:%d: %s", p.line, p.col, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for !p.eof() {
		r := p.peek()
		switch {
		case unicode.IsSpace(r):
			p.next()
		case r == ';':
			for !p.eof() && p.peek() != '\n' {
				p.next()
			}
		default:
			return
		}
	}
}

func (p *parser) parseNode() (Node, error) {
	switch r := p.peek(); r {
	case '(':
		p.next()
		list := List{}
		for {
			p.skipSpace()
			if p.eof() {
				return nil, p.errorf("unclosed list")
			}
			if p.peek() == ')' {
				p.next()
				return list, nil
			}
			child, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			list = append(list, child)
		}
	case ')':
		return nil, p.errorf("unexpected ')'")
	case '"':
		return p.parseQuoted()
	default:
		start := p.pos
		for !p.eof() && !isDelimiter(p.peek()) {
			p.next()
		}
		return Leaf(p.src[start:p.pos]), nil
	}
}

func (p *parser) parseQuoted() (Node, error) {
	start := p.pos
	p.next()
	escaped := false
	for !p.eof() {
		r := p.next()
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			text, err := strconv.Unquote(p.src[start:p.pos])
			if err != nil {
				return nil, p.errorf("bad string literal: %v", err)
			}
			return Leaf(text), nil
		}
	}
	return nil, p.errorf("unterminated string")
}
