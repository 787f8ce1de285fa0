package meta

import (
	"fmt"
	goparser "go/parser"
	"go/scanner"
	"go/token"
	"strings"
)

// SyntaxError 注解语法错误
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("注解语法错误 (偏移 %d): %s", e.Offset, e.Msg)
}

type lexeme struct {
	tok token.Token
	lit string
	off int
	end int
}

// Parse 解析不带 @ 前缀的注解文本，如 `Clone(bound, clone = "f")`
func Parse(src string) (*Meta, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	if p.peek().tok != token.IDENT {
		return nil, p.errorf(p.peek(), "注解必须以标识符开头")
	}
	m, err := p.parseMeta()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.tok != token.EOF {
		return nil, p.errorf(t, "多余的内容 %q", p.src[t.off:])
	}
	return m, nil
}

func lex(src string) ([]lexeme, error) {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))

	var lexErr error
	var s scanner.Scanner
	s.Init(file, []byte(src), func(pos token.Position, msg string) {
		if lexErr == nil {
			lexErr = &SyntaxError{Offset: pos.Offset, Msg: msg}
		}
	}, 0)

	var toks []lexeme
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		// 换行处自动插入的分号对注解没有意义
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		off := file.Offset(pos)
		if tok == token.ILLEGAL {
			return nil, &SyntaxError{Offset: off, Msg: fmt.Sprintf("非法字符 %q", lit)}
		}
		text := lit
		if text == "" {
			text = tok.String()
		}
		toks = append(toks, lexeme{tok: tok, lit: lit, off: off, end: off + len(text)})
	}
	if lexErr != nil {
		return nil, lexErr
	}
	return toks, nil
}

type parser struct {
	src  string
	toks []lexeme
	pos  int
}

func (p *parser) peekN(n int) lexeme {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return lexeme{tok: token.EOF, off: len(p.src), end: len(p.src)}
}

func (p *parser) peek() lexeme {
	return p.peekN(0)
}

func (p *parser) next() lexeme {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t lexeme, format string, args ...any) error {
	return &SyntaxError{Offset: t.off, Msg: fmt.Sprintf(format, args...)}
}

// parseMeta 解析 key / key(...) / key = value
func (p *parser) parseMeta() (*Meta, error) {
	name := p.next()
	m := &Meta{Name: name.lit, Offset: name.off}

	switch p.peek().tok {
	case token.LPAREN:
		p.next()
		items, err := p.parseItems()
		if err != nil {
			return nil, err
		}
		m.Kind = KindList
		m.Items = items
	case token.ASSIGN:
		p.next()
		lit, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		m.Kind = KindNameValue
		m.Lit = lit
	default:
		m.Kind = KindPath
	}
	return m, nil
}

// parseItems 解析列表内容，直到匹配的右括号（会消费右括号）
func (p *parser) parseItems() ([]*Meta, error) {
	var items []*Meta
	for {
		t := p.peek()
		switch t.tok {
		case token.RPAREN:
			p.next()
			return items, nil
		case token.EOF:
			return nil, p.errorf(t, "缺少右括号")
		case token.COMMA:
			return nil, p.errorf(t, "多余的逗号")
		}

		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		switch t := p.peek(); t.tok {
		case token.COMMA:
			p.next()
		case token.RPAREN:
		default:
			return nil, p.errorf(t, "需要逗号或右括号，得到 %q", p.src[t.off:t.end])
		}
	}
}

func (p *parser) parseItem() (*Meta, error) {
	t := p.peek()
	if t.tok == token.IDENT {
		switch p.peekN(1).tok {
		case token.LPAREN, token.ASSIGN:
			return p.parseMeta()
		case token.COMMA, token.RPAREN, token.EOF:
			p.next()
			if t.lit == "true" || t.lit == "false" {
				return &Meta{Kind: KindLit, Lit: &Lit{Kind: LitBool, Text: t.lit}, Offset: t.off}, nil
			}
			return &Meta{Kind: KindPath, Name: t.lit, Offset: t.off}, nil
		}
	}
	lit, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &Meta{Kind: KindLit, Lit: lit, Offset: t.off}, nil
}

func isDelim(t lexeme) bool {
	return t.tok == token.COMMA || t.tok == token.RPAREN || t.tok == token.EOF
}

func litKindOf(tok token.Token) (LitKind, bool) {
	switch tok {
	case token.INT:
		return LitInt, true
	case token.FLOAT:
		return LitFloat, true
	case token.IMAG:
		return LitImag, true
	case token.CHAR:
		return LitChar, true
	case token.STRING:
		return LitString, true
	}
	return 0, false
}

// parseValue 解析单个字面量，或者一直读到顶层的逗号/右括号作为表达式
func (p *parser) parseValue() (*Lit, error) {
	start := p.peek()
	if isDelim(start) {
		return nil, p.errorf(start, "缺少值")
	}

	if kind, ok := litKindOf(start.tok); ok && isDelim(p.peekN(1)) {
		p.next()
		if kind == LitString && strings.HasPrefix(start.lit, "`") {
			kind = LitRawString
		}
		return &Lit{Kind: kind, Text: start.lit}, nil
	}
	if start.tok == token.IDENT && (start.lit == "true" || start.lit == "false") && isDelim(p.peekN(1)) {
		p.next()
		return &Lit{Kind: LitBool, Text: start.lit}, nil
	}
	if start.tok == token.SUB && isDelim(p.peekN(2)) {
		if kind, ok := litKindOf(p.peekN(1).tok); ok && kind != LitString && kind != LitChar {
			p.next()
			num := p.next()
			return &Lit{Kind: kind, Text: "-" + num.lit}, nil
		}
	}

	depth := 0
	end := start.off
	for {
		t := p.peek()
		if t.tok == token.EOF {
			if depth > 0 {
				return nil, p.errorf(t, "括号不匹配")
			}
			break
		}
		if depth == 0 && (t.tok == token.COMMA || t.tok == token.RPAREN) {
			break
		}
		switch t.tok {
		case token.LPAREN, token.LBRACK, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACK, token.RBRACE:
			depth--
			if depth < 0 {
				return nil, p.errorf(t, "括号不匹配")
			}
		}
		end = t.end
		p.next()
	}
	text := strings.TrimSpace(p.src[start.off:end])
	if _, err := goparser.ParseExpr(text); err != nil {
		return nil, p.errorf(start, "无效的表达式 %q", text)
	}
	return &Lit{Kind: LitExpr, Text: text}, nil
}
