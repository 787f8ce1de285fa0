package meta

import (
	"fmt"
	"strings"
)

// Attr 注释中出现的一个 @Name(...) 注解
type Attr struct {
	Name string
	Meta *Meta  // 解析结果，Err 非空时为 nil
	Raw  string // 去掉 @ 的原文
	Line int    // 在注释中的行号，从 0 开始
	Err  error  // 语法错误，由认领该注解的生成器决定是否上报
}

// ParseComment 从注释文本（ast.CommentGroup.Text() 的结果或原始 // 注释）中提取所有注解
// 注解参数可以跨行，括号内的字符串字面量不参与括号匹配
func ParseComment(text string) []*Attr {
	var attrs []*Attr

	for i := 0; i < len(text); i++ {
		if text[i] != '@' || !atWordStart(text, i) {
			continue
		}
		j := i + 1
		for j < len(text) && isIdentByte(text[j], j == i+1) {
			j++
		}
		if j == i+1 {
			continue
		}

		attr := &Attr{
			Name: text[i+1 : j],
			Line: strings.Count(text[:i], "\n"),
		}
		end := j
		if j < len(text) && text[j] == '(' {
			closeAt, err := matchParen(text, j)
			if err != nil {
				lineEnd := strings.IndexByte(text[j:], '\n')
				if lineEnd < 0 {
					lineEnd = len(text) - j
				}
				attr.Raw = text[i+1 : j+lineEnd]
				attr.Err = err
				attrs = append(attrs, attr)
				i = j + lineEnd - 1
				continue
			}
			end = closeAt + 1
		}

		attr.Raw = text[i+1 : end]
		attr.Meta, attr.Err = Parse(attr.Raw)
		attrs = append(attrs, attr)
		i = end - 1
	}

	return attrs
}

// Filter 只保留指定名称的注解
func Filter(attrs []*Attr, names ...string) []*Attr {
	var result []*Attr
	for _, a := range attrs {
		for _, n := range names {
			if a.Name == n {
				result = append(result, a)
				break
			}
		}
	}
	return result
}

func atWordStart(text string, i int) bool {
	if i == 0 {
		return true
	}
	switch text[i-1] {
	case ' ', '\t', '\n', '\r', '/', '*':
		return true
	}
	return false
}

func isIdentByte(c byte, first bool) bool {
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	return !first && c >= '0' && c <= '9'
}

// matchParen 返回与 open 位置左括号匹配的右括号位置
func matchParen(text string, open int) (int, error) {
	depth := 0
	for i := open; i < len(text); i++ {
		switch c := text[i]; c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		case '"', '\'':
			k := i + 1
			for k < len(text) && text[k] != c && text[k] != '\n' {
				if text[k] == '\\' {
					k++
				}
				k++
			}
			if k >= len(text) || text[k] != c {
				return 0, &SyntaxError{Offset: i - open, Msg: "字符串未闭合"}
			}
			i = k
		case '`':
			k := strings.IndexByte(text[i+1:], '`')
			if k < 0 {
				return 0, &SyntaxError{Offset: i - open, Msg: "原始字符串未闭合"}
			}
			i += k + 1
		}
	}
	return 0, &SyntaxError{Offset: len(text) - open, Msg: fmt.Sprintf("缺少右括号 (已打开 %d 层)", depth)}
}
