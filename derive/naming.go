package derive

import (
	"go/ast"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/donutnomad/derivegen/internal/utils"
)

// FuncName 生成函数名，导出性与类型一致: (Clone, Box) -> CloneBox, (Clone, box) -> cloneBox
func FuncName(prefix, typeName string) string {
	name := prefix + utils.UpperFirst(typeName)
	if ast.IsExported(typeName) {
		return name
	}
	return utils.LowerFirst(name)
}

// ReceiverName 选择不与限定名、类型参数以及生成代码中局部变量冲突的接收者名
func ReceiverName(a *Aggregate, reserved ...string) string {
	taken := make(map[string]bool)
	for name := range a.Imports {
		taken[name] = true
	}
	for _, p := range a.TypeParams {
		taken[p.Name] = true
	}
	for _, r := range reserved {
		taken[r] = true
	}

	first, _ := utf8.DecodeRuneInString(a.Name)
	candidates := []string{string(unicode.ToLower(first)), "x", "self"}
	for _, c := range candidates {
		if c != "_" && !taken[c] && isPlainIdent(c) {
			return c
		}
	}
	return "this"
}

func isPlainIdent(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	}) < 0
}
