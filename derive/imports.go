package derive

import (
	"go/ast"
	"go/parser"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/donutnomad/gg"
	"github.com/samber/lo"
)

// ImportRef 源文件中的一条导入
type ImportRef struct {
	Name  string // 代码中使用的限定名
	Path  string
	Alias bool // 是否显式指定了别名
}

// Imports 限定名 -> 导入
type Imports map[string]ImportRef

var versionSuffixRegex = regexp.MustCompile(`^v[0-9]+$`)

// PackageNameFunc 解析导入路径对应的真实包名，找不到时返回 false
type PackageNameFunc func(importPath string) (string, bool)

// NewImports 从文件的 import 声明构建，忽略 _ 与 . 导入
// packageName 为空或无法解析时按惯例推断包名
func NewImports(specs []*ast.ImportSpec, packageName PackageNameFunc) Imports {
	result := make(Imports, len(specs))
	for _, spec := range specs {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		if spec.Name != nil {
			if spec.Name.Name == "_" || spec.Name.Name == "." {
				continue
			}
			result[spec.Name.Name] = ImportRef{Name: spec.Name.Name, Path: p, Alias: true}
			continue
		}
		name, ok := "", false
		if packageName != nil {
			name, ok = packageName(p)
		}
		if !ok {
			name = guessPackageName(p)
		}
		result[name] = ImportRef{Name: name, Path: p}
	}
	return result
}

// guessPackageName 按惯例从导入路径推断包名: github.com/x/go-yaml/v3 -> yaml
func guessPackageName(importPath string) string {
	base := path.Base(importPath)
	if versionSuffixRegex.MatchString(base) {
		if dir := path.Dir(importPath); dir != "." {
			base = path.Base(dir)
		}
	}
	base = strings.TrimPrefix(base, "go-")
	base = strings.TrimSuffix(base, ".go")
	return strings.NewReplacer("-", "", ".", "").Replace(base)
}

// Qualifiers 收集语法树中 pkg.Name 形式引用的限定名
func Qualifiers(node ast.Node) []string {
	var names []string
	ast.Inspect(node, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if ident, ok := sel.X.(*ast.Ident); ok {
				names = append(names, ident.Name)
			}
		}
		return true
	})
	return lo.Uniq(names)
}

// QualifiersOf 解析表达式源码后收集限定名，无法解析时返回 nil
func QualifiersOf(src string) []string {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return nil
	}
	return Qualifiers(expr)
}

// Resolve 返回限定名对应的导入，未知的限定名（局部变量、字段访问）被忽略
func (im Imports) Resolve(qualifiers []string) []ImportRef {
	var refs []ImportRef
	for _, q := range qualifiers {
		if ref, ok := im[q]; ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Register 在输出中登记导入，包名与路径末段不一致时显式写出别名
func Register(gen *gg.Generator, refs []ImportRef) {
	for _, ref := range refs {
		if ref.Alias || ref.Name != path.Base(ref.Path) {
			gen.PAlias(ref.Path, ref.Name)
		} else {
			gen.P(ref.Path)
		}
	}
}
