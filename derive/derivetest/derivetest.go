// Package derivetest 提供从源码片段加载 Aggregate 的测试工具
package derivetest

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/donutnomad/derivegen/derive"
)

// Parse 解析源码并返回所有结构体声明，按出现顺序
func Parse(t testing.TB, src string) []*derive.Aggregate {
	t.Helper()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "model.go", src, parser.ParseComments)
	require.NoError(t, err)

	var result []*derive.Aggregate
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		doc := gen.Doc
		if gen.Lparen.IsValid() {
			doc = nil
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			if _, ok := ts.Type.(*ast.StructType); !ok {
				continue
			}
			a, err := derive.Load(derive.Source{
				Fset:    fset,
				File:    "model.go",
				Package: file.Name.Name,
				Spec:    ts,
				Doc:     doc,
				Imports: file.Imports,
			})
			require.NoError(t, err)
			result = append(result, a)
		}
	}
	return result
}

// Load 解析源码并返回指定名称的结构体
func Load(t testing.TB, src, name string) *derive.Aggregate {
	t.Helper()
	for _, a := range Parse(t, src) {
		if a.Name == name {
			return a
		}
	}
	require.Failf(t, "struct not found", "%s", name)
	return nil
}

// TypeCheck 把文件名 -> 源码作为同一个包做类型检查
func TypeCheck(t testing.TB, files map[string]string) *types.Package {
	t.Helper()

	names := lo.Keys(files)
	slices.Sort(names)
	fset := token.NewFileSet()
	parsed := make([]*ast.File, 0, len(names))
	for _, name := range names {
		f, err := parser.ParseFile(fset, name, files[name], parser.ParseComments)
		require.NoError(t, err, "%s:\n%s", name, files[name])
		parsed = append(parsed, f)
	}
	require.NotEmpty(t, parsed)

	var errs []string
	conf := types.Config{
		Importer: importer.Default(),
		Error: func(err error) {
			errs = append(errs, err.Error())
		},
	}
	pkg, _ := conf.Check(parsed[0].Name.Name, fset, parsed, nil)
	if len(errs) > 0 {
		dump := lo.Map(names, func(name string, _ int) string {
			return "// " + name + "\n" + files[name]
		})
		require.Failf(t, "类型检查失败", "%s\n\n%s", strings.Join(errs, "\n"), strings.Join(dump, "\n"))
	}
	return pkg
}

// TypeCheckDir 对目录中的非测试源文件做类型检查
func TypeCheckDir(t testing.TB, dir string) *types.Package {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	files := make(map[string]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		files[name] = string(data)
	}
	return TypeCheck(t, files)
}
