// Package derive 定义 Clone/Default 合成共用的聚合模型
//
// 一个 Aggregate 对应源码中的一个结构体声明。分类完全基于语法:
// 不做类型检查，也不解析其它包。
package derive

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/printer"
	"go/token"

	"github.com/samber/lo"

	"github.com/donutnomad/derivegen/derive/bound"
	"github.com/donutnomad/derivegen/internal/meta"
)

// TypeParam 声明的类型参数
type TypeParam = bound.Param

// Field 结构体字段，`A, B int` 会展开成两个字段
type Field struct {
	Name     string // 嵌入字段为类型名
	Embedded bool
	Index    int
	Type     string   // 类型源码
	Expr     ast.Expr // 类型语法树
	Attrs    []*meta.Attr
	Pos      token.Position
}

// Blank 是否为 _ 字段
func (f *Field) Blank() bool {
	return f.Name == "_"
}

// Label 诊断中使用的字段名
func (f *Field) Label() string {
	if f.Blank() {
		return fmt.Sprintf("_#%d", f.Index)
	}
	return f.Name
}

// Aggregate 结构体声明
type Aggregate struct {
	Name       string
	Package    string
	File       string
	Pos        token.Position
	TypeParams []TypeParam
	Fields     []*Field
	Attrs      []*meta.Attr // 类型文档注释中的注解
	Imports    Imports      // 所在文件的导入
}

// Source 加载 Aggregate 需要的语法信息
type Source struct {
	Fset    *token.FileSet
	File    string
	Package string
	Spec    *ast.TypeSpec
	Doc     *ast.CommentGroup // TypeSpec.Doc 为空时使用 GenDecl.Doc
	Imports []*ast.ImportSpec

	PackageName PackageNameFunc // 可选，解析导入的真实包名
}

// Load 从类型声明构建 Aggregate，非结构体返回错误
func Load(src Source) (*Aggregate, error) {
	spec := src.Spec
	if spec == nil {
		return nil, fmt.Errorf("类型声明为空")
	}
	if spec.Assign.IsValid() {
		return nil, fmt.Errorf("%s 是类型别名，无法派生", spec.Name.Name)
	}
	st, ok := spec.Type.(*ast.StructType)
	if !ok {
		return nil, fmt.Errorf("%s 不是结构体，无法派生", spec.Name.Name)
	}

	a := &Aggregate{
		Name:    spec.Name.Name,
		Package: src.Package,
		File:    src.File,
		Pos:     src.Fset.Position(spec.Pos()),
		Imports: NewImports(src.Imports, src.PackageName),
	}

	doc := spec.Doc
	if doc == nil {
		doc = src.Doc
	}
	if doc != nil {
		a.Attrs = meta.ParseComment(doc.Text())
	}

	if spec.TypeParams != nil {
		for _, field := range spec.TypeParams.List {
			constraint := exprString(field.Type)
			for _, name := range field.Names {
				a.TypeParams = append(a.TypeParams, TypeParam{Name: name.Name, Constraint: constraint})
			}
		}
	}

	if st.Fields != nil {
		for _, field := range st.Fields.List {
			attrs := fieldAttrs(field)
			typ := exprString(field.Type)
			if len(field.Names) == 0 {
				a.Fields = append(a.Fields, &Field{
					Name:     embeddedName(field.Type),
					Embedded: true,
					Index:    len(a.Fields),
					Type:     typ,
					Expr:     field.Type,
					Attrs:    attrs,
					Pos:      src.Fset.Position(field.Pos()),
				})
				continue
			}
			for _, name := range field.Names {
				a.Fields = append(a.Fields, &Field{
					Name:  name.Name,
					Index: len(a.Fields),
					Type:  typ,
					Expr:  field.Type,
					Attrs: attrs,
					Pos:   src.Fset.Position(name.Pos()),
				})
			}
		}
	}

	return a, nil
}

func fieldAttrs(field *ast.Field) []*meta.Attr {
	var text string
	if field.Doc != nil {
		text = field.Doc.Text()
	}
	if field.Comment != nil {
		text += "\n" + field.Comment.Text()
	}
	if text == "" {
		return nil
	}
	return meta.ParseComment(text)
}

// embeddedName 嵌入字段的访问名: *pkg.Box[T] -> Box
func embeddedName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return embeddedName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return embeddedName(t.X)
	case *ast.IndexListExpr:
		return embeddedName(t.X)
	case *ast.ParenExpr:
		return embeddedName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return exprString(expr)
}

func exprString(expr ast.Expr) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, token.NewFileSet(), expr); err != nil {
		return ""
	}
	return buf.String()
}

// IsGeneric 是否声明了类型参数
func (a *Aggregate) IsGeneric() bool {
	return len(a.TypeParams) > 0
}

// TypeRef 实例化后的类型引用，如 Box[T, K]
func (a *Aggregate) TypeRef() string {
	return a.Name + bound.TypeArgs(a.TypeParams)
}

// ParamSet 类型参数名集合
func (a *Aggregate) ParamSet() map[string]bool {
	return lo.SliceToMap(a.TypeParams, func(p TypeParam) (string, bool) {
		return p.Name, true
	})
}

// Attr 返回类型上指定名称的唯一注解，没有时返回 nil
// 重复注解或注解语法错误返回诊断
func (a *Aggregate) Attr(trait string) (*meta.Attr, error) {
	attrs := meta.Filter(a.Attrs, trait)
	switch {
	case len(attrs) == 0:
		return nil, nil
	case len(attrs) > 1:
		return nil, a.Errorf(trait, "", "重复的 @%s 注解", trait)
	case attrs[0].Err != nil:
		return nil, a.Errorf(trait, "", "%v", attrs[0].Err)
	}
	return attrs[0], nil
}

// FieldAttr 返回字段上指定名称的唯一注解
func (a *Aggregate) FieldAttr(f *Field, trait string) (*meta.Attr, error) {
	attrs := meta.Filter(f.Attrs, trait)
	switch {
	case len(attrs) == 0:
		return nil, nil
	case len(attrs) > 1:
		return nil, a.FieldErrorf(f, trait, "", "重复的 @%s 注解", trait)
	case attrs[0].Err != nil:
		return nil, a.FieldErrorf(f, trait, "", "%v", attrs[0].Err)
	}
	return attrs[0], nil
}
