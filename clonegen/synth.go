package clonegen

import (
	"errors"
	"go/ast"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/donutnomad/derivegen/derive"
	"github.com/donutnomad/derivegen/derive/bound"
)

// Plan 一个结构体的 Clone 合成结果
// Clone 与 CloneFrom 由同一次字段遍历得到
type Plan struct {
	Agg      *derive.Aggregate
	Shape    derive.Shape
	FastPath bool
	Bounds   *bound.Set
	Receiver string
	Fields   []*FieldPlan
	Imports  []derive.ImportRef
	Std      []string // 生成代码用到的标准库包，如 slices、maps
}

// FieldPlan 单个字段的克隆表达式与回填语句
type FieldPlan struct {
	Field    *derive.Field
	Strategy Strategy
	Clone    string // Clone 字面量中的值，Record 中的 _ 字段为空
	From     string // CloneFrom 中的语句，_ 字段为空
}

// Synthesize 计算 Clone 与 CloneFrom
// known 为同一个包中派生了 Clone 的非泛型类型
func Synthesize(a *derive.Aggregate, opts *derive.TypeOptions, copyable bool, known map[string]bool) (*Plan, error) {
	if opts == nil {
		opts = &derive.TypeOptions{}
	}

	strategies := make([]Strategy, len(a.Fields))
	var errs []error
	for i, f := range a.Fields {
		s, err := parseFieldStrategy(a, f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		strategies[i] = s
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	overridden := lo.ContainsBy(strategies, func(s Strategy) bool { return s.Kind != Canonical })
	plan := &Plan{
		Agg:      a,
		Shape:    derive.Classify(a.Fields),
		FastPath: copyable && !overridden,
	}

	capability := bound.Clone
	if plan.FastPath {
		capability = bound.Copy
	}
	set, err := bound.Compose(opts.Bound, a.TypeParams, capability)
	if err != nil {
		return nil, a.Errorf(traitClone, "bound", "%v", err)
	}
	plan.Bounds = set

	reserved := []string{"src", "cp"}
	for _, s := range strategies {
		if root := rootIdent(s.Callee()); root != "" {
			reserved = append(reserved, root)
		}
	}
	plan.Receiver = derive.ReceiverName(a, reserved...)

	params := a.ParamSet()
	var std, qualifiers []string
	for i, f := range a.Fields {
		fp := &FieldPlan{Field: f, Strategy: strategies[i]}
		plan.Fields = append(plan.Fields, fp)

		if f.Blank() {
			if plan.Shape == derive.Tuple {
				fp.Clone = derive.ZeroValue(f.Expr, f.Type, params)
				qualifiers = append(qualifiers, derive.Qualifiers(f.Expr)...)
			}
			continue
		}

		dst := plan.Receiver + "." + f.Name
		src := "src." + f.Name

		switch {
		case plan.FastPath:
			fp.Clone = dst
			fp.From = dst + " = " + src
		case fp.Strategy.Kind != Canonical:
			callee := fp.Strategy.Callee()
			fp.Clone = callee + "(" + dst + ")"
			fp.From = dst + " = " + callee + "(" + src + ")"
			qualifiers = append(qualifiers, derive.QualifiersOf(callee)...)
		default:
			c := canonical(f, params, known)
			fp.Clone = c.expr(dst)
			fp.From = c.assign(dst, src)
			if c.std != "" {
				std = append(std, c.std)
			}
		}
	}

	for _, p := range a.TypeParams {
		qualifiers = append(qualifiers, derive.QualifiersOf(p.Constraint)...)
	}
	for _, p := range set.Predicates() {
		if p.Constraint != "" {
			qualifiers = append(qualifiers, derive.QualifiersOf(p.Constraint)...)
		}
	}

	plan.Imports = a.Imports.Resolve(lo.Uniq(qualifiers))
	plan.Std = lo.Uniq(std)
	return plan, nil
}

// canonicalClone 未指定覆盖时按字段类型选择的克隆方式
type canonicalClone struct {
	kind  derive.TypeKind
	known bool // 同包派生了 Clone 的类型
	std   string
}

func canonical(f *derive.Field, params, known map[string]bool) canonicalClone {
	c := canonicalClone{kind: derive.KindOf(f.Expr, params)}
	switch c.kind {
	case derive.KindNamed:
		c.known = isKnown(f.Expr, known)
	case derive.KindPointer:
		c.known = isKnown(f.Expr.(*ast.StarExpr).X, known)
	case derive.KindSlice:
		c.std = "slices"
	case derive.KindMap:
		c.std = "maps"
	}
	return c
}

func (c canonicalClone) expr(v string) string {
	switch {
	case c.kind == derive.KindTypeParam:
		return v + ".Clone()"
	case c.kind == derive.KindNamed && c.known:
		return "*" + v + ".Clone()"
	case c.kind == derive.KindPointer && c.known:
		return v + ".Clone()"
	case c.std != "":
		return c.std + ".Clone(" + v + ")"
	}
	return v
}

func (c canonicalClone) assign(dst, src string) string {
	if c.kind == derive.KindNamed && c.known {
		return dst + ".CloneFrom(&" + src + ")"
	}
	return dst + " = " + c.expr(src)
}

// isKnown 只识别本包未实例化的类型名
func isKnown(expr ast.Expr, known map[string]bool) bool {
	for {
		p, ok := expr.(*ast.ParenExpr)
		if !ok {
			break
		}
		expr = p.X
	}
	ident, ok := expr.(*ast.Ident)
	return ok && known[ident.Name]
}

// rootIdent 表达式开头的标识符: pkg.Fn -> pkg
func rootIdent(s string) string {
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if end < 0 {
		return s
	}
	return s[:end]
}
