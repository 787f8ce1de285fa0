package defaultgen

import (
	"errors"
	"go/ast"

	"github.com/samber/lo"

	"github.com/donutnomad/derivegen/derive"
	"github.com/donutnomad/derivegen/derive/bound"
)

// Plan 一个结构体的 Default 合成结果
type Plan struct {
	Agg     *derive.Aggregate
	Shape   derive.Shape
	Bounds  *bound.Set
	Value   string // DefaultX 返回的表达式
	New     bool   // 是否生成 NewX
	Imports []derive.ImportRef
}

// Synthesize 计算默认值表达式
// known 为同一个包中派生了 Default 的非泛型类型
func Synthesize(a *derive.Aggregate, opts *derive.TypeOptions, known map[string]bool) (*Plan, error) {
	if opts == nil {
		opts = &derive.TypeOptions{}
	}

	override := opts.Expression != ""
	defaults := make([]FieldDefault, len(a.Fields))
	var errs []error
	for i, f := range a.Fields {
		d, err := parseFieldDefault(a, f, !override)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		defaults[i] = d
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	set, err := bound.Compose(opts.Bound, a.TypeParams, bound.Default)
	if err != nil {
		return nil, a.Errorf(traitDefault, "bound", "%v", err)
	}

	plan := &Plan{
		Agg:    a,
		Shape:  derive.Classify(a.Fields),
		Bounds: set,
		New:    opts.New,
	}

	var qualifiers []string
	for _, p := range a.TypeParams {
		qualifiers = append(qualifiers, derive.QualifiersOf(p.Constraint)...)
	}
	for _, p := range set.Predicates() {
		if p.Constraint != "" {
			qualifiers = append(qualifiers, derive.QualifiersOf(p.Constraint)...)
		}
	}

	if override {
		plan.Value = opts.Expression
		qualifiers = append(qualifiers, derive.QualifiersOf(opts.Expression)...)
		plan.Imports = a.Imports.Resolve(lo.Uniq(qualifiers))
		return plan, nil
	}

	params := a.ParamSet()
	values := make([]string, len(a.Fields))
	for i, f := range a.Fields {
		d := defaults[i]
		if f.Blank() && plan.Shape == derive.Record {
			continue
		}
		switch {
		case d.Literal != nil:
			values[i] = d.Literal.Text
			if d.Literal.IsString() && opts.Convert == derive.ConvertString {
				values[i] = derive.Convert(f.Expr, f.Type, d.Literal.Text)
				qualifiers = append(qualifiers, derive.Qualifiers(f.Expr)...)
			}
		case d.Expression != "":
			values[i] = d.Expression
			qualifiers = append(qualifiers, derive.QualifiersOf(d.Expression)...)
		default:
			values[i] = canonical(f, params, known)
			qualifiers = append(qualifiers, derive.Qualifiers(f.Expr)...)
		}
	}

	plan.Value = derive.Literal(a.TypeRef(), plan.Shape, a.Fields, values)
	plan.Imports = a.Imports.Resolve(lo.Uniq(qualifiers))
	return plan, nil
}

// canonical 未指定默认值时: 同包派生了 Default 的类型调用其构造函数，其它取零值
func canonical(f *derive.Field, params, known map[string]bool) string {
	if ident, ok := f.Expr.(*ast.Ident); ok && !params[ident.Name] && known[ident.Name] {
		return derive.FuncName("Default", ident.Name) + "()"
	}
	return derive.ZeroValue(f.Expr, f.Type, params)
}
