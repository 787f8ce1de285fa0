package clonegen

import (
	"errors"
	"go/format"
	"strings"
	"testing"

	"github.com/donutnomad/gg"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donutnomad/derivegen/derive"
	"github.com/donutnomad/derivegen/derive/bound"
	"github.com/donutnomad/derivegen/derive/derivetest"
	"github.com/donutnomad/derivegen/internal/meta"
)

// synth 按生成器的方式解析类型注解后合成
func synth(t *testing.T, src, name string) (*Plan, error) {
	t.Helper()
	aggs := derivetest.Parse(t, src)
	known := make(map[string]bool)
	for _, a := range aggs {
		if !a.IsGeneric() && len(meta.Filter(a.Attrs, traitClone)) > 0 {
			known[a.Name] = true
		}
	}
	a, ok := lo.Find(aggs, func(a *derive.Aggregate) bool { return a.Name == name })
	require.True(t, ok, name)

	cloneAttr, err := a.Attr(traitClone)
	require.NoError(t, err)
	copyAttr, err := a.Attr(traitCopy)
	require.NoError(t, err)
	opts, err := derive.ParseTypeOptions(a, traitClone, cloneAttr, derive.KeyBound|derive.KeyOutput)
	if err != nil {
		return nil, err
	}
	return Synthesize(a, opts, copyAttr != nil, known)
}

func mustSynth(t *testing.T, src, name string) *Plan {
	t.Helper()
	plan, err := synth(t, src, name)
	require.NoError(t, err)
	return plan
}

func clones(plan *Plan) []string {
	return lo.Map(plan.Fields, func(fp *FieldPlan, _ int) string { return fp.Clone })
}

func froms(plan *Plan) []string {
	return lo.Map(plan.Fields, func(fp *FieldPlan, _ int) string { return fp.From })
}

// renderSource 输出格式化后的代码
func renderSource(t *testing.T, plan *Plan) string {
	t.Helper()
	gen := gg.New()
	gen.SetPackage(plan.Agg.Package)
	Emit(gen, plan)
	out, err := format.Source(gen.Bytes())
	require.NoError(t, err, string(gen.Bytes()))
	return string(out)
}

// render 同 renderSource，空白压缩为单个空格
func render(t *testing.T, plan *Plan) string {
	t.Helper()
	return squash(renderSource(t, plan))
}

// assertCompiles 生成代码与源码一起通过类型检查
func assertCompiles(t *testing.T, src string, plan *Plan) {
	t.Helper()
	derivetest.TypeCheck(t, map[string]string{
		"model.go":        src,
		"model_derive.go": renderSource(t, plan),
	})
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestSynthesize_Overrides(t *testing.T) {
	src := `package model

// @Clone
type X struct {
	A int
	// @Clone(clone = "f")
	B []string
	// @Clone(clone(trait = "Trait", method = "Method"))
	C map[string]int
}
`
	plan := mustSynth(t, src, "X")

	assert.False(t, plan.FastPath)
	assert.Equal(t, derive.Record, plan.Shape)
	assert.Equal(t, "x", plan.Receiver)
	assert.Equal(t, []string{"x.A", "f(x.B)", "Trait.Method(x.C)"}, clones(plan))
	assert.Equal(t, []string{"x.A = src.A", "x.B = f(src.B)", "x.C = Trait.Method(src.C)"}, froms(plan))
	assert.Empty(t, plan.Std)

	out := render(t, plan)
	assert.Contains(t, out, "func (x *X) Clone() *X { if x == nil { return nil } return &X{ A: x.A, B: f(x.B), C: Trait.Method(x.C), } }")
	assert.Contains(t, out, "func (x *X) CloneFrom(src *X) { x.A = src.A x.B = f(src.B) x.C = Trait.Method(src.C) }")
}

func TestSynthesize_StrategyForms(t *testing.T) {
	tests := []struct {
		name string
		attr string
		want Strategy
	}{
		{"name value", `@Clone(clone = "deep")`, Strategy{Kind: Method, Func: "deep"}},
		{"bare ident", `@Clone(clone(deep))`, Strategy{Kind: Method, Func: "deep"}},
		{"string", `@Clone(clone("util.Deep"))`, Strategy{Kind: Method, Func: "util.Deep"}},
		{"method only", `@Clone(clone(method = "deep"))`, Strategy{Kind: Method, Func: "deep"}},
		{"trait default method", `@Clone(clone(trait = "Cloner"))`, Strategy{Kind: Trait, Trait: "Cloner", Method: "Clone"}},
		{"trait and method", `@Clone(clone(trait = "Cloner", method = "Copy"))`, Strategy{Kind: Trait, Trait: "Cloner", Method: "Copy"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package model\n\n// @Clone\ntype S struct {\n\t// " + tt.attr + "\n\tV int\n}\n"
			plan := mustSynth(t, src, "S")
			require.Len(t, plan.Fields, 1)
			assert.Equal(t, tt.want, plan.Fields[0].Strategy)
		})
	}
}

// 同一个字段在 Clone 与 CloneFrom 中必须使用同一个调用
func TestSynthesize_Consistency(t *testing.T) {
	src := `package model

// @Clone
type Mixed struct {
	Name string
	// @Clone(clone = "strings.Clone")
	Label string
	// @Clone(clone(trait = "Deep"))
	Items []int
	Tags  []string
	Meta  map[string]string
}
`
	plan := mustSynth(t, src, "Mixed")
	for _, fp := range plan.Fields {
		dst := plan.Receiver + "." + fp.Field.Name
		src := "src." + fp.Field.Name
		if fp.Strategy.Kind == Canonical {
			assert.Equal(t, dst+" = "+strings.ReplaceAll(fp.Clone, dst, src), fp.From, fp.Field.Name)
			continue
		}
		callee := fp.Strategy.Callee()
		assert.Equal(t, callee+"("+dst+")", fp.Clone, fp.Field.Name)
		assert.Equal(t, dst+" = "+callee+"("+src+")", fp.From, fp.Field.Name)
	}
	assert.ElementsMatch(t, []string{"slices", "maps"}, plan.Std)
}

func TestSynthesize_Unit(t *testing.T) {
	src := `package model

// @Clone
type Empty struct{}
`
	plan := mustSynth(t, src, "Empty")
	assert.Equal(t, derive.Unit, plan.Shape)
	assert.Empty(t, plan.Fields)

	out := render(t, plan)
	assert.Contains(t, out, "return &Empty{}")
	assert.Regexp(t, `func \(e \*Empty\) CloneFrom\(src \*Empty\) \{ ?\}`, out)
	assertCompiles(t, src, plan)
}

func TestSynthesize_BlankOnlyRecord(t *testing.T) {
	src := `package model

// @Clone
type Pad struct {
	_ int
}
`
	plan := mustSynth(t, src, "Pad")
	assert.Equal(t, []string{""}, froms(plan))

	out := render(t, plan)
	assert.Contains(t, out, "return &Pad{}")
	assert.Regexp(t, `func \(p \*Pad\) CloneFrom\(src \*Pad\) \{ ?\}`, out)
	assertCompiles(t, src, plan)
}

func TestSynthesize_TupleAndKnownTypes(t *testing.T) {
	src := `package model

// @Clone
type Inner struct {
	N int
}

// @Clone
type Pair struct {
	Inner
	_    int
	Tags []string
	Next *Inner
}
`
	plan := mustSynth(t, src, "Pair")
	assert.Equal(t, derive.Tuple, plan.Shape)
	assert.Equal(t, []string{"*p.Inner.Clone()", "0", "slices.Clone(p.Tags)", "p.Next.Clone()"}, clones(plan))
	assert.Equal(t, []string{
		"p.Inner.CloneFrom(&src.Inner)",
		"",
		"p.Tags = slices.Clone(src.Tags)",
		"p.Next = src.Next.Clone()",
	}, froms(plan))
	assert.Equal(t, []string{"slices"}, plan.Std)

	out := render(t, plan)
	assert.Contains(t, out, "return &Pair{ *p.Inner.Clone(), 0, slices.Clone(p.Tags), p.Next.Clone(), }")
	assert.Contains(t, out, `"slices"`)
}

func TestSynthesize_RecordSkipsBlank(t *testing.T) {
	src := `package model

// @Clone
type Padded struct {
	A int
	_ [4]byte
	B int
}
`
	plan := mustSynth(t, src, "Padded")
	out := render(t, plan)
	assert.Contains(t, out, "return &Padded{ A: p.A, B: p.B, }")
	assert.Contains(t, out, "func (p *Padded) CloneFrom(src *Padded) { p.A = src.A p.B = src.B }")
}

func TestSynthesize_CopyFastPath(t *testing.T) {
	src := `package model

// @Clone
// @Copy
type Box[T any] struct {
	V T
	N int
}
`
	plan := mustSynth(t, src, "Box")
	require.True(t, plan.FastPath)
	assert.Equal(t, []string{"b.V = src.V", "b.N = src.N"}, froms(plan))

	for _, p := range plan.Bounds.Predicates() {
		assert.Equal(t, bound.Copy, p.Capability)
	}
	assert.Equal(t, "[T any]", bound.TypeParams(plan.Agg.TypeParams, plan.Bounds))

	out := render(t, plan)
	assert.Contains(t, out, "func CloneBox[T any](b *Box[T]) *Box[T] { if b == nil { return nil } cp := *b return &cp }")
	// gofmt 合并相邻同类型参数
	assert.Contains(t, out, "func CloneBoxFrom[T any](b, src *Box[T]) { b.V = src.V b.N = src.N }")
}

func TestSynthesize_CopyWithOverrideUsesGeneralPath(t *testing.T) {
	src := `package model

// @Clone
// @Copy
type Pt struct {
	X int
	// @Clone(clone = "clamp")
	Y int
}
`
	plan := mustSynth(t, src, "Pt")
	assert.False(t, plan.FastPath)
	assert.Equal(t, []string{"p.X", "clamp(p.Y)"}, clones(plan))
}

func TestSynthesize_GenericBounds(t *testing.T) {
	tests := []struct {
		name   string
		attr   string
		params string
		clone  string
	}{
		{"auto", "@Clone", "[T interface{ Clone() T }]", "s.V.Clone()"},
		{"explicit auto", "@Clone(bound)", "[T interface{ Clone() T }]", "s.V.Clone()"},
		{"text", `@Clone(bound = "T: comparable")`, "[T comparable]", "s.V.Clone()"},
		{"none", "@Clone(bound())", "[T any]", "s.V.Clone()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package model\n\n// " + tt.attr + "\ntype Store[T any] struct {\n\tV T\n}\n"
			plan := mustSynth(t, src, "Store")
			assert.Equal(t, tt.params, bound.TypeParams(plan.Agg.TypeParams, plan.Bounds))
			assert.Equal(t, []string{tt.clone}, clones(plan))
		})
	}
}

func TestSynthesize_UnexportedGeneric(t *testing.T) {
	src := `package model

// @Clone
type pair[K comparable, V any] struct {
	Key K
	Val V
}
`
	out := render(t, mustSynth(t, src, "pair"))
	// 多个元素的接口被 gofmt 拆成多行
	assert.Regexp(t, `func clonePair\[K interface ?\{ ?comparable;? Clone\(\) K ?\}, V interface ?\{ ?Clone\(\) V ?\}\]\(p \*pair\[K, V\]\) \*pair\[K, V\]`, out)
	assert.Contains(t, out, "func clonePairFrom[")
}

func TestSynthesize_ReceiverAvoidsCallee(t *testing.T) {
	src := `package model

// @Clone
type Frame struct {
	// @Clone(clone = "f")
	Data []byte
}
`
	plan := mustSynth(t, src, "Frame")
	assert.Equal(t, "x", plan.Receiver)
	assert.Equal(t, []string{"f(x.Data)"}, clones(plan))
}

func TestSynthesize_Imports(t *testing.T) {
	src := `package model

import (
	"bytes"
	myslices "golang.org/x/exp/slices"
)

// @Clone
type Doc struct {
	// @Clone(clone = "bytes.Clone")
	Body []byte
	// @Clone(clone = "myslices.Clone")
	Lines []string
}
`
	plan := mustSynth(t, src, "Doc")
	assert.ElementsMatch(t, []derive.ImportRef{
		{Name: "bytes", Path: "bytes"},
		{Name: "myslices", Path: "golang.org/x/exp/slices", Alias: true},
	}, plan.Imports)
}

func TestSynthesize_Errors(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{"bare field annotation", "// @Clone", "字段注解需要 clone 选项"},
		{"missing value", "// @Clone(clone)", "clone: 缺少值"},
		{"unknown key", `// @Clone(deep = "f")`, "deep: 未知选项"},
		{"positional", `// @Clone("f")`, "不接受位置参数"},
		{"duplicate key", `// @Clone(clone = "f", clone = "g")`, "clone: 重复的选项"},
		{"mixed", `// @Clone(clone(f, trait = "T"))`, "函数值不能与 trait/method 子选项混用"},
		{"two functions", `// @Clone(clone(f, g))`, "只能指定一个函数"},
		{"unknown sub key", `// @Clone(clone(kind = "x"))`, "未知的子选项 kind"},
		{"duplicate sub key", `// @Clone(clone(trait = "A", trait = "B"))`, "重复的子选项 trait"},
		{"not a function", `// @Clone(clone = 5)`, "需要函数名"},
		{"bad expression", `// @Clone(clone = "f(")`, "无效的表达式"},
		{"copy on field", "// @Copy", "@Copy 只能用于类型声明"},
		{"duplicate annotation", "// @Clone(clone = \"f\")\n\t// @Clone(clone = \"g\")", "重复的 @Clone 注解"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package model\n\n// @Clone\ntype Point struct {\n\t" + tt.field + "\n\tTags []string\n}\n"
			_, err := synth(t, src, "Point")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var d *derive.Diagnostic
			require.True(t, errors.As(err, &d))
			assert.Equal(t, "Point", d.Type)
			assert.Equal(t, "Tags", d.Field)
		})
	}
}

func TestSynthesize_CollectsAllFieldErrors(t *testing.T) {
	src := `package model

// @Clone
type Two struct {
	// @Clone
	A int
	// @Clone(clone = 1)
	B int
}
`
	_, err := synth(t, src, "Two")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Two.A")
	assert.Contains(t, err.Error(), "Two.B")
}

func TestSynthesize_BoundErrors(t *testing.T) {
	src := `package model

// @Clone(bound = "K: comparable")
type One[T any] struct {
	V T
}
`
	_, err := synth(t, src, "One")
	require.Error(t, err)
	var d *derive.Diagnostic
	require.True(t, errors.As(err, &d))
	assert.Equal(t, "bound", d.Key)
}
