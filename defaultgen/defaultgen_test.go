package defaultgen

import (
	"context"
	"errors"
	"go/format"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/donutnomad/gg"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donutnomad/derivegen/derive"
	"github.com/donutnomad/derivegen/derive/derivetest"
	"github.com/donutnomad/derivegen/internal/meta"
	"github.com/donutnomad/derivegen/plugin"
)

func synth(t *testing.T, src, name string) (*Plan, error) {
	t.Helper()
	aggs := derivetest.Parse(t, src)
	known := make(map[string]bool)
	for _, a := range aggs {
		if !a.IsGeneric() && len(meta.Filter(a.Attrs, traitDefault)) > 0 {
			known[a.Name] = true
		}
	}
	a, ok := lo.Find(aggs, func(a *derive.Aggregate) bool { return a.Name == name })
	require.True(t, ok, name)

	attr, err := a.Attr(traitDefault)
	require.NoError(t, err)
	opts, err := derive.ParseTypeOptions(a, traitDefault, attr, typeKeys)
	if err != nil {
		return nil, err
	}
	return Synthesize(a, opts, known)
}

func mustSynth(t *testing.T, src, name string) *Plan {
	t.Helper()
	plan, err := synth(t, src, name)
	require.NoError(t, err)
	return plan
}

func render(t *testing.T, plan *Plan) string {
	t.Helper()
	gen := gg.New()
	gen.SetPackage(plan.Agg.Package)
	Emit(gen, plan)
	out, err := format.Source(gen.Bytes())
	require.NoError(t, err, string(gen.Bytes()))
	return squash(string(out))
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestSynthesize_FieldPrecedence(t *testing.T) {
	src := `package model

import "time"

type Level int

// @Default
type Inner struct {
	N int
}

// @Default
type Config struct {
	// @Default("localhost")
	Host string
	// @Default(value = 8080)
	Port int
	// @Default(expression = "time.Second * 5")
	Timeout time.Duration
	Tags    []string
	Inner   Inner
	Ptr     *Inner
	Any     any
	Arr     [2]int
	Level   Level
	Flag    bool
}
`
	plan := mustSynth(t, src, "Config")
	assert.Equal(t, derive.Record, plan.Shape)
	assert.Equal(t, []derive.ImportRef{{Name: "time", Path: "time"}}, plan.Imports)

	out := squash(plan.Value)
	assert.Equal(t, squash(`Config{
		Host: string("localhost"),
		Port: 8080,
		Timeout: time.Second * 5,
		Tags: nil,
		Inner: DefaultInner(),
		Ptr: nil,
		Any: nil,
		Arr: [2]int{},
		Level: *new(Level),
		Flag: false,
	}`), out)
}

func TestSynthesize_LiteralConversion(t *testing.T) {
	tests := []struct {
		name    string
		convert string
		field   string
		attr    string
		want    string
	}{
		{"string literal", "", "string", `@Default("abc")`, `string("abc")`},
		{"raw string", "", "string", "@Default(`abc`)", "string(`abc`)"},
		{"named string type", "", "Name", `@Default("abc")`, `Name("abc")`},
		{"int literal", "", "int", "@Default(5)", "5"},
		{"float literal", "", "float64", "@Default(1.5)", "1.5"},
		{"bool literal", "", "bool", "@Default(true)", "true"},
		{"rune literal", "", "rune", "@Default('x')", "'x'"},
		{"convert none", `(convert = "none")`, "string", `@Default("abc")`, `"abc"`},
		{"convert string", `(convert = "string")`, "Name", `@Default(value("abc"))`, `Name("abc")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package model\n\ntype Name string\n\n// @Default" + tt.convert +
				"\ntype S struct {\n\t// " + tt.attr + "\n\tV " + tt.field + "\n}\n"
			plan := mustSynth(t, src, "S")
			assert.Equal(t, "S{\nV: "+tt.want+",\n}", plan.Value)
		})
	}
}

func TestSynthesize_TypeExpression(t *testing.T) {
	src := `package model

// @Default(expression = "Point{X: 1, Y: 2}")
type Point struct {
	// @Default
	X int
	Y int
}
`
	plan := mustSynth(t, src, "Point")
	assert.Equal(t, "Point{X: 1, Y: 2}", plan.Value)

	out := render(t, plan)
	assert.Contains(t, out, "func DefaultPoint() Point { return Point{X: 1, Y: 2} }")
}

// 类型级 expression 覆盖整个默认值时，字段选项仍然会被校验
func TestSynthesize_TypeExpressionRejectsFieldOptions(t *testing.T) {
	tests := []struct {
		name  string
		field string
		key   string
	}{
		{"literal", "// @Default(5)", "value"},
		{"expression", `// @Default(expression = "1")`, "expression"},
		{"unknown key", `// @Default(deep = "1")`, "deep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package model\n\n// @Default(expression = \"Point{}\")\ntype Point struct {\n\t" + tt.field + "\n\tX int\n}\n"
			_, err := synth(t, src, "Point")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "类型上的 expression")

			var d *derive.Diagnostic
			require.True(t, errors.As(err, &d))
			assert.Equal(t, "X", d.Field)
			assert.Equal(t, tt.key, d.Key)
		})
	}
}

func TestSynthesize_FieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{"mutually exclusive", `// @Default(5, expression = "6")`, "value 与 expression 互斥"},
		{"duplicate literal", "// @Default(5, value = 6)", "重复的默认值 6"},
		{"duplicate expression", `// @Default(expression = "1", expression = "2")`, "expression: 重复的选项"},
		{"expression as value", "// @Default(value = time.Now())", "需要字面量"},
		{"bad expression", `// @Default(expression = "f(")`, "无效的表达式"},
		{"unknown key", `// @Default(deep = true)`, "deep: 未知选项"},
		{"duplicate annotation", "// @Default(1)\n\t// @Default(2)", "重复的 @Default 注解"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package model\n\n// @Default\ntype Point struct {\n\t" + tt.field + "\n\tX int\n}\n"
			_, err := synth(t, src, "Point")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "@Default Point.X")
		})
	}
}

func TestSynthesize_Unit(t *testing.T) {
	src := `package model

// @Default
type Marker struct{}
`
	plan := mustSynth(t, src, "Marker")
	assert.Equal(t, derive.Unit, plan.Shape)
	assert.Contains(t, render(t, plan), "func DefaultMarker() Marker { return Marker{} }")
}

func TestSynthesize_Tuple(t *testing.T) {
	src := `package model

// @Default
type Inner struct {
	N int
}

// @Default
type Wrapper struct {
	Inner
	_ string
	// @Default(3)
	Count int
}
`
	plan := mustSynth(t, src, "Wrapper")
	assert.Equal(t, derive.Tuple, plan.Shape)
	assert.Equal(t, "Wrapper{\nDefaultInner(),\n\"\",\n3,\n}", plan.Value)
}

func TestSynthesize_GenericWithNew(t *testing.T) {
	src := `package model

// @Default(new)
type Box[T any, K comparable] struct {
	V    T
	Keys map[K]T
}
`
	plan := mustSynth(t, src, "Box")
	require.True(t, plan.New)

	out := render(t, plan)
	assert.Contains(t, out, "func DefaultBox[T any, K comparable]() Box[T, K] { return Box[T, K]{ V: *new(T), Keys: nil, } }")
	assert.Contains(t, out, "func NewBox[T any, K comparable]() *Box[T, K] { v := DefaultBox[T, K]() return &v }")
}

func TestSynthesize_NewForms(t *testing.T) {
	for _, attr := range []string{"@Default(new)", "@Default(new = true)", "@Default(new(true))"} {
		t.Run(attr, func(t *testing.T) {
			src := "package model\n\n// " + attr + "\ntype point struct{ X int }\n"
			plan := mustSynth(t, src, "point")
			out := render(t, plan)
			assert.Contains(t, out, "func defaultPoint() point")
			assert.Contains(t, out, "func newPoint() *point { v := defaultPoint() return &v }")
		})
	}
}

func TestSynthesize_TypeOptionErrors(t *testing.T) {
	tests := []struct {
		attr string
		want string
	}{
		{`@Default(convert = "upper")`, "convert: 可选值为 string 或 none"},
		{`@Default(new = 1)`, "new: new 需要 bool 值"},
		{`@Default(expression = "X{")`, "expression: 无效的表达式"},
		{`@Default(clone = "f")`, "clone: 未知选项"},
		{`@Default(bound = "K: any")`, "bound"},
	}
	for _, tt := range tests {
		t.Run(tt.attr, func(t *testing.T) {
			src := "package model\n\n// " + tt.attr + "\ntype X[T any] struct{ V T }\n"
			_, err := synth(t, src, "X")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGenerate_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.go"), []byte(`package model

import "time"

// @Default(new)
type Config struct {
	// @Default("0.0.0.0")
	Host string
	// @Default(expression = "30 * time.Second")
	Timeout time.Duration
}
`), 0o644))

	reg := plugin.NewRegistry()
	reg.MustRegister(NewDefaultGenerator())
	stats, err := plugin.RunWithOptionsAndStats(context.Background(), &plugin.RunOptions{
		Registry: reg,
		Patterns: []string{dir},
	})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "config_derive.go")}, stats.Files)

	data, err := os.ReadFile(stats.Files[0])
	require.NoError(t, err)
	out := squash(string(data))
	assert.Contains(t, out, `"time"`)
	assert.Contains(t, out, `Host: string("0.0.0.0")`)
	assert.Contains(t, out, "Timeout: 30 * time.Second")
	assert.Contains(t, out, "func NewConfig() *Config")
}

func TestNewDefaultGenerator(t *testing.T) {
	g := NewDefaultGenerator()
	assert.Equal(t, "defaultgen", g.Name())
	assert.Equal(t, []string{"Default"}, g.Annotations())
	assert.Equal(t, 20, g.Priority())
	assert.Len(t, g.ParamDefs(), 5)
}
