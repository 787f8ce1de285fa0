package clonegen

import (
	"github.com/donutnomad/gg"

	"github.com/donutnomad/derivegen/derive"
	"github.com/donutnomad/derivegen/derive/bound"
)

// Emit 把合成结果写入 gen
// 非泛型类型生成 Clone/CloneFrom 方法，泛型类型生成 CloneX/CloneXFrom 函数
func Emit(gen *gg.Generator, plan *Plan) {
	for _, pkg := range plan.Std {
		gen.P(pkg)
	}
	derive.Register(gen, plan.Imports)

	a := plan.Agg
	r := plan.Receiver
	ptr := "*" + a.TypeRef()

	cloneBody := []any{
		gg.If(gg.S("%s == nil", r)).AddBody(gg.Return(gg.S("nil"))),
	}
	cloneBody = append(cloneBody, cloneStatements(plan)...)

	fromBody := make([]any, 0, len(plan.Fields))
	for _, fp := range plan.Fields {
		if fp.From != "" {
			fromBody = append(fromBody, gg.S("%s", fp.From))
		}
	}
	// 没有可复制的字段时也要输出函数体
	if len(fromBody) == 0 {
		fromBody = append(fromBody, gg.Line())
	}

	if !a.IsGeneric() {
		gen.Body().NewFunction("Clone").
			WithReceiver(r, ptr).
			AddResult("", ptr).
			AddBody(cloneBody...)
		gen.Body().AddLine()
		gen.Body().NewFunction("CloneFrom").
			WithReceiver(r, ptr).
			AddParameter("src", ptr).
			AddBody(fromBody...)
		return
	}

	typeParams := bound.TypeParams(a.TypeParams, plan.Bounds)
	name := derive.FuncName("Clone", a.Name)
	gen.Body().NewFunction(name+typeParams).
		AddParameter(r, ptr).
		AddResult("", ptr).
		AddBody(cloneBody...)
	gen.Body().AddLine()
	gen.Body().NewFunction(name+"From"+typeParams).
		AddParameter(r, ptr).
		AddParameter("src", ptr).
		AddBody(fromBody...)
}

func cloneStatements(plan *Plan) []any {
	r := plan.Receiver
	if plan.FastPath {
		return []any{
			gg.S("cp := *%s", r),
			gg.Return(gg.S("&cp")),
		}
	}

	values := make([]string, len(plan.Fields))
	for i, fp := range plan.Fields {
		values[i] = fp.Clone
	}
	lit := derive.Literal(plan.Agg.TypeRef(), plan.Shape, plan.Agg.Fields, values)
	return []any{gg.Return(gg.S("&%s", lit))}
}
