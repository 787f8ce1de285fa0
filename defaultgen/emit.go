package defaultgen

import (
	"github.com/donutnomad/gg"

	"github.com/donutnomad/derivegen/derive"
	"github.com/donutnomad/derivegen/derive/bound"
)

// Emit 生成 DefaultX，设置 new 时额外生成 NewX
func Emit(gen *gg.Generator, plan *Plan) {
	derive.Register(gen, plan.Imports)

	a := plan.Agg
	ref := a.TypeRef()
	typeParams := bound.TypeParams(a.TypeParams, plan.Bounds)
	name := derive.FuncName("Default", a.Name)

	gen.Body().NewFunction(name+typeParams).
		AddResult("", ref).
		AddBody(gg.Return(gg.S("%s", plan.Value)))

	if !plan.New {
		return
	}
	gen.Body().AddLine()
	gen.Body().NewFunction(derive.FuncName("New", a.Name)+typeParams).
		AddResult("", "*"+ref).
		AddBody(
			gg.S("v := %s%s()", name, bound.TypeArgs(a.TypeParams)),
			gg.Return(gg.S("&v")),
		)
}
