package derive

import (
	"fmt"
	"go/token"
	"strings"
)

// Diagnostic 定位到注解的生成错误
// 格式: file:line:col: @Clone Point.B: clone: 具体原因
type Diagnostic struct {
	Pos   token.Position
	Trait string // Clone / Copy / Default
	Type  string // 聚合类型名
	Field string // 字段名，类型级错误为空
	Key   string // 出错的选项名
	Msg   string
}

func (d *Diagnostic) Error() string {
	var sb strings.Builder
	if d.Pos.IsValid() {
		sb.WriteString(d.Pos.String())
		sb.WriteString(": ")
	}
	if d.Trait != "" {
		sb.WriteString("@" + d.Trait + " ")
	}
	sb.WriteString(d.Type)
	if d.Field != "" {
		sb.WriteString("." + d.Field)
	}
	sb.WriteString(": ")
	if d.Key != "" {
		sb.WriteString(d.Key + ": ")
	}
	sb.WriteString(d.Msg)
	return sb.String()
}

// Errorf 创建类型级诊断
func (a *Aggregate) Errorf(trait, key, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Pos:   a.Pos,
		Trait: trait,
		Type:  a.Name,
		Key:   key,
		Msg:   fmt.Sprintf(format, args...),
	}
}

// FieldErrorf 创建字段级诊断
func (a *Aggregate) FieldErrorf(f *Field, trait, key, format string, args ...any) *Diagnostic {
	d := a.Errorf(trait, key, format, args...)
	d.Pos = f.Pos
	d.Field = f.Label()
	return d
}
