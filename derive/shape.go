package derive

import "strings"

// Shape 结构体的构造形态，决定复合字面量的写法
type Shape int

const (
	Unit   Shape = iota + 1 // struct{}
	Tuple                   // 首字段为嵌入字段，使用位置字面量 X{a, b}
	Record                  // 首字段有名字，使用键值字面量 X{A: a}
)

func (s Shape) String() string {
	switch s {
	case Unit:
		return "unit"
	case Tuple:
		return "tuple"
	case Record:
		return "record"
	default:
		return "unknown"
	}
}

// Classify 根据字段列表判断形态
func Classify(fields []*Field) Shape {
	switch {
	case len(fields) == 0:
		return Unit
	case fields[0].Embedded:
		return Tuple
	default:
		return Record
	}
}

// Literal 按形态拼接复合字面量，每个字段一行
// Tuple 中 _ 字段的值由调用方给出（通常是零值），Record 中 _ 字段被跳过
func Literal(typeRef string, shape Shape, fields []*Field, values []string) string {
	var parts []string
	switch shape {
	case Unit:
		return typeRef + "{}"
	case Tuple:
		parts = values
	default:
		for i, f := range fields {
			if !f.Blank() {
				parts = append(parts, f.Name+": "+values[i])
			}
		}
	}
	if len(parts) == 0 {
		return typeRef + "{}"
	}
	return typeRef + "{\n" + strings.Join(parts, ",\n") + ",\n}"
}
