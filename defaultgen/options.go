package defaultgen

import (
	"github.com/donutnomad/derivegen/derive"
	"github.com/donutnomad/derivegen/internal/meta"
)

const (
	traitDefault  = "Default"
	keyValue      = "value"
	keyExpression = "expression"
)

// FieldDefault 字段上 @Default 的解析结果，两者最多有一个
type FieldDefault struct {
	Literal    *meta.Lit
	Expression string
}

// parseFieldDefault 解析字段上的 @Default(...)
//
//	@Default(5) / @Default(value = 5) / @Default(value(5))   -> Literal
//	@Default(expression = "time.Now()") / @Default(expression(time.Now()))   -> Expression
//
// enabled 为 false 时类型级 expression 已覆盖整个默认值，任何字段选项都会报错
func parseFieldDefault(a *derive.Aggregate, f *derive.Field, enabled bool) (FieldDefault, error) {
	attr, err := a.FieldAttr(f, traitDefault)
	if err != nil || attr == nil {
		return FieldDefault{}, err
	}

	errorf := func(key, format string, args ...any) error {
		return a.FieldErrorf(f, traitDefault, key, format, args...)
	}

	m := attr.Meta
	switch m.Kind {
	case meta.KindPath:
		return FieldDefault{}, nil
	case meta.KindNameValue:
		return FieldDefault{}, errorf("", "字段注解不接受 = 赋值，请使用 @Default(value = ...)")
	}

	var result FieldDefault
	hasExpr := false
	for _, item := range m.Items {
		key := item.Name
		if item.Kind == meta.KindLit {
			key = keyValue
		}
		if !enabled {
			return FieldDefault{}, errorf(key, "类型上的 expression 已指定完整的默认值，字段选项不会生效")
		}

		switch {
		case item.Kind == meta.KindLit || item.Name == keyValue:
			lit := item.Lit
			if item.Kind != meta.KindLit {
				if lit, err = item.StringArg(""); err != nil {
					return FieldDefault{}, errorf(keyValue, "%v", err)
				}
			}
			if lit.Kind == meta.LitExpr {
				return FieldDefault{}, errorf(keyValue, "需要字面量，得到 %s，表达式请使用 expression", lit.Text)
			}
			if result.Literal != nil {
				return FieldDefault{}, errorf(keyValue, "重复的默认值 %s", lit.Text)
			}
			result.Literal = lit
		case item.Name == keyExpression:
			if hasExpr {
				return FieldDefault{}, errorf(keyExpression, "重复的选项")
			}
			hasExpr = true
			if result.Expression, err = derive.ExprArg(item); err != nil {
				return FieldDefault{}, errorf(keyExpression, "%v", err)
			}
		default:
			return FieldDefault{}, errorf(item.Name, "未知选项，可用选项: value, expression")
		}
	}

	if result.Literal != nil && hasExpr {
		return FieldDefault{}, errorf("", "value 与 expression 互斥")
	}
	return result, nil
}
