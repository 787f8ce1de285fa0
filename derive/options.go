package derive

import (
	"fmt"
	goparser "go/parser"
	"strings"

	"github.com/samber/lo"

	"github.com/donutnomad/derivegen/derive/bound"
	"github.com/donutnomad/derivegen/internal/meta"
)

// Key 类型级注解选项，按位组合成白名单
type Key uint

const (
	KeyBound Key = 1 << iota
	KeyNew
	KeyExpression
	KeyConvert
	KeyOutput
)

var keyNames = map[string]Key{
	"bound":      KeyBound,
	"new":        KeyNew,
	"expression": KeyExpression,
	"convert":    KeyConvert,
	"output":     KeyOutput,
}

// ConvertMode 字面量转换策略
type ConvertMode int

const (
	ConvertString ConvertMode = iota // 仅字符串字面量转换为字段类型
	ConvertNone                      // 所有字面量原样插入
)

// TypeOptions 类型级注解解析结果
type TypeOptions struct {
	Bound      bound.Policy
	New        bool
	Expression string // 为空表示未设置
	Convert    ConvertMode
	Output     string
	Present    bool // 注解是否存在
}

// ParseTypeOptions 解析类型上的 @trait(...) 选项
// allowed 之外的选项、未知选项、重复选项和错误的值格式都返回诊断
func ParseTypeOptions(a *Aggregate, trait string, attr *meta.Attr, allowed Key) (*TypeOptions, error) {
	opts := &TypeOptions{}
	if attr == nil {
		return opts, nil
	}
	opts.Present = true
	m := attr.Meta

	switch m.Kind {
	case meta.KindPath:
		return opts, nil
	case meta.KindNameValue:
		return nil, a.Errorf(trait, "", "类型注解不接受 = 赋值，请使用 @%s(key = value)", trait)
	}

	seen := make(map[string]bool)
	for _, item := range m.Items {
		if item.Kind == meta.KindLit {
			return nil, a.Errorf(trait, "", "类型注解不接受位置参数 %s", item.Lit.Text)
		}
		key, ok := keyNames[item.Name]
		if !ok {
			return nil, a.Errorf(trait, item.Name, "未知选项，可用选项: %s", allowedNames(allowed))
		}
		if allowed&key == 0 {
			return nil, a.Errorf(trait, item.Name, "@%s 不支持该选项，可用选项: %s", trait, allowedNames(allowed))
		}
		if seen[item.Name] {
			return nil, a.Errorf(trait, item.Name, "重复的选项")
		}
		seen[item.Name] = true

		var err error
		switch key {
		case KeyBound:
			opts.Bound, err = parseBound(item)
		case KeyNew:
			opts.New, err = item.Flag()
		case KeyExpression:
			opts.Expression, err = ExprArg(item)
		case KeyConvert:
			opts.Convert, err = parseConvert(item)
		case KeyOutput:
			opts.Output, err = stringArg(item)
		}
		if err != nil {
			return nil, a.Errorf(trait, item.Name, "%v", err)
		}
	}

	return opts, nil
}

func allowedNames(allowed Key) string {
	names := lo.Filter([]string{"bound", "new", "expression", "convert", "output"}, func(n string, _ int) bool {
		return allowed&keyNames[n] != 0
	})
	if len(names) == 0 {
		return "无"
	}
	return strings.Join(names, ", ")
}

// parseBound 解析约束策略:
//
//	bound                      -> Auto
//	bound = "T: Cloner[T]"     -> Text
//	bound("T: Cloner[T]")      -> Text
//	bound(T = "Cloner[T]")     -> List
//	bound()                    -> None
func parseBound(m *meta.Meta) (bound.Policy, error) {
	switch m.Kind {
	case meta.KindPath:
		return bound.Policy{Kind: bound.Auto}, nil
	case meta.KindNameValue:
		if !m.Lit.IsString() {
			return bound.Policy{}, fmt.Errorf("需要字符串，如 bound = \"T: comparable\"")
		}
		return bound.Policy{Kind: bound.Text, Text: m.Lit.Value()}, nil
	}

	if len(m.Items) == 0 {
		return bound.Policy{Kind: bound.None}, nil
	}
	if len(m.Items) == 1 && m.Items[0].Kind == meta.KindLit {
		lit := m.Items[0].Lit
		if !lit.IsString() {
			return bound.Policy{}, fmt.Errorf("需要字符串，得到 %s", lit.Text)
		}
		return bound.Policy{Kind: bound.Text, Text: lit.Value()}, nil
	}

	policy := bound.Policy{Kind: bound.List}
	for _, item := range m.Items {
		if item.Kind != meta.KindNameValue && item.Kind != meta.KindList {
			return bound.Policy{}, fmt.Errorf("列表形式需要 T = \"Constraint\"，得到 %s", item.String())
		}
		lit, err := item.StringArg("")
		if err != nil {
			return bound.Policy{}, err
		}
		constraint := lit.Value()
		if constraint == "" {
			return bound.Policy{}, fmt.Errorf("类型参数 %s 的约束为空", item.Name)
		}
		policy.Items = append(policy.Items, bound.Predicate{Param: item.Name, Constraint: constraint})
	}
	return policy, nil
}

func parseConvert(m *meta.Meta) (ConvertMode, error) {
	v, err := stringArg(m)
	if err != nil {
		return 0, err
	}
	switch v {
	case "string":
		return ConvertString, nil
	case "none":
		return ConvertNone, nil
	}
	return 0, fmt.Errorf("可选值为 string 或 none，得到 %q", v)
}

// stringArg 取字符串值，裸标识符也接受
func stringArg(m *meta.Meta) (string, error) {
	lit, err := m.StringArg("")
	if err != nil {
		return "", err
	}
	if !lit.IsString() && lit.Kind != meta.LitExpr {
		return "", fmt.Errorf("需要字符串，得到 %s", lit.Text)
	}
	v := lit.Value()
	if v == "" {
		return "", fmt.Errorf("值不能为空")
	}
	return v, nil
}

// ExprArg 取表达式: 字符串字面量的内容，或者直接书写的表达式
// 支持 key = "expr"、key(expr)、key(value = "expr")
func ExprArg(m *meta.Meta) (string, error) {
	lit, err := m.StringArg("value")
	if err != nil {
		return "", err
	}
	v := lit.Text
	if lit.IsString() {
		v = lit.Value()
	}
	return v, ValidateExpr(v)
}

// ValidateExpr 检查表达式是否能被解析
func ValidateExpr(src string) error {
	if strings.TrimSpace(src) == "" {
		return fmt.Errorf("表达式不能为空")
	}
	if _, err := goparser.ParseExpr(src); err != nil {
		return fmt.Errorf("无效的表达式 %q: %v", src, err)
	}
	return nil
}
