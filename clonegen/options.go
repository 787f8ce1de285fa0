package clonegen

import (
	"fmt"

	"github.com/donutnomad/derivegen/derive"
	"github.com/donutnomad/derivegen/internal/meta"
)

const (
	traitClone = "Clone"
	traitCopy  = "Copy"
	keyClone   = "clone"
)

// StrategyKind 字段克隆方式
type StrategyKind int

const (
	Canonical StrategyKind = iota // 按字段类型的默认克隆
	Method                        // 自定义函数 f(v)
	Trait                         // 方法表达式 Trait.Method(v)
)

func (k StrategyKind) String() string {
	switch k {
	case Method:
		return "method"
	case Trait:
		return "trait"
	default:
		return "canonical"
	}
}

// Strategy 字段的克隆策略，Clone 与 CloneFrom 共用
type Strategy struct {
	Kind   StrategyKind
	Func   string // Method
	Trait  string // Trait
	Method string // Trait，默认 Clone
}

// Callee 覆盖策略下被调用的函数表达式
func (s Strategy) Callee() string {
	switch s.Kind {
	case Method:
		return s.Func
	case Trait:
		return s.Trait + "." + s.Method
	}
	return ""
}

// parseFieldStrategy 解析字段上的 @Clone(...)
//
//	clone = "f" / clone(f) / clone("f") / clone(method = "f")   -> Method
//	clone(trait = "T")                                           -> Trait，方法为 Clone
//	clone(trait = "T", method = "m")                             -> Trait
func parseFieldStrategy(a *derive.Aggregate, f *derive.Field) (Strategy, error) {
	if attrs := meta.Filter(f.Attrs, traitCopy); len(attrs) > 0 {
		return Strategy{}, a.FieldErrorf(f, traitCopy, "", "@Copy 只能用于类型声明")
	}

	attr, err := a.FieldAttr(f, traitClone)
	if err != nil || attr == nil {
		return Strategy{}, err
	}

	errorf := func(key, format string, args ...any) error {
		return a.FieldErrorf(f, traitClone, key, format, args...)
	}

	m := attr.Meta
	if m.Kind != meta.KindList || len(m.Items) == 0 {
		return Strategy{}, errorf("", "字段注解需要 clone 选项，如 @Clone(clone = \"deepCopy\")")
	}

	var strategy Strategy
	seen := false
	for _, item := range m.Items {
		if item.Name != keyClone {
			if item.Kind == meta.KindLit {
				return Strategy{}, errorf("", "不接受位置参数 %s", item.Lit.Text)
			}
			return Strategy{}, errorf(item.Name, "未知选项，可用选项: clone")
		}
		if seen {
			return Strategy{}, errorf(keyClone, "重复的选项")
		}
		seen = true

		strategy, err = parseCloneItem(item)
		if err != nil {
			return Strategy{}, errorf(keyClone, "%v", err)
		}
	}
	return strategy, nil
}

func parseCloneItem(item *meta.Meta) (Strategy, error) {
	switch item.Kind {
	case meta.KindPath:
		return Strategy{}, fmt.Errorf("缺少值")
	case meta.KindNameValue:
		fn, err := calleeText(item.Lit)
		if err != nil {
			return Strategy{}, err
		}
		return Strategy{Kind: Method, Func: fn}, nil
	}

	if len(item.Items) == 0 {
		return Strategy{}, fmt.Errorf("缺少值")
	}

	var bare, trait, method *meta.Lit
	for _, sub := range item.Items {
		switch {
		case sub.Name == "trait" || sub.Name == "method":
			if sub.Kind == meta.KindPath {
				return Strategy{}, fmt.Errorf("%s 缺少值", sub.Name)
			}
			lit, err := sub.StringArg("")
			if err != nil {
				return Strategy{}, err
			}
			target := &trait
			if sub.Name == "method" {
				target = &method
			}
			if *target != nil {
				return Strategy{}, fmt.Errorf("重复的子选项 %s", sub.Name)
			}
			*target = lit
		case sub.Kind == meta.KindLit || sub.Kind == meta.KindPath:
			if bare != nil {
				return Strategy{}, fmt.Errorf("只能指定一个函数")
			}
			bare = sub.Lit
			if sub.Kind == meta.KindPath {
				bare = &meta.Lit{Kind: meta.LitExpr, Text: sub.Name}
			}
		default:
			return Strategy{}, fmt.Errorf("未知的子选项 %s，可用子选项: trait, method", sub.Name)
		}
	}

	if bare != nil && (trait != nil || method != nil) {
		return Strategy{}, fmt.Errorf("函数值不能与 trait/method 子选项混用")
	}

	switch {
	case bare != nil:
		fn, err := calleeText(bare)
		if err != nil {
			return Strategy{}, err
		}
		return Strategy{Kind: Method, Func: fn}, nil
	case trait != nil:
		t, err := calleeText(trait)
		if err != nil {
			return Strategy{}, err
		}
		s := Strategy{Kind: Trait, Trait: t, Method: "Clone"}
		if method != nil {
			if s.Method, err = calleeText(method); err != nil {
				return Strategy{}, err
			}
		}
		return s, nil
	default:
		fn, err := calleeText(method)
		if err != nil {
			return Strategy{}, err
		}
		return Strategy{Kind: Method, Func: fn}, nil
	}
}

// calleeText 取函数、类型或方法名，字符串和裸表达式两种写法等价
func calleeText(lit *meta.Lit) (string, error) {
	if !lit.IsString() && lit.Kind != meta.LitExpr {
		return "", fmt.Errorf("需要函数名，得到 %s", lit.Text)
	}
	v := lit.Value()
	if v == "" {
		return "", fmt.Errorf("值不能为空")
	}
	if err := derive.ValidateExpr(v); err != nil {
		return "", err
	}
	return v, nil
}
