// Package meta 解析注释中的注解元数据
//
// 注解语法:
//
//	@Name
//	@Name(item, item, ...)
//
// item 可以是:
//
//	key                 路径（标志位）
//	key = value         键值对，value 为字面量或任意表达式
//	key(item, ...)      嵌套列表
//	value               位置字面量
//
// 同一个选项的三种写法 key = "v"、key("v")、key(sub = "v") 通过 StringArg 归一化，
// 调用方看不到用户使用的是哪一种写法。
package meta

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind 元数据节点类型
type Kind int

const (
	KindPath      Kind = iota + 1 // key
	KindList                      // key(...)
	KindNameValue                 // key = value
	KindLit                       // 位置字面量
)

func (k Kind) String() string {
	switch k {
	case KindPath:
		return "path"
	case KindList:
		return "list"
	case KindNameValue:
		return "name-value"
	case KindLit:
		return "literal"
	default:
		return "unknown"
	}
}

// LitKind 字面量类型
type LitKind int

const (
	LitString    LitKind = iota + 1 // "abc"
	LitRawString                    // `abc`
	LitInt                          // 5, -5, 0x10
	LitFloat                        // 1.5
	LitImag                         // 2i
	LitChar                         // 'a'
	LitBool                         // true / false
	LitExpr                         // 其它任意表达式，保留源码文本
)

func (k LitKind) String() string {
	switch k {
	case LitString:
		return "string"
	case LitRawString:
		return "raw string"
	case LitInt:
		return "int"
	case LitFloat:
		return "float"
	case LitImag:
		return "imaginary"
	case LitChar:
		return "char"
	case LitBool:
		return "bool"
	case LitExpr:
		return "expression"
	default:
		return "unknown"
	}
}

// Lit 字面量或表达式，Text 为源码原文
type Lit struct {
	Kind LitKind
	Text string
}

// IsString 是否为字符串字面量（解释型或原始）
func (l *Lit) IsString() bool {
	return l.Kind == LitString || l.Kind == LitRawString
}

// Value 返回字面量的值：字符串去掉引号，其它类型原样返回源码
func (l *Lit) Value() string {
	if l.IsString() {
		if s, err := strconv.Unquote(l.Text); err == nil {
			return s
		}
	}
	return l.Text
}

func (l *Lit) String() string {
	return l.Text
}

// Meta 注解元数据树的一个节点
type Meta struct {
	Kind   Kind
	Name   string  // KindLit 时为空
	Lit    *Lit    // KindNameValue 的值，或 KindLit 本身
	Items  []*Meta // KindList 的子项
	Offset int     // 在注解文本中的字节偏移
}

// IsFlag 是否为无值的路径节点
func (m *Meta) IsFlag() bool {
	return m.Kind == KindPath
}

// StringArg 把同一选项的多种写法归一化为一个值:
//
//	key = "v"        -> "v"
//	key("v")         -> "v"
//	key(v)           -> v（裸标识符视为表达式）
//	key(sub = "v")   -> "v"
//	key(sub("v"))    -> "v"
func (m *Meta) StringArg(sub string) (*Lit, error) {
	switch m.Kind {
	case KindNameValue:
		return m.Lit, nil
	case KindPath:
		return nil, fmt.Errorf("%s 缺少值", m.Name)
	case KindLit:
		return m.Lit, nil
	case KindList:
		if len(m.Items) != 1 {
			return nil, fmt.Errorf("%s 需要且只能有一个参数，得到 %d 个", m.Name, len(m.Items))
		}
		item := m.Items[0]
		switch item.Kind {
		case KindLit:
			return item.Lit, nil
		case KindPath:
			return &Lit{Kind: LitExpr, Text: item.Name}, nil
		case KindNameValue, KindList:
			if sub == "" || item.Name != sub {
				return nil, fmt.Errorf("%s 不支持子选项 %s", m.Name, item.Name)
			}
			return item.StringArg("")
		}
	}
	return nil, fmt.Errorf("%s 的值格式错误", m.Name)
}

// Flag 解析布尔开关: key、key = true、key(false)
func (m *Meta) Flag() (bool, error) {
	if m.Kind == KindPath {
		return true, nil
	}
	lit, err := m.StringArg("")
	if err != nil {
		return false, err
	}
	if lit.Kind != LitBool {
		return false, fmt.Errorf("%s 需要 bool 值，得到 %s", m.Name, lit.Text)
	}
	return lit.Text == "true", nil
}

// String 还原为规范化的注解文本
func (m *Meta) String() string {
	switch m.Kind {
	case KindPath:
		return m.Name
	case KindNameValue:
		return m.Name + " = " + m.Lit.Text
	case KindLit:
		return m.Lit.Text
	case KindList:
		parts := make([]string, len(m.Items))
		for i, item := range m.Items {
			parts[i] = item.String()
		}
		return m.Name + "(" + strings.Join(parts, ", ") + ")"
	}
	return ""
}
