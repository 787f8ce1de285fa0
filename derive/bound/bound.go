// Package bound 组合生成代码的泛型约束
//
// Go 没有 where 子句，生成的泛型函数把约束直接写进类型参数列表。
// 每个类型参数最终的约束 = 声明时的约束 ∩ 该参数上的所有谓词。
package bound

import (
	"fmt"
	"regexp"
	"strings"
)

// Capability 生成代码需要类型参数具备的能力
type Capability int

const (
	Copy    Capability = iota + 1 // 值拷贝即正确的克隆，Go 中所有类型都满足
	Clone                         // 需要 Clone() T 方法
	Default                       // 需要零值，Go 中所有类型都满足
)

func (c Capability) String() string {
	switch c {
	case Copy:
		return "Copy"
	case Clone:
		return "Clone"
	case Default:
		return "Default"
	default:
		return ""
	}
}

// PolicyKind 约束策略
type PolicyKind int

const (
	Auto PolicyKind = iota // 每个类型参数一个能力谓词
	Text                   // 整段字符串覆盖，如 "T: Cloner[T], K: comparable"
	List                   // 显式谓词列表
	None                   // 不添加任何谓词
)

func (k PolicyKind) String() string {
	switch k {
	case Auto:
		return "auto"
	case Text:
		return "text"
	case List:
		return "list"
	case None:
		return "none"
	default:
		return "unknown"
	}
}

// Policy 解析后的约束策略
type Policy struct {
	Kind  PolicyKind
	Text  string      // Kind == Text
	Items []Predicate // Kind == List
}

// Param 声明的类型参数
type Param struct {
	Name       string
	Constraint string
}

// Predicate 一个类型参数上的约束
type Predicate struct {
	Param      string
	Capability Capability // 为 0 时使用 Constraint
	Constraint string     // 显式约束文本
}

var methodElemRegex = regexp.MustCompile(`^[A-Za-z_]\w*\s*\(`)

// Element 返回该谓词在接口约束中的元素文本，为空表示不需要额外约束
func (p Predicate) Element() string {
	switch p.Capability {
	case Clone:
		return "Clone() " + p.Param
	case Copy, Default:
		return ""
	}
	return strings.TrimSpace(p.Constraint)
}

func (p Predicate) String() string {
	if p.Capability != 0 {
		return p.Param + ": " + p.Capability.String()
	}
	return p.Param + ": " + strings.TrimSpace(p.Constraint)
}

// Set 有序且去重的谓词集合
type Set struct {
	preds []Predicate
	seen  map[string]bool
}

func NewSet() *Set {
	return &Set{seen: make(map[string]bool)}
}

// Add 追加谓词，重复的谓词被忽略
func (s *Set) Add(p Predicate) bool {
	key := p.String()
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	s.preds = append(s.preds, p)
	return true
}

func (s *Set) Predicates() []Predicate {
	return append([]Predicate(nil), s.preds...)
}

func (s *Set) Len() int {
	return len(s.preds)
}

// For 返回指定类型参数上的谓词
func (s *Set) For(param string) []Predicate {
	var result []Predicate
	for _, p := range s.preds {
		if p.Param == param {
			result = append(result, p)
		}
	}
	return result
}

// Compose 根据策略和声明的类型参数生成谓词集合
func Compose(policy Policy, params []Param, capability Capability) (*Set, error) {
	set := NewSet()

	switch policy.Kind {
	case Auto:
		for _, p := range params {
			set.Add(Predicate{Param: p.Name, Capability: capability})
		}
	case Text:
		preds, err := ParseText(policy.Text)
		if err != nil {
			return nil, err
		}
		if err := addExplicit(set, preds, params); err != nil {
			return nil, err
		}
	case List:
		if err := addExplicit(set, policy.Items, params); err != nil {
			return nil, err
		}
	case None:
	default:
		return nil, fmt.Errorf("未知的约束策略 %d", policy.Kind)
	}

	return set, nil
}

func addExplicit(set *Set, preds []Predicate, params []Param) error {
	declared := make(map[string]bool, len(params))
	for _, p := range params {
		declared[p.Name] = true
	}
	for _, p := range preds {
		if !declared[p.Param] {
			return fmt.Errorf("约束引用了未声明的类型参数 %s", p.Param)
		}
		if p.Capability == 0 && strings.TrimSpace(p.Constraint) == "" {
			return fmt.Errorf("类型参数 %s 的约束为空", p.Param)
		}
		set.Add(p)
	}
	return nil
}

// ParseText 解析 "T: Cloner[T], K: comparable" 形式的约束文本
// 逗号只在括号外分隔，约束中的 Map[K, V] 不会被拆开
func ParseText(text string) ([]Predicate, error) {
	var preds []Predicate
	for _, part := range splitTopLevel(text) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, constraint, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("约束 %q 缺少冒号，格式应为 T: Constraint", part)
		}
		name = strings.TrimSpace(name)
		constraint = strings.TrimSpace(constraint)
		if !isIdent(name) {
			return nil, fmt.Errorf("约束 %q 的类型参数名无效", part)
		}
		if constraint == "" {
			return nil, fmt.Errorf("类型参数 %s 的约束为空", name)
		}
		preds = append(preds, Predicate{Param: name, Constraint: constraint})
	}
	if len(preds) == 0 {
		return nil, fmt.Errorf("约束文本为空")
	}
	return preds, nil
}

func splitTopLevel(text string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, text[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, text[start:])
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		if i > 0 && c >= '0' && c <= '9' {
			continue
		}
		return false
	}
	return true
}

// Constraint 合并声明的约束与谓词元素，得到该类型参数最终写进参数列表的约束
func Constraint(param Param, preds []Predicate) string {
	var elems []string
	seen := make(map[string]bool)
	add := func(e string) {
		e = strings.TrimSpace(e)
		if e == "" || e == "any" || e == "interface{}" || seen[e] {
			return
		}
		seen[e] = true
		elems = append(elems, e)
	}

	add(param.Constraint)
	for _, p := range preds {
		if p.Param == param.Name {
			add(p.Element())
		}
	}

	switch {
	case len(elems) == 0:
		return "any"
	case len(elems) == 1 && !methodElemRegex.MatchString(elems[0]):
		return elems[0]
	default:
		return "interface{ " + strings.Join(elems, "; ") + " }"
	}
}

// TypeParams 渲染带约束的类型参数列表，如 [T interface{ Clone() T }, K comparable]
// 没有类型参数时返回空串
func TypeParams(params []Param, set *Set) string {
	if len(params) == 0 {
		return ""
	}
	var preds []Predicate
	if set != nil {
		preds = set.preds
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + " " + Constraint(p, preds)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// TypeArgs 渲染实例化参数，如 [T, K]
func TypeArgs(params []Param) string {
	if len(params) == 0 {
		return ""
	}
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return "[" + strings.Join(names, ", ") + "]"
}
