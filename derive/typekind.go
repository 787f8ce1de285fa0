package derive

import (
	"go/ast"
)

// TypeKind 字段类型的语法分类
type TypeKind int

const (
	KindNumeric TypeKind = iota + 1
	KindString
	KindBool
	KindPointer
	KindSlice
	KindArray
	KindMap
	KindChan
	KindFunc
	KindInterface
	KindStruct // 匿名结构体
	KindNamed  // 命名类型（含其它包的类型与泛型实例化）
	KindTypeParam
)

func (k TypeKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindPointer:
		return "pointer"
	case KindSlice:
		return "slice"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindChan:
		return "chan"
	case KindFunc:
		return "func"
	case KindInterface:
		return "interface"
	case KindStruct:
		return "struct"
	case KindNamed:
		return "named"
	case KindTypeParam:
		return "type parameter"
	default:
		return "unknown"
	}
}

var predeclared = map[string]TypeKind{
	"bool":       KindBool,
	"string":     KindString,
	"int":        KindNumeric,
	"int8":       KindNumeric,
	"int16":      KindNumeric,
	"int32":      KindNumeric,
	"int64":      KindNumeric,
	"uint":       KindNumeric,
	"uint8":      KindNumeric,
	"uint16":     KindNumeric,
	"uint32":     KindNumeric,
	"uint64":     KindNumeric,
	"uintptr":    KindNumeric,
	"byte":       KindNumeric,
	"rune":       KindNumeric,
	"float32":    KindNumeric,
	"float64":    KindNumeric,
	"complex64":  KindNumeric,
	"complex128": KindNumeric,
	"error":      KindInterface,
	"any":        KindInterface,
}

// KindOf 对类型表达式分类，params 为当前作用域的类型参数名
// 与预声明类型同名的类型参数优先按类型参数处理
func KindOf(expr ast.Expr, params map[string]bool) TypeKind {
	switch t := expr.(type) {
	case *ast.Ident:
		if params[t.Name] {
			return KindTypeParam
		}
		if k, ok := predeclared[t.Name]; ok {
			return k
		}
		return KindNamed
	case *ast.ParenExpr:
		return KindOf(t.X, params)
	case *ast.StarExpr:
		return KindPointer
	case *ast.ArrayType:
		if t.Len == nil {
			return KindSlice
		}
		return KindArray
	case *ast.MapType:
		return KindMap
	case *ast.ChanType:
		return KindChan
	case *ast.FuncType:
		return KindFunc
	case *ast.InterfaceType:
		return KindInterface
	case *ast.StructType:
		return KindStruct
	}
	// SelectorExpr / IndexExpr / IndexListExpr
	return KindNamed
}

// ZeroValue 返回类型的零值表达式
func ZeroValue(expr ast.Expr, typeText string, params map[string]bool) string {
	switch KindOf(expr, params) {
	case KindNumeric:
		return "0"
	case KindString:
		return `""`
	case KindBool:
		return "false"
	case KindPointer, KindSlice, KindMap, KindChan, KindFunc, KindInterface:
		return "nil"
	case KindArray, KindStruct:
		return typeText + "{}"
	}
	return "*new(" + typeText + ")"
}

// NeedsParens 作为转换目标时是否需要括号，如 (*T)(v)、(func())(v)
func NeedsParens(expr ast.Expr) bool {
	switch expr.(type) {
	case *ast.StarExpr, *ast.FuncType, *ast.ChanType:
		return true
	}
	return false
}

// Convert 生成到指定类型的转换表达式
func Convert(expr ast.Expr, typeText, value string) string {
	if NeedsParens(expr) {
		return "(" + typeText + ")(" + value + ")"
	}
	return typeText + "(" + value + ")"
}
