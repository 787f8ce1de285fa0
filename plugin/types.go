package plugin

import (
	"go/ast"
	"go/token"
	"path/filepath"

	"github.com/donutnomad/gg"
	"go.uber.org/zap"

	"github.com/donutnomad/derivegen/internal/meta"
)

// TargetKind 表示注解目标的类型
type TargetKind int

const (
	TargetStruct TargetKind = iota + 1 // 结构体
)

func (k TargetKind) String() string {
	switch k {
	case TargetStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// ParamDef 定义注解参数的元信息
type ParamDef struct {
	Name        string // 参数名称
	Required    bool   // 是否必填
	Default     string // 默认值（如果不是必填）
	Description string // 参数描述
}

// Annotation 表示解析后的注解
type Annotation struct {
	Name   string            // 注解名称，如 "Clone", "Default"
	Meta   *meta.Meta        // 完整的元数据树，Err 非空时为 nil
	Params map[string]string // 顶层选项的扁平化字符串值，如 output
	Raw    string            // 原始注解文本
	Err    error             // 语法错误
}

// Target 表示注解的目标
type Target struct {
	Kind        TargetKind     // 目标类型
	Name        string         // 结构体名
	PackageName string         // 包名
	FilePath    string         // 文件路径
	Position    token.Position // 位置信息

	// 语法信息，供生成器构建模型
	Fset    *token.FileSet
	Spec    *ast.TypeSpec
	Doc     *ast.CommentGroup // 非分组声明时 GenDecl 上的文档注释
	Imports []*ast.ImportSpec
}

// AnnotatedTarget 表示带注解的目标
type AnnotatedTarget struct {
	Target      *Target       // 目标信息
	Annotations []*Annotation // 注解列表
}

// ScanResult 表示扫描结果
type ScanResult struct {
	Structs []*AnnotatedTarget // 带注解的结构体

	// PackageConfigs 包级配置
	// key: 包目录
	PackageConfigs map[string]*PackageConfig
}

// All 返回所有带注解的目标
func (r *ScanResult) All() []*AnnotatedTarget {
	return r.Structs
}

// KnownTypes 按包目录收集带有 annotation 的非泛型结构体
// 生成器据此把这些类型的字段委托给它们自己的派生函数
func KnownTypes(targets []*AnnotatedTarget, annotation string) map[string]map[string]bool {
	known := make(map[string]map[string]bool)
	for _, at := range targets {
		t := at.Target
		if t.Spec == nil || t.Spec.TypeParams != nil || !HasAnnotation(at.Annotations, annotation) {
			continue
		}
		dir := filepath.Dir(t.FilePath)
		if known[dir] == nil {
			known[dir] = make(map[string]bool)
		}
		known[dir][t.Name] = true
	}
	return known
}

// ByAnnotation 按注解名称过滤
func (r *ScanResult) ByAnnotation(name string) []*AnnotatedTarget {
	var result []*AnnotatedTarget
	for _, t := range r.All() {
		if HasAnnotation(t.Annotations, name) {
			result = append(result, t)
		}
	}
	return result
}

// GenerateContext 生成上下文，传递给 Generator
type GenerateContext struct {
	Targets        []*AnnotatedTarget        // 该 Generator 需要处理的目标
	PackageConfigs map[string]*PackageConfig // 包级配置，key: 包目录
	DefaultOutput  string                    // 命令行指定的默认输出路径
	Logger         *zap.Logger
	Verbose        bool // 详细输出
}

// GetPackageConfig 获取目标所在包的配置
func (c *GenerateContext) GetPackageConfig(target *Target) *PackageConfig {
	if c.PackageConfigs == nil || target == nil {
		return nil
	}
	return c.PackageConfigs[packageDir(target.FilePath)]
}

// Log 返回上下文的日志记录器，未设置时返回空实现
func (c *GenerateContext) Log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// GenerateResult 生成结果
// Generator 返回 gg 定义，由聚合器统一处理
type GenerateResult struct {
	// Definitions 是生成的 gg 定义
	// key: 输出文件路径
	Definitions map[string]*gg.Generator

	// Errors 错误列表，任何错误都会阻止写入
	Errors []error

	// Generated 成功生成的目标数量
	Generated int

	// Skipped 跳过的数量
	Skipped int
}

// PackageConfig 包级生成配置
// 通过 //go:derivegen: 注释定义，同一个包内只能出现一次
// 示例:
//
//	//go:derivegen: -output `$FILE_derive.go`
//	//go:derivegen: plugin:clone -output `clone_gen.go` plugin:default -output `default_gen.go`
type PackageConfig struct {
	PackageDir string // 包目录

	// DefaultOutput 默认输出路径（对所有插件生效）
	DefaultOutput string

	// PluginOutputs 插件特定的输出路径
	// key: 插件名（小写）, value: 输出路径
	PluginOutputs map[string]string
}

// GetPluginOutput 获取指定插件的输出路径
// 优先返回插件特定配置，其次返回默认配置，最后返回空字符串
func (c *PackageConfig) GetPluginOutput(pluginName string) string {
	if c == nil {
		return ""
	}
	if output, ok := c.PluginOutputs[pluginName]; ok {
		return output
	}
	return c.DefaultOutput
}

// NewGenerateResult 创建新的生成结果
func NewGenerateResult() *GenerateResult {
	return &GenerateResult{
		Definitions: make(map[string]*gg.Generator),
	}
}

// AddDefinition 添加 gg 定义
func (r *GenerateResult) AddDefinition(path string, gen *gg.Generator) {
	if r.Definitions == nil {
		r.Definitions = make(map[string]*gg.Generator)
	}
	r.Definitions[path] = gen
}

// AddError 添加错误
func (r *GenerateResult) AddError(err error) {
	r.Errors = append(r.Errors, err)
}

// HasErrors 检查是否有错误
func (r *GenerateResult) HasErrors() bool {
	return len(r.Errors) > 0
}
