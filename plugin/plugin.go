package plugin

// DefaultPriority 未设置优先级的生成器排在已设置的之后
const DefaultPriority = 100

// Generator 一种派生能力的生成器，例如 clonegen 负责 @Clone 与 @Copy
//
// 一个注解只能属于一个生成器。带有同一生成器多个注解的目标只分发一次，
// 生成器自己从 AnnotatedTarget.Annotations 中取需要的注解。
type Generator interface {
	Name() string

	// Annotations 第一个是主注解，帮助信息以它举例
	Annotations() []string

	SupportedTargets() []TargetKind

	// ParamDefs 只用于帮助信息，选项的解析与校验由生成器完成
	ParamDefs() []ParamDef

	// Priority 决定执行顺序以及合并到同一文件时的片段顺序，小的在前
	Priority() int

	// Generate 只返回定义与错误，由 Run 合并格式化后统一落盘
	Generate(ctx *GenerateContext) (*GenerateResult, error)
}

// Option 配置 BaseGenerator
type Option func(*BaseGenerator)

// WithTargets 覆盖支持的目标类型，默认只有结构体
func WithTargets(kinds ...TargetKind) Option {
	return func(g *BaseGenerator) {
		g.targets = kinds
	}
}

// WithParams 由参数结构体的 param tag 得到帮助信息中的参数列表
func WithParams(proto any) Option {
	return func(g *BaseGenerator) {
		g.paramDefs = ParseParamsFromStruct(proto)
	}
}

// WithParamDefs 直接给出参数列表
func WithParamDefs(defs ...ParamDef) Option {
	return func(g *BaseGenerator) {
		g.paramDefs = defs
	}
}

func WithPriority(priority int) Option {
	return func(g *BaseGenerator) {
		g.priority = priority
	}
}

// BaseGenerator 实现 Generate 以外的方法，嵌入到具体生成器中
type BaseGenerator struct {
	name        string
	annotations []string
	targets     []TargetKind
	paramDefs   []ParamDef
	priority    int
}

func NewBaseGenerator(name string, annotations []string, opts ...Option) BaseGenerator {
	g := BaseGenerator{
		name:        name,
		annotations: annotations,
		targets:     []TargetKind{TargetStruct},
		priority:    DefaultPriority,
	}
	for _, opt := range opts {
		opt(&g)
	}
	return g
}

func (g *BaseGenerator) Name() string                   { return g.name }
func (g *BaseGenerator) Annotations() []string          { return g.annotations }
func (g *BaseGenerator) SupportedTargets() []TargetKind { return g.targets }
func (g *BaseGenerator) ParamDefs() []ParamDef          { return g.paramDefs }
func (g *BaseGenerator) Priority() int                  { return g.priority }
