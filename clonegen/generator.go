package clonegen

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/donutnomad/gg"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/donutnomad/derivegen/derive"
	"github.com/donutnomad/derivegen/internal/pkgresolver"
	"github.com/donutnomad/derivegen/plugin"
)

const generatorName = "clonegen"

// CloneParams 定义 @Clone 注解支持的参数
// 只用于帮助信息，选项由 derive.ParseTypeOptions 解析校验
type CloneParams struct {
	Bound  string `param:"name=bound,required=false,default=,description=泛型约束: bound | bound = \"T: C\" | bound(T = \"C\") | bound()"`
	Output string `param:"name=output,required=false,default=,description=输出文件路径，支持 $FILE $PACKAGE $TYPE 与模板"`
}

// CloneGenerator 实现 plugin.Generator 接口
type CloneGenerator struct {
	plugin.BaseGenerator
	names *pkgresolver.Resolver
}

func NewCloneGenerator() *CloneGenerator {
	return &CloneGenerator{
		BaseGenerator: plugin.NewBaseGenerator(generatorName, []string{traitClone, traitCopy},
			plugin.WithParams(CloneParams{}),
			plugin.WithPriority(10),
		),
		names: pkgresolver.New(),
	}
}

// targetInfo 单个结构体的合成结果
type targetInfo struct {
	name string
	plan *Plan
}

// Generate 执行代码生成
func (g *CloneGenerator) Generate(ctx *plugin.GenerateContext) (*plugin.GenerateResult, error) {
	result := plugin.NewGenerateResult()
	if len(ctx.Targets) == 0 {
		return result, nil
	}
	log := ctx.Log()

	known := plugin.KnownTypes(ctx.Targets, traitClone)

	// key: 输出路径
	fileTargets := make(map[string][]*targetInfo)
	filePackages := make(map[string]string)

	for _, at := range ctx.Targets {
		t := at.Target
		plan, output, err := g.synthesizeTarget(ctx, at, known[filepath.Dir(t.FilePath)])
		if err != nil {
			result.AddError(err)
			continue
		}

		if pkg, ok := filePackages[output]; ok && pkg != t.PackageName {
			result.AddError(fmt.Errorf("%s: 输出文件 %s 已被包 %s 使用", t.Position, output, pkg))
			continue
		}
		filePackages[output] = t.PackageName
		fileTargets[output] = append(fileTargets[output], &targetInfo{name: t.Name, plan: plan})
		result.Generated++

		log.Debug("处理结构体",
			zap.String("type", t.Name),
			zap.String("output", output),
			zap.Bool("fast_path", plan.FastPath),
			zap.Stringer("shape", plan.Shape),
		)
	}

	outputPaths := lo.Keys(fileTargets)
	slices.Sort(outputPaths)
	for _, outputPath := range outputPaths {
		targets := fileTargets[outputPath]
		slices.SortFunc(targets, func(a, b *targetInfo) int {
			return strings.Compare(a.name, b.name)
		})

		gen := gg.New()
		gen.SetPackage(filePackages[outputPath])
		for i, t := range targets {
			if i > 0 {
				gen.Body().AddLine()
			}
			Emit(gen, t.plan)
		}
		result.AddDefinition(outputPath, gen)
	}

	return result, nil
}

func (g *CloneGenerator) synthesizeTarget(ctx *plugin.GenerateContext, at *plugin.AnnotatedTarget, known map[string]bool) (*Plan, string, error) {
	t := at.Target
	a, err := derive.Load(derive.Source{
		Fset:    t.Fset,
		File:    t.FilePath,
		Package: t.PackageName,
		Spec:    t.Spec,
		Doc:     t.Doc,
		Imports: t.Imports,

		PackageName: g.names.For(filepath.Dir(t.FilePath)),
	})
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", t.Position, err)
	}

	cloneAttr, err := a.Attr(traitClone)
	if err != nil {
		return nil, "", err
	}
	copyAttr, err := a.Attr(traitCopy)
	if err != nil {
		return nil, "", err
	}
	if cloneAttr == nil {
		return nil, "", a.Errorf(traitCopy, "", "@Copy 需要与 @Clone 一起使用")
	}

	opts, err := derive.ParseTypeOptions(a, traitClone, cloneAttr, derive.KeyBound|derive.KeyOutput)
	if err != nil {
		return nil, "", err
	}
	if ctx.Verbose {
		ctx.Log().Debug("注解选项", zap.String("type", t.Name), zap.String("options", spew.Sdump(opts)))
	}
	if _, err := derive.ParseTypeOptions(a, traitCopy, copyAttr, 0); err != nil {
		return nil, "", err
	}

	plan, err := Synthesize(a, opts, copyAttr != nil, known)
	if err != nil {
		return nil, "", err
	}

	output, err := plugin.GetOutputPath(t, opts.Output, plugin.DefaultOutputFile, ctx.GetPackageConfig(t), g.Name(), ctx.DefaultOutput)
	if err != nil {
		return nil, "", a.Errorf(traitClone, "output", "%v", err)
	}
	return plan, output, nil
}
