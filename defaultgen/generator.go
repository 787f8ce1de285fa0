package defaultgen

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

const generatorName = "defaultgen"

// DefaultParams 定义 @Default 注解支持的参数
// 只用于帮助信息，选项由 derive.ParseTypeOptions 解析校验
type DefaultParams struct {
	Bound      string `param:"name=bound,required=false,default=,description=泛型约束: bound | bound = \"T: C\" | bound(T = \"C\") | bound()"`
	New        string `param:"name=new,required=false,default=false,description=额外生成 NewX() *X"`
	Expression string `param:"name=expression,required=false,default=,description=完整的默认值表达式，原样输出"`
	Convert    string `param:"name=convert,required=false,default=string,description=字符串字面量转换为字段类型: string | none"`
	Output     string `param:"name=output,required=false,default=,description=输出文件路径，支持 $FILE $PACKAGE $TYPE 与模板"`
}

// DefaultGenerator 实现 plugin.Generator 接口
type DefaultGenerator struct {
	plugin.BaseGenerator
	names *pkgresolver.Resolver
}

func NewDefaultGenerator() *DefaultGenerator {
	return &DefaultGenerator{
		BaseGenerator: plugin.NewBaseGenerator(generatorName, []string{traitDefault},
			plugin.WithParams(DefaultParams{}),
			plugin.WithPriority(20),
		),
		names: pkgresolver.New(),
	}
}

const typeKeys = derive.KeyBound | derive.KeyNew | derive.KeyExpression | derive.KeyConvert | derive.KeyOutput

// Generate 执行代码生成
func (g *DefaultGenerator) Generate(ctx *plugin.GenerateContext) (*plugin.GenerateResult, error) {
	result := plugin.NewGenerateResult()
	if len(ctx.Targets) == 0 {
		return result, nil
	}
	log := ctx.Log()

	known := plugin.KnownTypes(ctx.Targets, traitDefault)

	fileTargets := make(map[string][]*Plan)
	filePackages := make(map[string]string)

	for _, at := range ctx.Targets {
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
			result.AddError(fmt.Errorf("%s: %w", t.Position, err))
			continue
		}

		attr, err := a.Attr(traitDefault)
		if err != nil {
			result.AddError(err)
			continue
		}
		opts, err := derive.ParseTypeOptions(a, traitDefault, attr, typeKeys)
		if err != nil {
			result.AddError(err)
			continue
		}
		if ctx.Verbose {
			log.Debug("注解选项", zap.String("type", t.Name), zap.String("options", spew.Sdump(opts)))
		}

		plan, err := Synthesize(a, opts, known[filepath.Dir(t.FilePath)])
		if err != nil {
			result.AddError(err)
			continue
		}

		output, err := plugin.GetOutputPath(t, opts.Output, plugin.DefaultOutputFile, ctx.GetPackageConfig(t), g.Name(), ctx.DefaultOutput)
		if err != nil {
			result.AddError(a.Errorf(traitDefault, "output", "%v", err))
			continue
		}
		if pkg, ok := filePackages[output]; ok && pkg != t.PackageName {
			result.AddError(fmt.Errorf("%s: 输出文件 %s 已被包 %s 使用", t.Position, output, pkg))
			continue
		}
		filePackages[output] = t.PackageName
		fileTargets[output] = append(fileTargets[output], plan)
		result.Generated++

		log.Debug("处理结构体",
			zap.String("type", t.Name),
			zap.String("output", output),
			zap.Stringer("shape", plan.Shape),
			zap.Bool("override", opts.Expression != ""),
		)
	}

	outputPaths := lo.Keys(fileTargets)
	slices.Sort(outputPaths)
	for _, outputPath := range outputPaths {
		plans := fileTargets[outputPath]
		slices.SortFunc(plans, func(a, b *Plan) int {
			return strings.Compare(a.Agg.Name, b.Agg.Name)
		})

		gen := gg.New()
		gen.SetPackage(filePackages[outputPath])
		for i, plan := range plans {
			if i > 0 {
				gen.Body().AddLine()
			}
			Emit(gen, plan)
		}
		result.AddDefinition(outputPath, gen)
	}

	return result, nil
}
