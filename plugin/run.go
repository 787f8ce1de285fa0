package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/donutnomad/gg"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/donutnomad/derivegen/internal/utils"
)

// GeneratedHeader 生成文件头
const GeneratedHeader = "Code generated by derivegen. DO NOT EDIT."

// ErrStale check 模式下存在过期的生成文件
var ErrStale = errors.New("生成文件已过期，请重新运行 derivegen")

// Run 运行代码生成
// 1. 扫描指定路径的注解
// 2. 将目标分发给对应的生成器
// 3. 执行生成器
// 4. 合并同一文件的 gg 定义，格式化后写入文件
func Run(ctx context.Context, registry *Registry, patterns ...string) error {
	opts := &RunOptions{
		Registry: registry,
		Patterns: patterns,
	}
	return RunWithOptions(ctx, opts)
}

// RunGlobal 使用全局注册表运行
func RunGlobal(ctx context.Context, patterns ...string) error {
	return Run(ctx, globalRegistry, patterns...)
}

// RunOptions 运行选项
type RunOptions struct {
	Registry *Registry
	Patterns []string
	Verbose  bool
	Output   string      // 命令行指定的默认输出路径
	Async    bool        // 是否并行执行生成器
	Check    bool        // 只与磁盘内容比较，不写入
	Logger   *zap.Logger // 为空时不输出日志
	Stdout   io.Writer   // check 模式的 diff 输出，默认 os.Stdout
}

// RunStats 运行统计信息
type RunStats struct {
	ScanDuration     time.Duration `json:"scan_duration"`     // 扫描耗时
	GenerateDuration time.Duration `json:"generate_duration"` // 生成耗时
	TotalDuration    time.Duration `json:"total_duration"`    // 总耗时
	TargetCount      int           `json:"target_count"`      // 目标数量
	FileCount        int           `json:"file_count"`        // 生成文件数量
	Files            []string      `json:"files"`             // 写入（或 check 模式下比较）的文件
	Stale            []string      `json:"stale,omitempty"`   // check 模式下内容不一致的文件
	Errors           []string      `json:"errors,omitempty"`
}

// RunError 汇总生成过程中的所有错误，出现任何错误时不写入任何文件
type RunError struct {
	Errors []error
}

func (e *RunError) Error() string {
	lines := lo.Map(e.Errors, func(err error, _ int) string {
		return "  " + err.Error()
	})
	return fmt.Sprintf("生成过程中出现 %d 个错误:\n%s", len(e.Errors), strings.Join(lines, "\n"))
}

func (e *RunError) Unwrap() []error {
	return e.Errors
}

// RunWithOptions 带选项运行
func RunWithOptions(ctx context.Context, opts *RunOptions) error {
	_, err := RunWithOptionsAndStats(ctx, opts)
	return err
}

// genResultItem 单个生成器的执行结果
type genResultItem struct {
	genName string
	result  *GenerateResult
	err     error
}

// RunWithOptionsAndStats 带选项运行并返回统计信息
func RunWithOptionsAndStats(ctx context.Context, opts *RunOptions) (*RunStats, error) {
	totalStart := time.Now()
	stats := &RunStats{}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := opts.Registry
	if registry == nil {
		registry = globalRegistry
	}

	annotations := registry.Annotations()
	if len(annotations) == 0 {
		return nil, fmt.Errorf("没有已注册的生成器")
	}

	// 扫描
	scanStart := time.Now()
	scanner := NewScanner(
		WithAnnotationFilter(annotations...),
		WithScannerLogger(logger.Named("scanner")),
	)
	result, err := scanner.Scan(ctx, opts.Patterns...)
	if err != nil {
		return nil, fmt.Errorf("扫描失败: %w", err)
	}
	stats.ScanDuration = time.Since(scanStart)

	if len(result.All()) == 0 {
		logger.Info("没有找到任何带注解的目标")
		stats.TotalDuration = time.Since(totalStart)
		return stats, nil
	}

	stats.TargetCount = len(result.All())
	logger.Info("扫描完成", zap.Int("targets", stats.TargetCount), zap.Duration("elapsed", stats.ScanDuration))

	generateStart := time.Now()

	dispatch := registry.DispatchTargets(result)

	// 按优先级排序生成器名称（优先级数字越小越靠前）
	genNames := lo.Keys(dispatch)
	slices.SortFunc(genNames, func(a, b string) int {
		genA, _ := registry.GetByName(a)
		genB, _ := registry.GetByName(b)
		if genA.Priority() != genB.Priority() {
			return genA.Priority() - genB.Priority()
		}
		return strings.Compare(a, b)
	})

	executeGenerator := func(genName string) genResultItem {
		targets := dispatch[genName]
		gen, _ := registry.GetByName(genName)
		genLogger := logger.Named(genName)

		genCtx := &GenerateContext{
			Targets:        targets,
			PackageConfigs: result.PackageConfigs,
			DefaultOutput:  opts.Output,
			Logger:         genLogger,
			Verbose:        opts.Verbose,
		}

		start := time.Now()
		genResult, err := gen.Generate(genCtx)
		genLogger.Debug("生成器执行完成", zap.Int("targets", len(targets)), zap.Duration("elapsed", time.Since(start)))

		return genResultItem{genName: genName, result: genResult, err: err}
	}

	items := make([]genResultItem, len(genNames))
	if opts.Async {
		g, _ := errgroup.WithContext(ctx)
		for i, genName := range genNames {
			g.Go(func() error {
				items[i] = executeGenerator(genName)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, genName := range genNames {
			items[i] = executeGenerator(genName)
		}
	}

	// 按优先级顺序收集 gg 定义，按文件分组
	var allErrors []error
	fileDefinitions := make(map[string][]*gg.Generator)
	fileGenNames := make(map[string][]string)
	for _, item := range items {
		if item.err != nil {
			allErrors = append(allErrors, fmt.Errorf("生成器 %s 执行失败: %w", item.genName, item.err))
			continue
		}
		if item.result == nil {
			continue
		}
		for path, def := range item.result.Definitions {
			fileDefinitions[path] = append(fileDefinitions[path], def)
			fileGenNames[path] = append(fileGenNames[path], item.genName)
		}
		allErrors = append(allErrors, item.result.Errors...)
	}

	// 合并并格式化，全部成功后才落盘
	paths := lo.Keys(fileDefinitions)
	slices.Sort(paths)
	outputs := make(map[string][]byte, len(paths))
	for _, path := range paths {
		merged, err := mergeDefinitionsWithSeparator(fileDefinitions[path], fileGenNames[path])
		if err != nil {
			allErrors = append(allErrors, fmt.Errorf("合并文件 %s 的定义失败: %w", path, err))
			continue
		}
		formatted, err := utils.FormatSource(path, merged.Bytes())
		if err != nil {
			allErrors = append(allErrors, err)
			continue
		}
		outputs[path] = formatted
	}

	stats.GenerateDuration = time.Since(generateStart)

	if len(allErrors) > 0 {
		stats.Errors = lo.Map(allErrors, func(err error, _ int) string { return err.Error() })
		stats.TotalDuration = time.Since(totalStart)
		return stats, &RunError{Errors: allErrors}
	}

	if opts.Check {
		err = checkOutputs(opts.Stdout, paths, outputs, stats)
		stats.TotalDuration = time.Since(totalStart)
		return stats, err
	}

	for _, path := range paths {
		written, err := utils.WriteFile(path, outputs[path])
		if err != nil {
			stats.TotalDuration = time.Since(totalStart)
			return stats, fmt.Errorf("写入文件 %s 失败: %w", path, err)
		}
		stats.FileCount++
		stats.Files = append(stats.Files, path)
		if written {
			logger.Info("生成文件", zap.String("path", path))
		} else {
			logger.Debug("文件未变化", zap.String("path", path))
		}
	}

	stats.TotalDuration = time.Since(totalStart)
	return stats, nil
}

// checkOutputs 比较生成内容与磁盘内容，输出统一 diff
func checkOutputs(w io.Writer, paths []string, outputs map[string][]byte, stats *RunStats) error {
	if w == nil {
		w = os.Stdout
	}
	for _, path := range paths {
		stats.FileCount++
		stats.Files = append(stats.Files, path)

		old, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("读取文件 %s 失败: %w", path, err)
		}
		if string(old) == string(outputs[path]) {
			continue
		}

		stats.Stale = append(stats.Stale, path)
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(old)),
			B:        difflib.SplitLines(string(outputs[path])),
			FromFile: path + " (当前)",
			ToFile:   path + " (重新生成)",
			Context:  3,
		})
		if err != nil {
			return fmt.Errorf("生成 %s 的 diff 失败: %w", path, err)
		}
		fmt.Fprint(w, diff)
	}

	if len(stats.Stale) > 0 {
		return fmt.Errorf("%w: %d 个文件", ErrStale, len(stats.Stale))
	}
	return nil
}

// mergeDefinitionsWithSeparator 合并多个 gg.Generator 定义到一个文件，并添加分隔符
func mergeDefinitionsWithSeparator(definitions []*gg.Generator, genNames []string) (*gg.Generator, error) {
	if len(definitions) == 0 {
		return nil, fmt.Errorf("没有定义需要合并")
	}

	merged := gg.New()
	merged.SetHeader(GeneratedHeader)

	var pkgName string
	for _, def := range definitions {
		if def.PackageName() == "" {
			continue
		}
		if pkgName == "" {
			pkgName = def.PackageName()
		} else if pkgName != def.PackageName() {
			return nil, fmt.Errorf("包名不一致: %s vs %s", pkgName, def.PackageName())
		}
	}
	if pkgName != "" {
		merged.SetPackage(pkgName)
	}

	// Merge 会带上每个定义登记的导入和别名
	for i, def := range definitions {
		genName := "unknown"
		if i < len(genNames) {
			genName = genNames[i]
		}
		merged.Body().AddLine()
		merged.Body().AddString(fmt.Sprintf("// ================ %s ================", genName))
		merged.Body().AddLine()

		merged.Merge(def)
	}

	return merged, nil
}
