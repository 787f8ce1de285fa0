package plugin

import (
	"bufio"
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scanner 两阶段并行注解扫描器
// 第一阶段：快速文本匹配，找出可能包含注解的文件
// 第二阶段：对匹配的文件进行 AST 解析
type Scanner struct {
	workers int
	logger  *zap.Logger

	// 注解过滤器（可选）
	annotationFilter []string
}

// ScannerOption 扫描器选项
type ScannerOption func(*Scanner)

func WithWorkers(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithScannerLogger(logger *zap.Logger) ScannerOption {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAnnotationFilter(annotations ...string) ScannerOption {
	return func(s *Scanner) {
		s.annotationFilter = annotations
	}
}

func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		workers: runtime.NumCPU(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	// quickMatchRegex 快速匹配注解名
	quickMatchRegex = regexp.MustCompile(`@(\w+)`)

	// generatedRegex Go 约定的生成文件标记
	generatedRegex = regexp.MustCompile(`^// Code generated .* DO NOT EDIT\.$`)

	// directiveRegex 匹配 go:derivegen: 指令，支持 //go:derivegen: 和 // go:derivegen:
	directiveRegex = regexp.MustCompile(`go:derivegen:\s*(.*)`)
)

// generatedSuffixes 扫描时跳过的文件后缀
var generatedSuffixes = []string{"_test.go", "_derive.go"}

// Scan 扫描指定路径
// 支持: ./... ./pkg/... ./pkg /abs/path/... /abs/file.go
func (s *Scanner) Scan(ctx context.Context, patterns ...string) (*ScanResult, error) {
	allFiles, err := s.collectFiles(patterns)
	if err != nil {
		return nil, err
	}

	empty := &ScanResult{PackageConfigs: make(map[string]*PackageConfig)}
	if len(allFiles) == 0 {
		return empty, nil
	}

	// ========== 第一阶段：快速匹配 ==========
	matchedFiles, err := s.quickMatch(ctx, allFiles)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("快速匹配完成", zap.Int("files", len(allFiles)), zap.Int("matched", len(matchedFiles)))

	if len(matchedFiles) == 0 {
		return empty, nil
	}

	// ========== 第二阶段：AST 解析 ==========
	return s.parseFiles(ctx, matchedFiles)
}

// quickMatch 第一阶段：快速文本匹配
// 并行读取文件，结果保持输入顺序
func (s *Scanner) quickMatch(ctx context.Context, files []string) ([]string, error) {
	matched := make([]bool, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := s.QuickMatchFile(file)
			if err != nil {
				s.logger.Warn("读取文件失败", zap.String("file", file), zap.Error(err))
				return nil
			}
			matched[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return lo.Filter(files, func(_ string, i int) bool {
		return matched[i]
	}), nil
}

// QuickMatchFile 快速检查文件是否包含注解或 go:derivegen 配置
// 生成文件（带 Code generated 标记）总是返回 false
// 用于 dev 模式判断文件是否需要触发代码生成
func (s *Scanner) QuickMatchFile(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	found := false
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(trimmed, "//") && !strings.HasPrefix(trimmed, "/*") && !strings.HasPrefix(trimmed, "*") {
			continue
		}
		if generatedRegex.MatchString(trimmed) {
			return false, nil
		}
		if found {
			continue
		}

		if strings.Contains(trimmed, "go:derivegen:") {
			found = true
			continue
		}

		for _, match := range quickMatchRegex.FindAllStringSubmatch(trimmed, -1) {
			if len(s.annotationFilter) == 0 || lo.Contains(s.annotationFilter, match[1]) {
				found = true
				break
			}
		}
	}

	return found, scanner.Err()
}

type fileResult struct {
	structs   []*AnnotatedTarget
	pkgConfig *PackageConfig
}

// parseFiles 第二阶段：AST 解析
func (s *Scanner) parseFiles(ctx context.Context, files []string) (*ScanResult, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := s.parseFile(file)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ScanResult{
		PackageConfigs: make(map[string]*PackageConfig),
	}
	for _, r := range results {
		result.Structs = append(result.Structs, r.structs...)
		if r.pkgConfig != nil {
			s.mergePackageConfig(result.PackageConfigs, r.pkgConfig)
		}
	}

	return result, nil
}

// mergePackageConfig 合并同一个包中不同文件的配置，后发现的覆盖先发现的
func (s *Scanner) mergePackageConfig(configs map[string]*PackageConfig, cfg *PackageConfig) {
	pkgDir := cfg.PackageDir
	existing, ok := configs[pkgDir]
	if !ok {
		configs[pkgDir] = cfg
		return
	}

	if cfg.DefaultOutput != "" {
		if existing.DefaultOutput != "" && existing.DefaultOutput != cfg.DefaultOutput {
			s.logger.Warn("包中存在多个不同的 go:derivegen 默认输出配置，使用后发现的配置", zap.String("package", pkgDir))
		}
		existing.DefaultOutput = cfg.DefaultOutput
	}
	for k, v := range cfg.PluginOutputs {
		if existingV, ok := existing.PluginOutputs[k]; ok && existingV != v {
			s.logger.Warn("插件存在多个不同的输出配置，使用后发现的配置", zap.String("package", pkgDir), zap.String("plugin", k))
		}
		existing.PluginOutputs[k] = v
	}
}

// parseFile AST 解析单个文件
func (s *Scanner) parseFile(filePath string) (fileResult, error) {
	var result fileResult

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, nil, parser.ParseComments)
	if err != nil {
		return result, fmt.Errorf("解析 %s 失败: %w", filePath, err)
	}

	result.pkgConfig = s.parsePackageConfig(file, filePath)

	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		result.structs = append(result.structs, s.parseTypeDecl(fset, filePath, file, gen)...)
	}

	return result, nil
}

// parseTypeDecl 解析类型声明
// 分组声明 type ( ... ) 中每个类型只使用自己的文档注释
func (s *Scanner) parseTypeDecl(fset *token.FileSet, filePath string, file *ast.File, decl *ast.GenDecl) []*AnnotatedTarget {
	var targets []*AnnotatedTarget

	for _, spec := range decl.Specs {
		typeSpec, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}

		doc := typeSpec.Doc
		if doc == nil && !decl.Lparen.IsValid() {
			doc = decl.Doc
		}
		if doc == nil {
			continue
		}

		annotations := ParseAnnotations(doc.Text())
		if len(s.annotationFilter) > 0 {
			annotations = FilterByNames(annotations, s.annotationFilter...)
		}
		if len(annotations) == 0 {
			continue
		}

		if _, ok := typeSpec.Type.(*ast.StructType); !ok || typeSpec.Assign.IsValid() {
			s.logger.Warn("注解只能用于结构体声明，已忽略",
				zap.String("type", typeSpec.Name.Name),
				zap.String("pos", fset.Position(typeSpec.Pos()).String()))
			continue
		}

		targets = append(targets, &AnnotatedTarget{
			Target: &Target{
				Kind:        TargetStruct,
				Name:        typeSpec.Name.Name,
				PackageName: file.Name.Name,
				FilePath:    filePath,
				Position:    fset.Position(typeSpec.Pos()),
				Fset:        fset,
				Spec:        typeSpec,
				Doc:         doc,
				Imports:     file.Imports,
			},
			Annotations: annotations,
		})
	}

	return targets
}

// collectFiles 收集所有需要扫描的文件，按路径顺序返回
func (s *Scanner) collectFiles(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		recursive := strings.HasSuffix(pattern, "/...")
		if recursive {
			pattern = strings.TrimSuffix(pattern, "/...")
		}

		absPath, err := filepath.Abs(pattern)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			if strings.HasSuffix(absPath, ".go") {
				add(absPath)
			}
			continue
		}

		err = filepath.WalkDir(absPath, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				if path == absPath {
					return nil
				}
				name := d.Name()
				if !recursive || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
					name == "vendor" || name == "testdata" {
					return filepath.SkipDir
				}
				return nil
			}

			if IsSourceFile(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}

// IsSourceFile 是否为需要扫描的源文件（排除测试文件和生成文件）
func IsSourceFile(path string) bool {
	if !strings.HasSuffix(path, ".go") {
		return false
	}
	return !lo.SomeBy(generatedSuffixes, func(suffix string) bool {
		return strings.HasSuffix(path, suffix)
	})
}

// 默认扫描器
var defaultScanner = NewScanner()

func Scan(ctx context.Context, patterns ...string) (*ScanResult, error) {
	return defaultScanner.Scan(ctx, patterns...)
}

func ScanWithFilter(ctx context.Context, annotations []string, patterns ...string) (*ScanResult, error) {
	scanner := NewScanner(WithAnnotationFilter(annotations...))
	return scanner.Scan(ctx, patterns...)
}

// parsePackageConfig 解析包级 go:derivegen: 配置
// 支持格式:
//
//	//go:derivegen: -output `$FILE_derive.go`
//	// go:derivegen: plugin:clone -output `clone_gen.go` plugin:default -output `default_gen.go`
func (s *Scanner) parsePackageConfig(file *ast.File, filePath string) *PackageConfig {
	var lines []string

	for _, cg := range file.Comments {
		for _, c := range cg.List {
			text := strings.TrimPrefix(c.Text, "//")
			text = strings.TrimPrefix(text, "/*")
			text = strings.TrimSuffix(text, "*/")
			text = strings.TrimSpace(text)

			if matches := directiveRegex.FindStringSubmatch(text); len(matches) > 1 {
				lines = append(lines, matches[1])
			}
		}
	}

	if len(lines) == 0 {
		return nil
	}

	if len(lines) > 1 {
		s.logger.Warn("文件定义了多个 go:derivegen: 指令，将被忽略", zap.String("file", filePath))
		return nil
	}

	return parseDirectiveLine(lines[0], filePath)
}

// parseDirectiveLine 解析单行 go:derivegen: 配置
// 格式:
//
//	-output `xxx`                                         // 默认输出
//	plugin:clone -output `xxx` plugin:default -output `yyy`  // 插件特定输出
func parseDirectiveLine(line string, filePath string) *PackageConfig {
	config := &PackageConfig{
		PackageDir:    packageDir(filePath),
		PluginOutputs: make(map[string]string),
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	parts := splitDirectiveArgs(line)

	var currentPlugin string
	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "plugin:") {
			currentPlugin = strings.ToLower(strings.TrimPrefix(part, "plugin:"))
		} else if part == "-output" && i+1 < len(parts) {
			i++
			output := trimQuotes(parts[i])
			if currentPlugin == "" {
				config.DefaultOutput = output
			} else {
				config.PluginOutputs[currentPlugin] = output
			}
		}
	}

	if config.DefaultOutput == "" && len(config.PluginOutputs) == 0 {
		return nil
	}

	return config
}

// splitDirectiveArgs 分割指令参数，支持引号内的空格
func splitDirectiveArgs(line string) []string {
	var parts []string
	var current strings.Builder
	quoteChar := byte(0)

	for i := 0; i < len(line); i++ {
		c := line[i]

		switch {
		case quoteChar == 0 && (c == '`' || c == '"' || c == '\''):
			quoteChar = c
			current.WriteByte(c)
		case quoteChar != 0 && c == quoteChar:
			quoteChar = 0
			current.WriteByte(c)
		case quoteChar == 0 && (c == ' ' || c == '\t'):
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteByte(c)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}

// trimQuotes 去除引号
func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '`' && s[len(s)-1] == '`') ||
			(s[0] == '"' && s[len(s)-1] == '"') ||
			(s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
