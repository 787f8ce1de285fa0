package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/donutnomad/derivegen/clonegen"
	"github.com/donutnomad/derivegen/defaultgen"
	"github.com/donutnomad/derivegen/plugin"
)

func init() {
	// 集中注册所有生成器
	plugin.MustRegister(clonegen.NewCloneGenerator())
	plugin.MustRegister(defaultgen.NewDefaultGenerator())
}

var (
	verbose  = flag.Bool("v", false, "详细输出")
	help     = flag.Bool("h", false, "显示帮助信息")
	output   = flag.String("output", "", "默认输出路径（支持模板变量 $FILE, $PACKAGE, $TYPE）")
	noOutput = flag.Bool("no-output", false, "忽略 -output，每个生成器使用自己的默认输出")
	async    = flag.Bool("async", true, "并行执行生成器")
	jsonOut  = flag.Bool("json", false, "以 JSON 输出统计信息")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *help {
		usage()
		os.Exit(0)
	}

	args := flag.Args()

	// 默认命令是 gen
	if len(args) == 0 {
		os.Exit(runGen([]string{"./..."}, false))
	}

	switch args[0] {
	case "gen":
		os.Exit(runGen(args[1:], false))
	case "check":
		os.Exit(runGen(args[1:], true))
	case "dev":
		runDev(args[1:])
	default:
		// 不是子命令，当作路径参数处理
		os.Exit(runGen(args, false))
	}
}

// newLogger -v 时输出调试日志，否则只输出警告和错误
func newLogger(verbose bool) *zap.Logger {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func outputPath() string {
	if *noOutput {
		return ""
	}
	return *output
}

// runGen 执行生成，返回进程退出码
func runGen(args []string, check bool) int {
	patterns := args
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	registry := plugin.Global()
	if len(registry.Generators()) == 0 {
		fmt.Fprintln(os.Stderr, "错误: 没有已注册的生成器")
		return 1
	}

	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	if *verbose {
		for _, gen := range registry.Generators() {
			anns := lo.Map(gen.Annotations(), func(item string, _ int) string {
				return "@" + item
			})
			logger.Debug("已注册生成器", zap.String("name", gen.Name()), zap.String("annotations", strings.Join(anns, ",")))
		}
	}

	opts := &plugin.RunOptions{
		Registry: registry,
		Patterns: patterns,
		Verbose:  *verbose,
		Output:   outputPath(),
		Async:    *async,
		Check:    check,
		Logger:   logger,
	}

	stats, err := plugin.RunWithOptionsAndStats(context.Background(), opts)

	if *jsonOut && stats != nil {
		data, mErr := sonic.ConfigStd.MarshalIndent(stats, "", "  ")
		if mErr != nil {
			fmt.Fprintf(os.Stderr, "错误: %v\n", mErr)
			return 1
		}
		fmt.Println(string(data))
	}

	if err != nil {
		if errors.Is(err, plugin.ErrStale) {
			fmt.Fprintln(os.Stderr, err)
		} else {
			fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		}
		return 1
	}

	if !*jsonOut && stats != nil && (stats.FileCount > 0 || *verbose) {
		verb := "生成"
		if check {
			verb = "检查"
		}
		fmt.Printf("统计: 扫描 %d 个目标, %s %d 个文件\n", stats.TargetCount, verb, stats.FileCount)
		fmt.Printf("耗时: 扫描 %v, 生成 %v, 总计 %v\n", stats.ScanDuration, stats.GenerateDuration, stats.TotalDuration)
	}
	return 0
}

func usage() {
	_, _ = fmt.Fprintf(os.Stderr, `derivegen - 为结构体生成 Clone/Default 实现

用法:
  derivegen [选项] [路径...]
  derivegen gen [选项] [路径...]
  derivegen check [选项] [路径...]
  derivegen dev [选项] [路径...]

命令:
  gen     执行代码生成（默认）
  check   只比较生成结果与磁盘文件，不一致时输出 diff 并以 1 退出
  dev     启动开发模式，监听文件变动自动生成

路径:
  支持 Go 包路径模式，如:
    ./...          递归扫描当前目录及子目录（默认）
    ./models/...   递归扫描 models 目录

选项:
`)
	flag.PrintDefaults()

	registry := plugin.Global()
	if len(registry.Generators()) > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "\n支持的注解:\n")
		_, _ = fmt.Fprint(os.Stderr, plugin.FormatHelpText(registry))
	}

	_, _ = fmt.Fprintf(os.Stderr, `模板变量:
  $FILE     - 源文件名（不含 .go 后缀）
  $PACKAGE  - 包名
  $TYPE     - 类型名（snake_case）

示例:
  derivegen ./...                           递归扫描当前目录
  derivegen -v ./models/...                 详细模式扫描 models 目录
  derivegen -output '$PACKAGE_derive.go'    所有类型输出到同一文件
  derivegen check -json ./...               CI 中检查生成文件是否最新
  derivegen dev ./...                       开发模式，监听文件变动
`)
}
