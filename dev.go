package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/tools/imports"

	"github.com/donutnomad/derivegen/plugin"
)

// DevOptions dev 命令选项
type DevOptions struct {
	Patterns []string      // 监听的路径模式
	Verbose  bool          // 详细输出
	Output   string        // 默认输出路径
	Async    bool          // 异步执行
	Debounce time.Duration // 防抖动时间
	Logger   *zap.Logger
}

// devRunner 处理文件变动
type devRunner struct {
	opts     *DevOptions
	registry *plugin.Registry
	watcher  *fsnotify.Watcher
	scanner  *plugin.Scanner
	logger   *zap.Logger
	ctx      context.Context

	mu          sync.Mutex
	pendingDirs map[string]*time.Timer // key: 包目录
	generate    func(pkgDir string)
}

// runDev 启动开发模式
func runDev(args []string) {
	patterns := args
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	if len(plugin.Global().Generators()) == 0 {
		fmt.Fprintln(os.Stderr, "错误: 没有已注册的生成器")
		os.Exit(1)
	}

	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	opts := &DevOptions{
		Patterns: patterns,
		Verbose:  *verbose,
		Output:   outputPath(),
		Async:    *async,
		Debounce: time.Second,
		Logger:   logger,
	}

	if err := dev(opts); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func dev(opts *DevOptions) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()

	runner := newDevRunner(ctx, opts, plugin.Global(), watcher)
	defer runner.stop()

	dirs, err := collectWatchDirs(opts.Patterns)
	if err != nil {
		return fmt.Errorf("收集监听目录失败: %w", err)
	}
	if len(dirs) == 0 {
		return fmt.Errorf("没有找到需要监听的目录")
	}

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("添加监听目录失败 %s: %w", dir, err)
		}
		runner.logger.Debug("监听目录", zap.String("dir", dir))
	}

	// 启动时先完整生成一次
	for _, dir := range dirs {
		runner.runGenerate(dir)
	}

	fmt.Printf("开发模式已启动，监听 %d 个目录，按 Ctrl+C 退出\n", len(dirs))
	return runner.watchLoop(ctx)
}

func newDevRunner(ctx context.Context, opts *DevOptions, registry *plugin.Registry, watcher *fsnotify.Watcher) *devRunner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &devRunner{
		opts:        opts,
		registry:    registry,
		watcher:     watcher,
		scanner:     plugin.NewScanner(plugin.WithAnnotationFilter(registry.Annotations()...)),
		logger:      logger.Named("dev"),
		ctx:         ctx,
		pendingDirs: make(map[string]*time.Timer),
	}
	r.generate = r.runGenerate
	return r
}

// stop 停止所有待处理的定时器
func (r *devRunner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for dir, timer := range r.pendingDirs {
		timer.Stop()
		delete(r.pendingDirs, dir)
	}
}

func (r *devRunner) watchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n正在退出...")
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			r.handleEvent(event)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("监听错误", zap.Error(err))
		}
	}
}

func (r *devRunner) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	filePath := event.Name
	if !plugin.IsSourceFile(filePath) {
		return
	}
	log := r.logger.With(zap.String("file", filePath))
	log.Debug("检测到文件变化")

	// 带 Code generated 标记的文件也会返回 false
	hasAnnotation, err := r.scanner.QuickMatchFile(filePath)
	if err != nil {
		log.Debug("检查注解失败", zap.Error(err))
		return
	}
	if !hasAnnotation {
		log.Debug("跳过文件（无注解）")
		return
	}

	// 保存到一半的文件不触发生成
	if err := checkSyntax(filePath); err != nil {
		log.Warn("语法错误", zap.Error(err))
		return
	}

	r.scheduleGenerate(filepath.Dir(filePath))
}

// scheduleGenerate 防抖动调度，同一目录在 Debounce 内只生成一次
func (r *devRunner) scheduleGenerate(pkgDir string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if timer, exists := r.pendingDirs[pkgDir]; exists {
		timer.Stop()
	}

	r.pendingDirs[pkgDir] = time.AfterFunc(r.opts.Debounce, func() {
		r.mu.Lock()
		delete(r.pendingDirs, pkgDir)
		r.mu.Unlock()

		if r.ctx.Err() != nil {
			return
		}
		r.generate(pkgDir)
	})
}

func (r *devRunner) runGenerate(pkgDir string) {
	log := r.logger.With(zap.String("dir", pkgDir))
	log.Debug("触发代码生成")

	stats, err := plugin.RunWithOptionsAndStats(r.ctx, &plugin.RunOptions{
		Registry: r.registry,
		Patterns: []string{pkgDir},
		Verbose:  r.opts.Verbose,
		Output:   r.opts.Output,
		Async:    r.opts.Async,
		Logger:   r.logger,
	})
	if err != nil {
		fmt.Printf("生成失败: %v\n", err)
		return
	}

	if stats != nil && stats.FileCount > 0 {
		fmt.Printf("生成完成: %s, %d 个文件 (耗时: %v)\n", pkgDir, stats.FileCount, stats.TotalDuration)
	} else {
		log.Debug("生成完成: 无文件生成")
	}
}

// checkSyntax 只检查语法，不修改 imports
func checkSyntax(filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	_, err = imports.Process(filePath, content, &imports.Options{
		Fragment:   true,
		AllErrors:  true,
		Comments:   true,
		FormatOnly: true,
	})
	return err
}

// collectWatchDirs 收集需要监听的目录，/... 后缀递归收集
func collectWatchDirs(patterns []string) ([]string, error) {
	var dirs []string
	seen := make(map[string]bool)
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, pattern := range patterns {
		recursive := strings.HasSuffix(pattern, "/...")
		baseDir := strings.TrimSuffix(pattern, "/...")
		if baseDir == "" || baseDir == "." {
			baseDir = "."
		}

		absDir, err := filepath.Abs(baseDir)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(absDir)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			continue
		}

		if !recursive {
			add(absDir)
			continue
		}

		err = filepath.WalkDir(absDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			name := d.Name()
			if path != absDir && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return dirs, nil
}
