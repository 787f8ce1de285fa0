// Package pkgresolver 把导入路径解析为源码里真实的 package 名
//
// 生成代码引用的限定名必须与源文件一致，而 gopkg.in/yaml.v3、
// github.com/mattn/go-runewidth 这类路径无法从最后一段推出包名。
// 查找顺序: 标准库 -> 当前模块（含 vendor）-> go.mod 声明的依赖版本 -> 模块缓存最新版本。
package pkgresolver

import (
	"fmt"
	"go/build"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"
)

// moduleInfo 源文件所在模块
type moduleInfo struct {
	root     string
	path     string
	requires map[string]string // 模块路径 -> 版本
}

// Resolver 包名解析器，可并发使用
type Resolver struct {
	goroot   string
	modCache string

	mu      sync.Mutex
	names   map[string]string      // 磁盘目录 -> 包名
	modules map[string]*moduleInfo // 源码目录 -> 模块，nil 表示不在模块中
}

// New 使用当前环境的 GOROOT 与 GOMODCACHE
func New() *Resolver {
	return NewWithRoots(build.Default.GOROOT, defaultModCache())
}

// NewWithRoots 指定 GOROOT 与模块缓存目录
func NewWithRoots(goroot, modCache string) *Resolver {
	return &Resolver{
		goroot:   goroot,
		modCache: modCache,
		names:    make(map[string]string),
		modules:  make(map[string]*moduleInfo),
	}
}

func defaultModCache() string {
	if dir := os.Getenv("GOMODCACHE"); dir != "" {
		return dir
	}
	goPath := os.Getenv("GOPATH")
	if goPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		goPath = filepath.Join(home, "go")
	}
	return filepath.Join(filepath.SplitList(goPath)[0], "pkg", "mod")
}

// For 返回绑定了源码目录的解析函数
func (r *Resolver) For(srcDir string) func(importPath string) (string, bool) {
	return func(importPath string) (string, bool) {
		return r.PackageName(srcDir, importPath)
	}
}

// PackageName 解析 srcDir 中的源文件导入 importPath 时使用的包名
// 找不到包时返回 false，由调用方按惯例推断
func (r *Resolver) PackageName(srcDir, importPath string) (string, bool) {
	if importPath == "" {
		return "", false
	}
	for _, dir := range r.candidateDirs(srcDir, importPath) {
		if name, err := r.readPackageName(dir); err == nil {
			return name, true
		}
	}
	return "", false
}

func (r *Resolver) candidateDirs(srcDir, importPath string) []string {
	var dirs []string
	if isStdLib(importPath) {
		if r.goroot != "" {
			dirs = append(dirs, filepath.Join(r.goroot, "src", filepath.FromSlash(importPath)))
		}
		return dirs
	}

	mod := r.module(srcDir)
	if mod != nil {
		if rel, ok := trimModulePath(importPath, mod.path); ok {
			dirs = append(dirs, filepath.Join(mod.root, filepath.FromSlash(rel)))
		}
		dirs = append(dirs, filepath.Join(mod.root, "vendor", filepath.FromSlash(importPath)))
		for modPath, version := range mod.requires {
			if rel, ok := trimModulePath(importPath, modPath); ok {
				if dir, err := r.cacheDir(modPath, version); err == nil {
					dirs = append(dirs, filepath.Join(dir, filepath.FromSlash(rel)))
				}
			}
		}
	}

	if dir, err := r.latestCacheDir(importPath); err == nil {
		dirs = append(dirs, dir)
	}
	return dirs
}

// isStdLib 标准库路径的第一段不含点
func isStdLib(importPath string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}

// trimModulePath importPath 属于模块 modPath 时返回包在模块内的相对路径
func trimModulePath(importPath, modPath string) (string, bool) {
	if importPath == modPath {
		return "", true
	}
	if strings.HasPrefix(importPath, modPath+"/") {
		return strings.TrimPrefix(importPath, modPath+"/"), true
	}
	return "", false
}

// module 向上查找 go.mod，结果按目录缓存
func (r *Resolver) module(srcDir string) *moduleInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mod, ok := r.modules[srcDir]; ok {
		return mod
	}

	var mod *moduleInfo
	for dir := srcDir; ; {
		data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
		if err == nil {
			mod = parseModule(dir, data)
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	r.modules[srcDir] = mod
	return mod
}

func parseModule(root string, data []byte) *moduleInfo {
	f, err := modfile.ParseLax(filepath.Join(root, "go.mod"), data, nil)
	if err != nil || f.Module == nil {
		return nil
	}
	mod := &moduleInfo{root: root, path: f.Module.Mod.Path, requires: make(map[string]string)}
	for _, req := range f.Require {
		mod.requires[req.Mod.Path] = req.Mod.Version
	}
	return mod
}

// cacheDir 模块缓存中指定版本的目录，路径中的大写字母需要转义
func (r *Resolver) cacheDir(modPath, version string) (string, error) {
	if r.modCache == "" {
		return "", fmt.Errorf("未找到模块缓存目录")
	}
	escaped, err := module.EscapePath(modPath)
	if err != nil {
		return "", err
	}
	escapedVersion, err := module.EscapeVersion(version)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.modCache, filepath.FromSlash(escaped)+"@"+escapedVersion), nil
}

// latestCacheDir 不在 go.mod 中时，从最长的模块前缀开始查找缓存里版本最高的目录
func (r *Resolver) latestCacheDir(importPath string) (string, error) {
	if r.modCache == "" {
		return "", fmt.Errorf("未找到模块缓存目录")
	}
	parts := strings.Split(importPath, "/")
	for i := len(parts); i >= 1; i-- {
		modPath := strings.Join(parts[:i], "/")
		escaped, err := module.EscapePath(modPath)
		if err != nil {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(r.modCache, filepath.FromSlash(escaped)+"@*"))
		if err != nil || len(matches) == 0 {
			continue
		}

		best, bestVersion := "", ""
		for _, m := range matches {
			_, v, _ := strings.Cut(filepath.Base(m), "@")
			if !semver.IsValid(v) {
				continue
			}
			if best == "" || semver.Compare(v, bestVersion) > 0 {
				best, bestVersion = m, v
			}
		}
		if best == "" {
			continue
		}
		dir := filepath.Join(best, filepath.FromSlash(strings.Join(parts[i:], "/")))
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}
	return "", fmt.Errorf("未找到模块 %s", importPath)
}

// readPackageName 读取目录中第一个非测试源文件的 package 声明
func (r *Resolver) readPackageName(dir string) (string, error) {
	r.mu.Lock()
	name, ok := r.names[dir]
	r.mu.Unlock()
	if ok {
		return name, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	fset := token.NewFileSet()
	for _, entry := range entries {
		fileName := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(fileName, ".go") || strings.HasSuffix(fileName, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, fileName), nil, parser.PackageClauseOnly)
		if err != nil || f.Name == nil || f.Name.Name == "main" || f.Name.Name == "documentation" {
			continue
		}
		r.mu.Lock()
		r.names[dir] = f.Name.Name
		r.mu.Unlock()
		return f.Name.Name, nil
	}
	return "", fmt.Errorf("目录 %s 中没有找到 Go 源文件", dir)
}
