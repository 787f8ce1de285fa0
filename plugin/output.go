package plugin

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/donutnomad/derivegen/internal/utils"
)

// DefaultOutputFile 生成器默认输出文件名
const DefaultOutputFile = "$FILE_derive.go"

// OutputVars 输出路径模板变量
type OutputVars struct {
	File    string // 源文件名（不含 .go 后缀）
	Package string // 包名
	Type    string // 结构体名
}

// GetOutputPath 计算输出路径
// 优先级：注解参数 > 包级插件配置 > 包级默认配置 > 命令行参数 > 默认文件名
// 简单变量：
//   - $FILE: 源文件名（不含 .go 后缀）
//   - $PACKAGE: 包名
//   - $TYPE: 结构体名的蛇形形式
//
// 包含 {{ 时按 text/template 渲染，可使用 sprig 函数，如 {{ .Type | snakecase }}
func GetOutputPath(target *Target, annOutput, defaultFileName string, pkgConfig *PackageConfig, pluginName, cmdOutput string) (string, error) {
	output := annOutput

	if output == "" && pkgConfig != nil {
		output = pkgConfig.GetPluginOutput(strings.ToLower(pluginName))
	}

	if output == "" {
		output = cmdOutput
	}

	if output == "" {
		output = defaultFileName
	}
	if output == "" {
		output = DefaultOutputFile
	}

	output, err := renderOutput(output, target)
	if err != nil {
		return "", err
	}

	if !strings.HasSuffix(output, ".go") {
		output += ".go"
	}

	if filepath.IsAbs(output) {
		return filepath.Clean(output), nil
	}
	return filepath.Join(filepath.Dir(target.FilePath), output), nil
}

func renderOutput(pattern string, target *Target) (string, error) {
	vars := OutputVars{
		File:    strings.TrimSuffix(filepath.Base(target.FilePath), ".go"),
		Package: target.PackageName,
		Type:    target.Name,
	}

	pattern = strings.NewReplacer(
		"$FILE", vars.File,
		"$PACKAGE", vars.Package,
		"$TYPE", utils.FileBaseName(vars.Type),
	).Replace(pattern)

	if !strings.Contains(pattern, "{{") {
		return pattern, nil
	}

	tmpl, err := template.New("output").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(pattern)
	if err != nil {
		return "", fmt.Errorf("解析输出路径模板 %q 失败: %w", pattern, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("渲染输出路径模板 %q 失败: %w", pattern, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// packageDir 目标所在包目录，作为包级配置的键
func packageDir(filePath string) string {
	return filepath.Dir(filePath)
}
