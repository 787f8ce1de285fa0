package plugin

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"
)

// FormatHelpText 为所有注册的生成器生成帮助文本
// 参数列按显示宽度对齐，中文描述不会打乱列
func FormatHelpText(registry *Registry) string {
	generators := registry.Generators()
	if len(generators) == 0 {
		return "  (暂无已注册的生成器)\n"
	}

	var sb strings.Builder

	for _, gen := range generators {
		annotations := gen.Annotations()
		if len(annotations) == 0 {
			continue
		}

		mainAnnotation := annotations[0]
		names := lo.Map(annotations, func(a string, _ int) string { return "@" + a })
		sb.WriteString(fmt.Sprintf("  %s - %s\n", strings.Join(names, " "), gen.Name()))

		paramDefs := gen.ParamDefs()
		if len(paramDefs) > 0 {
			sb.WriteString("    参数:\n")

			labels := lo.Map(paramDefs, func(p ParamDef, _ int) string {
				label := p.Name
				if p.Required {
					label += " (必填)"
				}
				if p.Default != "" {
					label += fmt.Sprintf(" [默认: %s]", p.Default)
				}
				return label
			})
			width := lo.Max(lo.Map(labels, func(l string, _ int) int {
				return runewidth.StringWidth(l)
			}))
			for i, param := range paramDefs {
				sb.WriteString(fmt.Sprintf("      %s  %s\n",
					runewidth.FillRight(labels[i], width), param.Description))
			}
		}

		sb.WriteString("    示例:\n")
		sb.WriteString(fmt.Sprintf("      @%s\n", mainAnnotation))
		sb.WriteString(fmt.Sprintf("      @%s(output = \"$FILE_derive.go\")\n", mainAnnotation))
		sb.WriteString(fmt.Sprintf("      @%s(output = \"{{ .Type | snakecase }}_derive.go\")\n", mainAnnotation))

		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatParamDef 格式化单个参数定义
func FormatParamDef(param ParamDef) string {
	parts := []string{param.Name}

	if param.Required {
		parts = append(parts, "required")
	} else {
		parts = append(parts, "optional")
	}

	if param.Default != "" {
		parts = append(parts, fmt.Sprintf("default=%s", param.Default))
	}

	if param.Description != "" {
		parts = append(parts, param.Description)
	}

	return strings.Join(parts, ", ")
}
