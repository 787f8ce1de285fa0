package plugin

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
)

func TestFormatHelpText(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newTestGeneratorWith("clonegen", []string{"Clone", "Copy"}, WithParamDefs(
		ParamDef{Name: "bound", Description: "泛型约束"},
		ParamDef{Name: "output", Default: "$FILE_derive.go", Description: "输出文件"},
		ParamDef{Name: "id", Required: true, Description: "标识"},
	)))

	text := FormatHelpText(reg)
	for _, want := range []string{
		"@Clone @Copy - clonegen",
		"参数:",
		"id (必填)",
		"output [默认: $FILE_derive.go]",
		"示例:",
		"@Clone(output = \"$FILE_derive.go\")",
	} {
		assert.Contains(t, text, want)
	}

	// 描述列按显示宽度对齐
	var cols []int
	for _, line := range strings.Split(text, "\n") {
		for _, desc := range []string{"泛型约束", "输出文件", "标识"} {
			if i := strings.Index(line, desc); i >= 0 {
				cols = append(cols, runewidth.StringWidth(line[:i]))
			}
		}
	}
	if assert.Len(t, cols, 3) {
		assert.Equal(t, cols[0], cols[1])
		assert.Equal(t, cols[1], cols[2])
	}
}

func TestFormatHelpText_Order(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newTestGeneratorWith("defaultgen", []string{"Default"}, WithPriority(20)))
	reg.MustRegister(newTestGeneratorWith("clonegen", []string{"Clone"}, WithPriority(10)))

	text := FormatHelpText(reg)
	assert.Less(t, strings.Index(text, "clonegen"), strings.Index(text, "defaultgen"))
}

func TestFormatHelpText_EmptyRegistry(t *testing.T) {
	assert.Contains(t, FormatHelpText(NewRegistry()), "暂无已注册的生成器")
}

func TestFormatParamDef(t *testing.T) {
	tests := []struct {
		def  ParamDef
		want string
	}{
		{ParamDef{Name: "id", Required: true, Description: "标识"}, "id, required, 标识"},
		{ParamDef{Name: "output", Default: "x.go"}, "output, optional, default=x.go"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatParamDef(tt.def))
	}
}
