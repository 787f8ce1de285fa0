package utils

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/imports"
)

// FormatSource 格式化 Go 源码并整理导入
// filename 只用于推断本地包，文件不需要存在
func FormatSource(filename string, src []byte) ([]byte, error) {
	formatted, err := imports.Process(filename, src, &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: false,
	})
	if err != nil {
		return nil, fmt.Errorf("格式化 %s 失败: %w", filepath.Base(filename), err)
	}
	return formatted, nil
}

// WriteFile 写入文件，必要时创建目录；内容未变化时不写入，返回是否写入
func WriteFile(filename string, data []byte) (bool, error) {
	if old, err := os.ReadFile(filename); err == nil && bytes.Equal(old, data) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return false, fmt.Errorf("创建目录失败: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
