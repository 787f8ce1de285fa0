package utils

import (
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
)

// UpperFirst 首字母大写，其余不变: box -> Box, httpURL -> HttpURL
func UpperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// LowerFirst 首字母小写，其余不变
func LowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// FileBaseName 类型名转换为文件名片段: UserProfile -> user_profile
func FileBaseName(typeName string) string {
	return lo.SnakeCase(typeName)
}
