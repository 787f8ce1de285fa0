package plugin

import (
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

// ParseParamsFromStruct 从结构体的tag解析参数定义
// 支持的tag: name, required, default, description
//
// 示例:
//
//	type Params struct {
//	    Output string `param:"name=output,required=false,default=,description=输出文件路径"`
//	    New    bool   `param:"name=new,required=false,default=false,description=同时生成 NewX 构造函数"`
//	}
//
//	defs := plugin.ParseParamsFromStruct(Params{})
func ParseParamsFromStruct(v any) []ParamDef {
	val := reflect.ValueOf(v)
	typ := val.Type()

	// 如果是指针,解引用
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	// 必须是结构体
	if typ.Kind() != reflect.Struct {
		return nil
	}

	var params []ParamDef

	// 遍历所有字段
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		// 获取 param tag
		tag := field.Tag.Get("param")
		if tag == "" {
			continue
		}

		// 解析tag
		paramDef := parseParamTag(tag)
		if paramDef.Name != "" {
			params = append(params, paramDef)
		}
	}

	return params
}

// parseParamTag 解析 param tag 字符串
// 格式: name=xxx,required=true,default=xxx,description=xxx
func parseParamTag(tag string) ParamDef {
	var param ParamDef

	// 简单的键值对解析
	pairs := splitTag(tag)
	for key, value := range pairs {
		switch key {
		case "name":
			param.Name = value
		case "required":
			param.Required = cast.ToBool(value)
		case "default":
			param.Default = value
		case "description":
			param.Description = value
		}
	}

	return param
}

// splitTag 分割tag字符串为键值对
// 格式: key1=value1,key2=value2,...，\ 转义下一个字节
func splitTag(tag string) map[string]string {
	result := make(map[string]string)

	var key, value strings.Builder
	inKey := true
	escaped := false

	// 按字节写入，多字节字符原样保留
	cur := func() *strings.Builder {
		if inKey {
			return &key
		}
		return &value
	}
	flush := func() {
		if key.Len() > 0 {
			result[key.String()] = value.String()
		}
		key.Reset()
		value.Reset()
		inKey = true
	}

	for i := 0; i < len(tag); i++ {
		ch := tag[i]
		switch {
		case escaped:
			cur().WriteByte(ch)
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '=' && inKey:
			inKey = false
		case ch == ',':
			flush()
		default:
			cur().WriteByte(ch)
		}
	}
	flush()

	return result
}
