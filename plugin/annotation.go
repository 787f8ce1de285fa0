package plugin

import (
	"strings"

	"github.com/samber/lo"

	"github.com/donutnomad/derivegen/internal/meta"
)

// ParseAnnotations 从注释文本中解析所有注解
// 语法错误保存在 Annotation.Err 中，由认领该注解的生成器上报
func ParseAnnotations(comment string) []*Annotation {
	attrs := meta.ParseComment(comment)
	annotations := make([]*Annotation, 0, len(attrs))
	for _, attr := range attrs {
		ann := &Annotation{
			Name:   attr.Name,
			Meta:   attr.Meta,
			Raw:    attr.Raw,
			Err:    attr.Err,
			Params: make(map[string]string),
		}
		if attr.Meta != nil {
			ann.Params = flattenParams(attr.Meta)
		}
		annotations = append(annotations, ann)
	}
	return annotations
}

// flattenParams 把顶层选项展开成字符串:
//
//	new                 -> "true"
//	output = "x.go"     -> "x.go"
//	bound("T: any")     -> "T: any"
//	bound(T = "any")    -> `T = "any"`
func flattenParams(m *meta.Meta) map[string]string {
	params := make(map[string]string)
	if m.Kind != meta.KindList {
		return params
	}
	for _, item := range m.Items {
		if item.Name == "" {
			continue
		}
		key := strings.ToLower(item.Name)
		switch item.Kind {
		case meta.KindPath:
			params[key] = "true"
		case meta.KindNameValue:
			params[key] = item.Lit.Value()
		case meta.KindList:
			if lit, err := item.StringArg(""); err == nil {
				params[key] = lit.Value()
				continue
			}
			parts := lo.Map(item.Items, func(sub *meta.Meta, _ int) string {
				return sub.String()
			})
			params[key] = strings.Join(parts, ", ")
		}
	}
	return params
}

// FilterByNames 过滤指定名称的注解
func FilterByNames(annotations []*Annotation, names ...string) []*Annotation {
	if len(names) == 0 {
		return annotations
	}
	return lo.Filter(annotations, func(ann *Annotation, _ int) bool {
		return lo.Contains(names, ann.Name)
	})
}

// HasAnnotation 检查是否包含指定注解
func HasAnnotation(annotations []*Annotation, name string) bool {
	return GetAnnotation(annotations, name) != nil
}

// GetAnnotation 获取指定名称的第一个注解
func GetAnnotation(annotations []*Annotation, name string) *Annotation {
	ann, _ := lo.Find(annotations, func(a *Annotation) bool {
		return a.Name == name
	})
	return ann
}

// GetParam 获取注解参数
func (a *Annotation) GetParam(key string) string {
	if a == nil {
		return ""
	}
	return a.Params[strings.ToLower(key)]
}

// GetParamOr 获取注解参数，如果不存在返回默认值
func (a *Annotation) GetParamOr(key, defaultValue string) string {
	if v, ok := a.Params[strings.ToLower(key)]; ok {
		return v
	}
	return defaultValue
}

// HasParam 检查是否有指定参数
func (a *Annotation) HasParam(key string) bool {
	_, ok := a.Params[strings.ToLower(key)]
	return ok
}
