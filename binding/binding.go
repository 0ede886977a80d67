package binding

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var exprPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// Expand 将模板中的 ${name} 替换为 vars 中的值。
// 未定义的变量返回错误，不做静默保留。
func Expand(pattern string, vars map[string]string) (string, error) {
	var firstErr error
	out := exprPattern.ReplaceAllStringFunc(pattern, func(match string) string {
		groups := exprPattern.FindStringSubmatch(match)
		name := strings.TrimSpace(groups[1])
		if val, ok := vars[name]; ok {
			return val
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("模板 %q 引用了未定义的变量 %q", pattern, name)
		}
		return match
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// Vars 构造输出命名可用的变量：
// base 为输入文件名去掉扩展名，layer 为图层名，layer_file 为可用于文件名的图层名。
func Vars(input, layer string) map[string]string {
	name := filepath.Base(input)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return map[string]string{
		"base":       base,
		"layer":      layer,
		"layer_file": fileSafe(layer),
	}
}

// OutputName 计算图层输出文件名：后缀含 ${ 时按模板展开，否则拼接为 <base><suffix>。
func OutputName(input, layer, suffix string) (string, error) {
	vars := Vars(input, layer)
	if strings.Contains(suffix, "${") {
		return Expand(suffix, vars)
	}
	return vars["base"] + suffix, nil
}

func fileSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '/', '\\', ':':
			return '_'
		}
		return r
	}, s)
}
