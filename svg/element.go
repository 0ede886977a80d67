package svg

import (
	"sort"
	"strconv"
	"strings"
)

// Attr 是一个元素属性，保持源文件中的顺序。
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Element 是解析后的 XML 元素，仅用于几何构建与结构比较。
type Element struct {
	Tag      string     `json:"tag"`
	Text     string     `json:"text,omitempty"`
	Attrs    []Attr     `json:"attrs,omitempty"`
	Children []*Element `json:"children,omitempty"`

	key StructuralKey
}

// Attr 返回属性值；同名属性以最后一次出现为准。
func (e *Element) Attr(name string) (string, bool) {
	for i := len(e.Attrs) - 1; i >= 0; i-- {
		if e.Attrs[i].Name == name {
			return e.Attrs[i].Value, true
		}
	}
	return "", false
}

// AttrOr 返回属性值，不存在时返回 def。
func (e *Element) AttrOr(name, def string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return def
}

// LocalName 去掉命名空间前缀，例如 "svg:path" → "path"。
func (e *Element) LocalName() string {
	return localName(e.Tag)
}

func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// StructuralKey 是元素的结构指纹：标签、文本、按名称排序的属性以及递归的子元素指纹。
// 两个元素结构相等当且仅当其指纹相等。
type StructuralKey string

// Key 返回元素的结构指纹，首次调用时计算并缓存。
// Parse 会预先计算整棵树的指纹，因此解析得到的文档可以被多个 goroutine 并发读取。
func (e *Element) Key() StructuralKey {
	if e.key == "" {
		e.key = computeKey(e)
	}
	return e.key
}

// computeKey 使用长度前缀编码，避免不同结构拼接出相同字符串。
func computeKey(e *Element) StructuralKey {
	var b strings.Builder
	writeField := func(s string) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}

	writeField(e.Tag)
	writeField(e.Text)

	attrs := canonicalAttrs(e.Attrs)
	b.WriteString(strconv.Itoa(len(attrs)))
	b.WriteByte('{')
	for _, a := range attrs {
		writeField(a.Name)
		writeField(a.Value)
	}
	b.WriteByte('}')

	b.WriteString(strconv.Itoa(len(e.Children)))
	b.WriteByte('[')
	for _, c := range e.Children {
		writeField(string(c.Key()))
	}
	b.WriteByte(']')
	return StructuralKey(b.String())
}

// canonicalAttrs 把属性表视为映射：同名保留最后一个值，再按名称排序。
func canonicalAttrs(attrs []Attr) []Attr {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name] = a.Value
	}
	out := make([]Attr, 0, len(m))
	for name, value := range m {
		out = append(out, Attr{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
