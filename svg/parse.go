package svg

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/xml"
)

var xmlEntities = map[string][]byte{
	"lt":   []byte("<"),
	"gt":   []byte(">"),
	"amp":  []byte("&"),
	"apos": []byte("'"),
	"quot": []byte("\""),
}

// Parse 读取 SVG 文档，构建元素树与 Group/Item 节点树。
func Parse(r io.Reader) (*Document, error) {
	root, err := ParseElements(r)
	if err != nil {
		return nil, err
	}
	return NewDocument(root)
}

// ParseElements 只做 XML 层面的解析，返回根元素。
// 注释、处理指令与 DOCTYPE 被忽略；文本内容去除首尾空白。
func ParseElements(r io.Reader) (*Element, error) {
	l := xml.NewLexer(parse.NewInput(r))

	var (
		root  *Element
		stack []*Element
		open  *Element // 正在读取属性的开始标签
		texts = map[*Element]*strings.Builder{}
	)

	for {
		tt, data := l.Next()
		switch tt {
		case xml.ErrorToken:
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("解析 SVG 失败: %w", err)
			}
			if len(stack) > 0 {
				return nil, fmt.Errorf("解析 SVG 失败: 标签 <%s> 未闭合", stack[len(stack)-1].Tag)
			}
			if root == nil {
				return nil, errors.New("解析 SVG 失败: 文档为空")
			}
			for el, b := range texts {
				el.Text = strings.TrimSpace(b.String())
			}
			root.Key()
			return root, nil

		case xml.StartTagToken:
			el := &Element{Tag: string(parse.Copy(l.Text()))}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("解析 SVG 失败: 存在多个根元素 <%s>", el.Tag)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
			open = el

		case xml.AttributeToken:
			if open == nil {
				continue // <?xml ...?> 的伪属性
			}
			open.Attrs = append(open.Attrs, Attr{
				Name:  string(parse.Copy(l.Text())),
				Value: attrValue(l.AttrVal()),
			})

		case xml.StartTagCloseToken:
			open = nil

		case xml.StartTagCloseVoidToken:
			open = nil
			stack = stack[:len(stack)-1]

		case xml.StartTagPIToken, xml.StartTagClosePIToken:
			open = nil

		case xml.EndTagToken:
			name := string(l.Text())
			if len(stack) == 0 || stack[len(stack)-1].Tag != name {
				return nil, fmt.Errorf("解析 SVG 失败: 意外的结束标签 </%s>", name)
			}
			stack = stack[:len(stack)-1]

		case xml.TextToken, xml.CDATAToken:
			if len(stack) == 0 {
				continue
			}
			text := data
			if tt == xml.CDATAToken {
				text = l.Text()
			} else {
				text = parse.ReplaceEntities(parse.Copy(text), xmlEntities, nil)
			}
			top := stack[len(stack)-1]
			b, ok := texts[top]
			if !ok {
				b = &strings.Builder{}
				texts[top] = b
			}
			b.Write(text)
		}
	}
}

// attrValue 去掉引号并展开实体引用。
func attrValue(raw []byte) string {
	v := parse.Copy(raw)
	if n := len(v); n >= 2 && (v[0] == '"' || v[0] == '\'') && v[n-1] == v[0] {
		v = v[1 : n-1]
	}
	return string(parse.ReplaceEntities(v, xmlEntities, nil))
}
