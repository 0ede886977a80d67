package svg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/svg2gerber/geom"
)

// Document 是解析后的绘图：根元素与以 Group/Item 表示的节点树。
// 构建完成后不再修改，可被多个 goroutine 并发读取。
type Document struct {
	Root  *Element
	Nodes []Node

	// Width/Height 为画布尺寸（毫米），未声明时为 0。
	Width  float64
	Height float64
	// UserToMM 是根坐标系到毫米的变换。
	UserToMM canvas.Matrix
}

// Node 是 Group 或 *Item。
type Node interface {
	isNode()
}

// Group 对应 <g>、<a> 与嵌套 <svg>。
type Group struct {
	ID       string
	Label    string
	Elem     *Element
	Children []Node
}

// Item 是可绘制的叶子节点。
type Item struct {
	Elem *Element

	ctm canvas.Matrix
	err error // 祖先或自身 transform 无法解析
}

func (*Group) isNode() {}
func (*Item) isNode()  {}

// 不参与几何输出的容器与元素。
var skippedTags = tagSet(
	"defs", "symbol", "clipPath", "mask", "pattern", "marker",
	"metadata", "title", "desc", "style", "script", "text",
	"linearGradient", "radialGradient", "namedview",
)

var shapeTags = tagSet("path", "rect", "circle", "ellipse", "line", "polyline", "polygon")

func tagSet(tags ...string) map[string]bool {
	m := make(map[string]bool, len(tags))
	for _, t := range tags {
		m[t] = true
	}
	return m
}

// NewDocument 根据元素树建立节点树，并由根元素的 width/height/viewBox 推导毫米比例。
func NewDocument(root *Element) (*Document, error) {
	if root == nil || root.LocalName() != "svg" {
		return nil, errors.New("根元素不是 <svg>")
	}
	root.Key()

	doc := &Document{Root: root}
	if err := doc.setViewport(); err != nil {
		return nil, err
	}
	doc.Nodes = buildNodes(root.Children, doc.UserToMM, nil)
	return doc, nil
}

func (d *Document) setViewport() error {
	width, hasW := lengthAttr(d.Root, "width")
	height, hasH := lengthAttr(d.Root, "height")

	vb, hasVB, err := viewBox(d.Root)
	if err != nil {
		return err
	}

	if !hasVB {
		// 没有 viewBox 时用户单位即 CSS 像素
		d.UserToMM = affine(geom.PxToMm, 0, 0, geom.PxToMm, 0, 0)
		if hasW {
			d.Width = width.ToMM()
		}
		if hasH {
			d.Height = height.ToMM()
		}
		return nil
	}

	sx := geom.PxToMm
	if hasW {
		sx = width.ToMM() / vb[2]
	}
	sy := sx
	if hasH {
		sy = height.ToMM() / vb[3]
	}
	d.Width = vb[2] * sx
	d.Height = vb[3] * sy
	d.UserToMM = affine(sx, 0, 0, sy, -vb[0]*sx, -vb[1]*sy)
	return nil
}

func lengthAttr(e *Element, name string) (geom.Length, bool) {
	v, ok := e.Attr(name)
	if !ok {
		return geom.Length{}, false
	}
	l, ok := geom.ParseLength(v)
	if !ok || l.Value <= 0 {
		return geom.Length{}, false
	}
	return l, true
}

func viewBox(e *Element) ([4]float64, bool, error) {
	var vb [4]float64
	v, ok := e.Attr("viewBox")
	if !ok || strings.TrimSpace(v) == "" {
		return vb, false, nil
	}
	nums, err := parseNumberList(v)
	if err != nil || len(nums) != 4 {
		return vb, false, fmt.Errorf("无效的 viewBox %q", v)
	}
	copy(vb[:], nums)
	if vb[2] <= 0 || vb[3] <= 0 {
		return vb, false, fmt.Errorf("viewBox 宽高必须为正: %q", v)
	}
	return vb, true, nil
}

func buildNodes(elems []*Element, ctm canvas.Matrix, inherited error) []Node {
	var nodes []Node
	for _, el := range elems {
		name := el.LocalName()
		if skippedTags[name] || el.AttrOr("display", "") == "none" {
			continue
		}

		m, err := ctm, inherited
		if err == nil {
			var local canvas.Matrix
			local, err = ParseTransform(el.AttrOr("transform", ""))
			m = ctm.Mul(local)
		}

		switch {
		case name == "g" || name == "a" || name == "svg" || name == "switch":
			nodes = append(nodes, &Group{
				ID:       el.AttrOr("id", ""),
				Label:    label(el),
				Elem:     el,
				Children: buildNodes(el.Children, m, err),
			})
		case shapeTags[name]:
			nodes = append(nodes, &Item{Elem: el, ctm: m, err: err})
		}
	}
	return nodes
}

// label 返回 Inkscape 图层名（inkscape:label）。
func label(e *Element) string {
	for i := len(e.Attrs) - 1; i >= 0; i-- {
		name := e.Attrs[i].Name
		if localName(name) == "label" && strings.Contains(name, ":") {
			return e.Attrs[i].Value
		}
	}
	return ""
}

// parseNumberList 解析以空白或逗号分隔的数值列表。
func parseNumberList(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("无效的数值 %q", f)
		}
		out = append(out, v)
	}
	return out, nil
}
