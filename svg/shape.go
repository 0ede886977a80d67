package svg

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/svg2gerber/geom"
)

// ErrGeometry 匹配所有 *GeometryError。
var ErrGeometry = errors.New("几何数据无效")

// GeometryError 表示单个元素的几何数据无法解析或展平。
type GeometryError struct {
	Tag string
	ID  string
	Err error
}

func (e *GeometryError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("<%s id=%q>: %v", e.Tag, e.ID, e.Err)
	}
	return fmt.Sprintf("<%s>: %v", e.Tag, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }

func (e *GeometryError) Is(target error) bool { return target == ErrGeometry }

func (it *Item) geometryError(err error) error {
	return &GeometryError{Tag: it.Elem.Tag, ID: it.Elem.AttrOr("id", ""), Err: err}
}

// Segments 以容差 tolerance（毫米）展平元素，返回每个子路径的折线。
// 每次调用都从元素重新构建路径，结果只取决于 tolerance。
// 闭合子路径的最后一个点与第一个点重合。
func (it *Item) Segments(tolerance float64) ([]geom.Segment, error) {
	if !(tolerance > 0) || math.IsInf(tolerance, 0) {
		return nil, it.geometryError(fmt.Errorf("容差必须为正数，当前为 %g", tolerance))
	}
	if it.err != nil {
		return nil, it.geometryError(it.err)
	}
	p, err := it.Path()
	if err != nil {
		return nil, it.geometryError(err)
	}
	if p == nil || p.Empty() {
		return nil, nil
	}

	flat := p.Transform(it.ctm).Flatten(tolerance)
	var segments []geom.Segment
	for _, sub := range flat.Split() {
		coords := sub.Coords()
		if len(coords) == 0 {
			continue
		}
		seg := make(geom.Segment, 0, len(coords))
		for _, c := range coords {
			if math.IsNaN(c.X) || math.IsNaN(c.Y) || math.IsInf(c.X, 0) || math.IsInf(c.Y, 0) {
				return nil, it.geometryError(errors.New("坐标不是有限数值"))
			}
			seg = append(seg, geom.Point{X: c.X, Y: c.Y})
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Path 返回元素在自身用户坐标系中的路径（未应用 transform）。
// 尺寸为零的形状返回 nil。
func (it *Item) Path() (*canvas.Path, error) {
	data, err := pathData(it.Elem)
	if err != nil || data == "" {
		return nil, err
	}
	p, err := canvas.ParseSVGPath(data)
	if err != nil {
		return nil, fmt.Errorf("解析路径数据失败: %w", err)
	}
	return p, nil
}

// pathData 把基本形状统一转换为 SVG 路径数据。
func pathData(e *Element) (string, error) {
	switch e.LocalName() {
	case "path":
		return strings.TrimSpace(e.AttrOr("d", "")), nil
	case "rect":
		return rectData(e)
	case "circle":
		n, err := numbers(e, "cx", "cy", "r")
		if err != nil {
			return "", err
		}
		return ellipseData(n[0], n[1], n[2], n[2])
	case "ellipse":
		n, err := numbers(e, "cx", "cy", "rx", "ry")
		if err != nil {
			return "", err
		}
		return ellipseData(n[0], n[1], n[2], n[3])
	case "line":
		n, err := numbers(e, "x1", "y1", "x2", "y2")
		if err != nil {
			return "", err
		}
		return "M" + join(n[0], n[1]) + "L" + join(n[2], n[3]), nil
	case "polyline", "polygon":
		pts, err := parseNumberList(e.AttrOr("points", ""))
		if err != nil {
			return "", err
		}
		if len(pts)%2 != 0 {
			return "", fmt.Errorf("points 数值个数为奇数（%d）", len(pts))
		}
		if len(pts) == 0 {
			return "", nil
		}
		var b strings.Builder
		for i := 0; i < len(pts); i += 2 {
			if i == 0 {
				b.WriteByte('M')
			} else {
				b.WriteByte('L')
			}
			b.WriteString(join(pts[i], pts[i+1]))
		}
		if e.LocalName() == "polygon" {
			b.WriteByte('Z')
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("不支持的元素 <%s>", e.Tag)
	}
}

func rectData(e *Element) (string, error) {
	n, err := numbers(e, "x", "y", "width", "height")
	if err != nil {
		return "", err
	}
	x, y, w, h := n[0], n[1], n[2], n[3]
	if w < 0 || h < 0 {
		return "", fmt.Errorf("矩形宽高不能为负（%g×%g）", w, h)
	}
	if w == 0 || h == 0 {
		return "", nil
	}

	rx, hasRX, err := optionalNumber(e, "rx")
	if err != nil {
		return "", err
	}
	ry, hasRY, err := optionalNumber(e, "ry")
	if err != nil {
		return "", err
	}
	if rx < 0 || ry < 0 {
		return "", fmt.Errorf("圆角半径不能为负（rx=%g, ry=%g）", rx, ry)
	}
	switch {
	case hasRX && !hasRY:
		ry = rx
	case hasRY && !hasRX:
		rx = ry
	}
	rx = math.Min(rx, w/2)
	ry = math.Min(ry, h/2)

	if rx == 0 || ry == 0 {
		return "M" + join(x, y) + "H" + num(x+w) + "V" + num(y+h) + "H" + num(x) + "Z", nil
	}
	arc := "A" + join(rx, ry) + " 0 0 1 "
	return "M" + join(x+rx, y) +
		"H" + num(x+w-rx) + arc + join(x+w, y+ry) +
		"V" + num(y+h-ry) + arc + join(x+w-rx, y+h) +
		"H" + num(x+rx) + arc + join(x, y+h-ry) +
		"V" + num(y+ry) + arc + join(x+rx, y) + "Z", nil
}

func ellipseData(cx, cy, rx, ry float64) (string, error) {
	if rx < 0 || ry < 0 {
		return "", fmt.Errorf("半径不能为负（rx=%g, ry=%g）", rx, ry)
	}
	if rx == 0 || ry == 0 {
		return "", nil
	}
	arc := "A" + join(rx, ry) + " 0 0 1 "
	return "M" + join(cx+rx, cy) + arc + join(cx-rx, cy) + arc + join(cx+rx, cy) + "Z", nil
}

// numbers 读取一组数值属性，缺省为 0。
func numbers(e *Element, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		v, _, err := optionalNumber(e, name)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// optionalNumber 把长度属性转换为用户单位；无单位与 px 视为用户单位。
func optionalNumber(e *Element, name string) (float64, bool, error) {
	raw, ok := e.Attr(name)
	if !ok || strings.TrimSpace(raw) == "" || raw == "auto" {
		return 0, false, nil
	}
	l, ok := geom.ParseLength(raw)
	if !ok {
		return 0, false, fmt.Errorf("属性 %s 的值 %q 无法解析", name, raw)
	}
	if l.Unit == geom.UnitNone || l.Unit == geom.UnitPX {
		return l.Value, true, nil
	}
	return l.ToMM() / geom.PxToMm, true, nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func join(x, y float64) string {
	return num(x) + " " + num(y)
}
