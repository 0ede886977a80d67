package svg

import (
	"fmt"
	"math"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/tdewolff/canvas"
)

var (
	transformLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
		{Name: "Number", Pattern: `[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`},
		{Name: "Ident", Pattern: `[A-Za-z]+`},
		{Name: "Punct", Pattern: `[(),]`},
	})

	transformParser = participle.MustBuild[TransformList](
		participle.Lexer(transformLexer),
		participle.Elide("Whitespace"),
	)
)

// TransformList 对应 SVG transform 属性，例如 "translate(10,20) rotate(45)"。
type TransformList struct {
	Items []*TransformItem `parser:"( @@ ','? )*"`
}

// TransformItem 是单个变换函数及其参数。
type TransformItem struct {
	Pos  lexer.Position `parser:""`
	Name string         `parser:"@Ident '('"`
	Args []float64      `parser:"( @Number ','? )* ')'"`
}

// ParseTransform 解析 transform 属性并返回组合后的矩阵。
// 列表从左到右相乘，即最右侧的变换最先作用于坐标。
func ParseTransform(s string) (canvas.Matrix, error) {
	if strings.TrimSpace(s) == "" {
		return canvas.Identity, nil
	}
	list, err := transformParser.ParseString("", s)
	if err != nil {
		return canvas.Identity, fmt.Errorf("解析 transform %q 失败: %w", s, err)
	}
	m := canvas.Identity
	for _, item := range list.Items {
		im, err := item.Matrix()
		if err != nil {
			return canvas.Identity, err
		}
		m = m.Mul(im)
	}
	return m, nil
}

// Matrix 将单个变换函数转换为矩阵。
func (t *TransformItem) Matrix() (canvas.Matrix, error) {
	a := t.Args
	argc := func(allowed ...int) error {
		for _, n := range allowed {
			if len(a) == n {
				return nil
			}
		}
		return fmt.Errorf("%s: %s 参数个数错误（%d）", t.Pos, t.Name, len(a))
	}

	switch t.Name {
	case "matrix":
		if err := argc(6); err != nil {
			return canvas.Identity, err
		}
		return affine(a[0], a[1], a[2], a[3], a[4], a[5]), nil
	case "translate":
		if err := argc(1, 2); err != nil {
			return canvas.Identity, err
		}
		ty := 0.0
		if len(a) == 2 {
			ty = a[1]
		}
		return affine(1, 0, 0, 1, a[0], ty), nil
	case "scale":
		if err := argc(1, 2); err != nil {
			return canvas.Identity, err
		}
		sy := a[0]
		if len(a) == 2 {
			sy = a[1]
		}
		return affine(a[0], 0, 0, sy, 0, 0), nil
	case "rotate":
		if err := argc(1, 3); err != nil {
			return canvas.Identity, err
		}
		rad := a[0] * math.Pi / 180
		sin, cos := math.Sincos(rad)
		r := affine(cos, sin, -sin, cos, 0, 0)
		if len(a) == 3 {
			cx, cy := a[1], a[2]
			return affine(1, 0, 0, 1, cx, cy).Mul(r).Mul(affine(1, 0, 0, 1, -cx, -cy)), nil
		}
		return r, nil
	case "skewX":
		if err := argc(1); err != nil {
			return canvas.Identity, err
		}
		return affine(1, 0, math.Tan(a[0]*math.Pi/180), 1, 0, 0), nil
	case "skewY":
		if err := argc(1); err != nil {
			return canvas.Identity, err
		}
		return affine(1, math.Tan(a[0]*math.Pi/180), 0, 1, 0, 0), nil
	default:
		return canvas.Identity, fmt.Errorf("%s: 不支持的变换 %s", t.Pos, t.Name)
	}
}

// affine 按 SVG matrix(a,b,c,d,e,f) 的参数顺序构造矩阵。
func affine(a, b, c, d, e, f float64) canvas.Matrix {
	return canvas.Matrix{{a, c, e}, {b, d, f}}
}
