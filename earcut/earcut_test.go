package earcut

import (
	"math"
	"testing"

	"github.com/ByLCY/svg2gerber/geom"
)

func square(x, y, size float64) geom.Segment {
	return geom.Segment{{X: x, Y: y}, {X: x + size, Y: y}, {X: x + size, Y: y + size}, {X: x, Y: y + size}}
}

func reversed(s geom.Segment) geom.Segment {
	out := make(geom.Segment, len(s))
	for i, p := range s {
		out[len(s)-1-i] = p
	}
	return out
}

func totalArea(vertices []float64, triangles []int) float64 {
	var sum float64
	for t := 0; t < len(triangles)/3; t++ {
		sum += triangleArea(vertices, triangles, t)
	}
	return sum
}

// TestRectangleTwoTriangles 验证轴对齐矩形恰好剖分为两个三角形且面积守恒。
func TestRectangleTwoTriangles(t *testing.T) {
	vertices, holes := Flatten([]geom.Segment{square(0, 0, 100)})
	tris := Triangulate(vertices, holes)
	if len(tris) != 6 {
		t.Fatalf("expected 2 triangles, got %d indices", len(tris))
	}
	if area := totalArea(vertices, tris); math.Abs(area-10000) > 1e-9 {
		t.Fatalf("expected total area 10000, got %g", area)
	}
}

func TestSimplePolygonCountLaw(t *testing.T) {
	// 凹多边形（L 形）与正多边形
	lshape := geom.Segment{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 4}, {X: 0, Y: 4}}
	var circle geom.Segment
	for i := 0; i < 200; i++ {
		a := 2 * math.Pi * float64(i) / 200
		circle = append(circle, geom.Point{X: 50 * math.Cos(a), Y: 50 * math.Sin(a)})
	}
	for _, ring := range []geom.Segment{lshape, reversed(lshape), circle, reversed(circle)} {
		vertices, holes := Flatten([]geom.Segment{ring})
		tris := Triangulate(vertices, holes)
		if got, want := len(tris)/3, len(ring)-2; got != want {
			t.Fatalf("n=%d: expected %d triangles, got %d", len(ring), want, got)
		}
		if d := Deviation(vertices, holes, tris); d > 1e-9 {
			t.Fatalf("n=%d: deviation too large: %g", len(ring), d)
		}
	}
}

// TestPolygonWithHole 覆盖带孔多边形：每个孔桥接时复制两个顶点，因此三角形数为 n+m+2h-2。
func TestPolygonWithHole(t *testing.T) {
	outer := square(0, 0, 100)
	hole := square(25, 25, 50)
	for _, rings := range [][]geom.Segment{
		{outer, reversed(hole)},
		{outer, hole},                     // 孔与外环同向
		{reversed(outer), hole},           // 外环反向
		{reversed(outer), reversed(hole)}, // 全部反向
	} {
		vertices, holes := Flatten(rings)
		tris := Triangulate(vertices, holes)
		if got := len(tris) / 3; got != 8 {
			t.Fatalf("expected 8 triangles, got %d", got)
		}
		if d := Deviation(vertices, holes, tris); d > 1e-9 {
			t.Fatalf("deviation too large: %g", d)
		}
		if area := totalArea(vertices, tris); math.Abs(area-7500) > 1e-9 {
			t.Fatalf("expected area 7500, got %g", area)
		}
	}
}

func TestMultipleHoles(t *testing.T) {
	// 孔的顶点互不共线，桥接后不会被当作共线点过滤
	rings := []geom.Segment{square(0, 0, 100), square(10, 20, 20), square(65, 55, 20), square(50, 5, 10)}
	vertices, holes := Flatten(rings)
	tris := Triangulate(vertices, holes)
	if got, want := len(tris)/3, 4+12+2*3-2; got != want {
		t.Fatalf("expected %d triangles, got %d", want, got)
	}
	if d := Deviation(vertices, holes, tris); d > 1e-9 {
		t.Fatalf("deviation too large: %g", d)
	}
	for _, idx := range tris {
		if idx < 0 || idx >= len(vertices)/2 {
			t.Fatalf("index %d out of range", idx)
		}
	}
}

func TestDegenerateInputs(t *testing.T) {
	cases := map[string][]geom.Segment{
		"empty":      nil,
		"one point":  {{{X: 1, Y: 1}}},
		"two points": {{{X: 0, Y: 0}, {X: 1, Y: 1}}},
		"collinear":  {{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}},
		"duplicates": {{{X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 5}}},
	}
	for name, rings := range cases {
		vertices, holes := Flatten(rings)
		if tris := Triangulate(vertices, holes); len(tris) != 0 {
			t.Fatalf("%s: expected no triangles, got %v", name, tris)
		}
	}
}

func TestTriangulateDoesNotMutateInput(t *testing.T) {
	vertices, holes := Flatten([]geom.Segment{square(0, 0, 10), square(2, 2, 3)})
	vCopy := append([]float64(nil), vertices...)
	hCopy := append([]int(nil), holes...)
	first := Triangulate(vertices, holes)
	second := Triangulate(vertices, holes)
	for i := range vCopy {
		if vertices[i] != vCopy[i] {
			t.Fatalf("vertex buffer mutated at %d", i)
		}
	}
	for i := range hCopy {
		if holes[i] != hCopy[i] {
			t.Fatalf("hole indices mutated at %d", i)
		}
	}
	if len(first) != len(second) {
		t.Fatalf("triangulation is not deterministic: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("triangulation differs at %d", i)
		}
	}
}

// 自交输入只允许降低质量，不允许 panic。
func TestSelfIntersectingDoesNotPanic(t *testing.T) {
	bowtie := geom.Segment{{X: 0, Y: 0}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 10}}
	vertices, holes := Flatten([]geom.Segment{bowtie})
	tris := Triangulate(vertices, holes)
	if len(tris)%3 != 0 {
		t.Fatalf("index list must be a multiple of 3, got %d", len(tris))
	}
}

func TestLargeInputUsesHashedPath(t *testing.T) {
	var outer, hole geom.Segment
	for i := 0; i < 256; i++ {
		a := 2 * math.Pi * float64(i) / 256
		outer = append(outer, geom.Point{X: 100 * math.Cos(a), Y: 100 * math.Sin(a)})
		hole = append(hole, geom.Point{X: 30 * math.Cos(-a), Y: 30 * math.Sin(-a)})
	}
	vertices, holes := Flatten([]geom.Segment{outer, hole})
	tris := Triangulate(vertices, holes)
	if len(tris) == 0 {
		t.Fatalf("expected triangles for large ring")
	}
	if d := Deviation(vertices, holes, tris); d > 1e-6 {
		t.Fatalf("deviation too large: %g", d)
	}
}

// triangleArea 返回下标 t 处三角形的面积（绝对值）。
func triangleArea(vertices []float64, triangles []int, t int) float64 {
	a := triangles[t*3] * 2
	b := triangles[t*3+1] * 2
	c := triangles[t*3+2] * 2
	return math.Abs((vertices[a]-vertices[c])*(vertices[b+1]-vertices[a+1])-
		(vertices[a]-vertices[b])*(vertices[c+1]-vertices[a+1])) / 2
}
