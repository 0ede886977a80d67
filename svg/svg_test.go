package svg

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/svg2gerber/geom"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?>
<!-- Created with Inkscape -->
<svg xmlns="http://www.w3.org/2000/svg"
     xmlns:inkscape="http://www.inkscape.org/namespaces/inkscape"
     width="100mm" height="100mm" viewBox="0 0 100 100">
  <defs><rect id="ignored" width="5" height="5"/></defs>
  <g id="layer1" inkscape:label="Edgecuts">
    <rect id="outline" x="10" y="20" width="30" height="40"/>
    <rect id="outline-copy" x="10" y="20" width="30" height="40"/>
  </g>
  <g id="layer2" inkscape:label="Copper">
    <g id="nested" inkscape:label="Top Copper" transform="translate(5, 5)">
      <circle cx="0" cy="0" r="10"/>
      <path d="M 0 0 L 10 0 L 10 10 Z"/>
    </g>
  </g>
  <text x="0" y="0">A &amp; B</text>
</svg>`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func pt(x, y float64) canvas.Point { return canvas.Point{X: x, Y: y} }

func TestParseBuildsTree(t *testing.T) {
	doc := mustParse(t, sample)
	if doc.Root.LocalName() != "svg" {
		t.Fatalf("unexpected root %q", doc.Root.Tag)
	}
	if !near(doc.Width, 100) || !near(doc.Height, 100) {
		t.Fatalf("unexpected size %gx%g", doc.Width, doc.Height)
	}
	// defs 与 text 不进入节点树
	if len(doc.Nodes) != 2 {
		t.Fatalf("expected 2 top-level groups, got %d", len(doc.Nodes))
	}
	g, ok := doc.Nodes[0].(*Group)
	if !ok || g.ID != "layer1" || g.Label != "Edgecuts" {
		t.Fatalf("unexpected first node %#v", doc.Nodes[0])
	}
}

func TestParseAttributeEntitiesAndText(t *testing.T) {
	root, err := ParseElements(strings.NewReader(`<svg a='x &lt; y' b="&quot;q&quot;"><desc>  A &amp; B  </desc></svg>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v, _ := root.Attr("a"); v != "x < y" {
		t.Fatalf("unexpected attr a %q", v)
	}
	if v, _ := root.Attr("b"); v != `"q"` {
		t.Fatalf("unexpected attr b %q", v)
	}
	if got := root.Children[0].Text; got != "A & B" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":       "",
		"unclosed":    `<svg><g></svg>`,
		"two roots":   `<svg/><svg/>`,
		"not svg":     `<html/>`,
		"bad viewBox": `<svg viewBox="0 0 10"/>`,
	}
	for name, src := range cases {
		if _, err := Parse(strings.NewReader(src)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestViewportScale(t *testing.T) {
	doc := mustParse(t, `<svg width="200mm" height="100mm" viewBox="0 0 100 50"><rect width="100" height="50"/></svg>`)
	item := doc.Nodes[0].(*Item)
	segs, err := item.Segments(0.01)
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	_, maxPt, ok := geom.Bounds(segs)
	if !ok || !near(maxPt.X, 200) || !near(maxPt.Y, 100) {
		t.Fatalf("expected 200x100 mm extent, got %v", maxPt)
	}

	// 无 viewBox 时按 96dpi 像素换算
	doc = mustParse(t, `<svg width="96" height="96"><rect width="96" height="96"/></svg>`)
	segs, _ = doc.Nodes[0].(*Item).Segments(0.01)
	_, maxPt, _ = geom.Bounds(segs)
	if !near(maxPt.X, 25.4) {
		t.Fatalf("expected 25.4 mm, got %g", maxPt.X)
	}
}

func TestParseTransform(t *testing.T) {
	m, err := ParseTransform("translate(10,20) scale(2)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := m.Dot(pt(1, 1))
	if !near(p.X, 12) || !near(p.Y, 22) {
		t.Fatalf("expected (12,22), got %v", p)
	}

	m, err = ParseTransform("rotate(90 10 10)")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p = m.Dot(pt(20, 10))
	if math.Abs(p.X-10) > 1e-9 || math.Abs(p.Y-20) > 1e-9 {
		t.Fatalf("expected (10,20), got %v", p)
	}

	m, _ = ParseTransform("matrix(1 0 0 1 -3 4.5e1), skewX(0)")
	if p = m.Dot(pt(0, 0)); !near(p.X, -3) || !near(p.Y, 45) {
		t.Fatalf("expected (-3,45), got %v", p)
	}

	for _, bad := range []string{"translate(1,2,3)", "spin(3)", "scale(", "rotate(1 2)"} {
		if _, err := ParseTransform(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestFindGroupByIDAndLabel(t *testing.T) {
	doc := mustParse(t, sample)
	if g := doc.FindGroup("Edge.Cuts", "Edgecuts"); g == nil || g.ID != "layer1" {
		t.Fatalf("expected layer1 via label, got %#v", g)
	}
	if g := doc.FindGroup("nested"); g == nil || g.Label != "Top Copper" {
		t.Fatalf("expected nested group via id, got %#v", g)
	}
	if g := doc.FindGroup("Top Copper"); g == nil || g.ID != "nested" {
		t.Fatalf("expected nested group via label, got %#v", g)
	}
	if g := doc.FindGroup("B.Cu", "Bottom Copper"); g != nil {
		t.Fatalf("expected nil for missing group, got %#v", g)
	}
	if g := doc.FindGroup(); g != nil {
		t.Fatalf("expected nil without aliases")
	}
}

func TestFlattenAndDeduplicate(t *testing.T) {
	doc := mustParse(t, sample)
	items := doc.FindGroup("layer1").Flatten()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	// id 不同，结构不同
	if got := Deduplicate(items); len(got) != 2 {
		t.Fatalf("distinct ids must survive, got %d", len(got))
	}

	doc = mustParse(t, `<svg><g id="a">
		<path d="M0 0L1 1"/><g><path d="M0 0L1 1"/></g><path d="M0 0L2 2"/><path d="M0 0L1 1"/>
	</g></svg>`)
	items = doc.FindGroup("a").Flatten()
	if len(items) != 4 {
		t.Fatalf("expected 4 items in document order, got %d", len(items))
	}
	kept := Deduplicate(items)
	if len(kept) != 2 || kept[0] != items[0] || kept[1] != items[2] {
		t.Fatalf("expected first occurrences kept in order, got %v", kept)
	}
	if again := Deduplicate(kept); len(again) != len(kept) {
		t.Fatalf("deduplicate must be idempotent")
	}
}

func TestStructuralKeyIgnoresAttributeOrder(t *testing.T) {
	a, _ := ParseElements(strings.NewReader(`<g x="1" y="2"><p/></g>`))
	b, _ := ParseElements(strings.NewReader(`<g y="2" x="1"><p/></g>`))
	c, _ := ParseElements(strings.NewReader(`<g y="2" x="1"><p/><p/></g>`))
	if a.Key() != b.Key() {
		t.Fatalf("attribute order must not matter")
	}
	if a.Key() == c.Key() {
		t.Fatalf("child count must matter")
	}
}

func TestSegmentsRectangle(t *testing.T) {
	doc := mustParse(t, sample)
	item := doc.FindGroup("layer1").Flatten()[0]
	segs, err := item.Segments(0.05)
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	ring := segs[0]
	if ring[0] != ring[len(ring)-1] {
		t.Fatalf("closed subpath must end at its start: %v", ring)
	}
	if n := len(geom.OpenRing(ring)); n != 4 {
		t.Fatalf("expected 4 distinct corners, got %d", n)
	}
	minPt, maxPt, _ := geom.Bounds(segs)
	if !near(minPt.X, 10) || !near(minPt.Y, 20) || !near(maxPt.X, 40) || !near(maxPt.Y, 60) {
		t.Fatalf("unexpected bounds %v %v", minPt, maxPt)
	}

	// 可重复调用，结果一致
	again, _ := item.Segments(0.05)
	if len(again[0]) != len(ring) {
		t.Fatalf("segments must be restartable")
	}
}

func TestSegmentsCircleWithinTolerance(t *testing.T) {
	doc := mustParse(t, sample)
	items := doc.FindGroup("Top Copper").Flatten()
	const tol = 0.05
	segs, err := items[0].Segments(tol)
	if err != nil {
		t.Fatalf("segments: %v", err)
	}
	if len(segs) != 1 || len(segs[0]) < 8 {
		t.Fatalf("expected a polyline approximating the circle, got %v", segs)
	}
	for _, p := range segs[0] {
		// 组变换 translate(5,5)
		d := math.Hypot(p.X-5, p.Y-5)
		if math.Abs(d-10) > tol+1e-9 {
			t.Fatalf("point %v deviates %g from radius", p, d-10)
		}
	}

	coarse, _ := items[0].Segments(1)
	if len(coarse[0]) >= len(segs[0]) {
		t.Fatalf("coarser tolerance should yield fewer points")
	}
}

func TestSegmentsErrors(t *testing.T) {
	doc := mustParse(t, `<svg width="10mm" height="10mm" viewBox="0 0 10 10">
		<path id="bad" d="M 0 0 L x y"/>
		<circle r="-1"/>
		<rect width="0" height="10"/>
		<g transform="spin(4)"><rect width="1" height="1"/></g>
		<polygon points="0,0 1"/>
		<line x1="0" y1="0" x2="3" y2="4"/>
	</svg>`)
	var items []*Item
	var walk func([]Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			switch v := n.(type) {
			case *Item:
				items = append(items, v)
			case *Group:
				walk(v.Children)
			}
		}
	}
	walk(doc.Nodes)
	if len(items) != 6 {
		t.Fatalf("expected 6 items, got %d", len(items))
	}

	for _, i := range []int{0, 1, 3, 4} {
		_, err := items[i].Segments(0.05)
		if !errors.Is(err, ErrGeometry) {
			t.Fatalf("item %d (%s): expected ErrGeometry, got %v", i, items[i].Elem.Tag, err)
		}
	}
	var gerr *GeometryError
	if _, err := items[0].Segments(0.05); !errors.As(err, &gerr) || gerr.ID != "bad" {
		t.Fatalf("expected GeometryError for #bad, got %v", err)
	}

	if segs, err := items[2].Segments(0.05); err != nil || len(segs) != 0 {
		t.Fatalf("zero-size rect renders nothing, got %v %v", segs, err)
	}
	if segs, err := items[5].Segments(0.05); err != nil || len(segs) != 1 || len(segs[0]) != 2 {
		t.Fatalf("line should give one open 2-point segment, got %v %v", segs, err)
	}
	for _, tol := range []float64{0, -1, math.NaN()} {
		if _, err := items[5].Segments(tol); !errors.Is(err, ErrGeometry) {
			t.Fatalf("tolerance %g must be rejected, got %v", tol, err)
		}
	}
}
