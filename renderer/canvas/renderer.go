package canvasrenderer

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/pdf"

	"github.com/ByLCY/svg2gerber/geom"
	"github.com/ByLCY/svg2gerber/layout"
	"github.com/ByLCY/svg2gerber/renderer"
)

const (
	defaultMargin   = 5.0
	minStrokeWidth  = 0.05
	defaultPageSize = 100.0
)

var (
	copperColor = canvas.Hex("#c87533")
	clearColor  = canvas.Hex("#f4f4f4")
)

// Renderer draws each resolved layer on its own PDF page via github.com/tdewolff/canvas.
type Renderer struct {
	margin float64
}

var _ renderer.Renderer = (*Renderer)(nil)

// Options configures the canvas renderer.
type Options struct {
	Margin float64 // page margin in mm around the drawing
}

// NewRenderer creates a preview renderer with default options.
func NewRenderer() *Renderer { return NewRendererWithOptions(Options{}) }

// NewRendererWithOptions creates a preview renderer.
func NewRendererWithOptions(opts Options) *Renderer {
	r := &Renderer{margin: opts.Margin}
	if r.margin <= 0 {
		r.margin = defaultMargin
	}
	return r
}

// Extension 返回 ".pdf"。
func (r *Renderer) Extension() string { return ".pdf" }

// page 描述一页的画布尺寸与绘图原点偏移（mm）。
type page struct {
	width, height float64
	dx, dy        float64
}

// Render renders every layer into a multi-page PDF byte slice.
func (r *Renderer) Render(result *layout.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("渲染结果为空")
	}
	if len(result.Layers) == 0 {
		return nil, fmt.Errorf("缺少可渲染的图层")
	}

	pages := make([]page, len(result.Layers))
	for i, layer := range result.Layers {
		pages[i] = r.pageFor(result, layer)
	}

	var buf bytes.Buffer
	writer := pdf.New(&buf, pages[0].width, pages[0].height, nil)
	for i, layer := range result.Layers {
		pg := pages[i]
		if i > 0 {
			writer.NewPage(pg.width, pg.height)
		}
		c := canvas.New(pg.width, pg.height)
		ctx := canvas.NewContext(c)
		ctx.SetCoordSystem(canvas.CartesianIV) // 与绘图一致，左上角为原点，Y 向下

		r.drawLayer(ctx, layer, pg)
		c.RenderTo(writer)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("写入 PDF 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// pageFor 优先使用文档尺寸；未声明时按图层几何包围盒加边距确定页面。
func (r *Renderer) pageFor(result *layout.Result, layer *layout.Layer) page {
	if result.Width > 0 && result.Height > 0 {
		return page{
			width:  result.Width + 2*r.margin,
			height: result.Height + 2*r.margin,
			dx:     r.margin,
			dy:     r.margin,
		}
	}
	minPt, maxPt, ok := layerBounds(layer)
	if !ok {
		return page{width: defaultPageSize, height: defaultPageSize}
	}
	return page{
		width:  math.Max(maxPt.X-minPt.X, 1) + 2*r.margin,
		height: math.Max(maxPt.Y-minPt.Y, 1) + 2*r.margin,
		dx:     r.margin - minPt.X,
		dy:     r.margin - minPt.Y,
	}
}

func layerBounds(layer *layout.Layer) (geom.Point, geom.Point, bool) {
	segments := append([]geom.Segment(nil), layer.Contours...)
	for _, reg := range layer.Regions {
		ring := make(geom.Segment, 0, len(reg.Vertices)/2)
		for i := 0; i+1 < len(reg.Vertices); i += 2 {
			ring = append(ring, geom.Point{X: reg.Vertices[i], Y: reg.Vertices[i+1]})
		}
		segments = append(segments, ring)
	}
	return geom.Bounds(segments)
}

func (r *Renderer) drawLayer(ctx *canvas.Context, layer *layout.Layer, pg page) {
	switch layer.Rule.Mode {
	case layout.Contour:
		ctx.SetFillColor(canvas.Transparent)
		ctx.SetStrokeColor(canvas.Black)
		ctx.SetStrokeWidth(math.Max(layer.Rule.ApertureDiameter(), minStrokeWidth))
		for _, c := range layer.Contours {
			ctx.DrawPath(pg.dx, pg.dy, polyline(c))
		}
	case layout.Fill:
		ctx.SetStrokeColor(canvas.Transparent)
		ctx.SetFillColor(fillColor(layer.Rule.Polarity))
		for _, reg := range layer.Regions {
			ctx.DrawPath(pg.dx, pg.dy, triangles(reg))
		}
	}
}

func fillColor(p layout.Polarity) color.Color {
	if p == layout.Clear {
		return clearColor
	}
	return copperColor
}

func polyline(points geom.Segment) *canvas.Path {
	p := &canvas.Path{}
	for i, pt := range points {
		if i == 0 {
			p.MoveTo(pt.X, pt.Y)
			continue
		}
		p.LineTo(pt.X, pt.Y)
	}
	return p
}

// triangles 把区域的全部三角形合并为一条路径。
func triangles(reg layout.Region) *canvas.Path {
	p := &canvas.Path{}
	for i := 0; i < reg.Triangles(); i++ {
		tri := reg.Triangle(i)
		p.MoveTo(tri[0].X, tri[0].Y)
		p.LineTo(tri[1].X, tri[1].Y)
		p.LineTo(tri[2].X, tri[2].Y)
		p.Close()
	}
	return p
}
