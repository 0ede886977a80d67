package layout

import (
	"log/slog"

	"github.com/ByLCY/svg2gerber/earcut"
	"github.com/ByLCY/svg2gerber/geom"
	"github.com/ByLCY/svg2gerber/svg"
)

// Build 依次对每条规则构建图层；找不到组的规则记入 Missing。
func Build(doc *svg.Document, rules []Rule, opts BuildOptions) *Result {
	res := &Result{Width: doc.Width, Height: doc.Height}
	for _, rule := range rules {
		layer, ok := BuildLayer(doc, rule, opts)
		if !ok {
			res.Missing = append(res.Missing, rule.Name)
			continue
		}
		res.Layers = append(res.Layers, layer)
	}
	return res
}

// BuildLayer 查找规则对应的组，展平、去重并按模式生成轮廓或三角剖分区域。
// 文档中没有匹配的组时返回 ok=false。
// 单个元素的几何错误只会跳过该元素。
func BuildLayer(doc *svg.Document, rule Rule, opts BuildOptions) (*Layer, bool) {
	log := opts.logger().With("layer", rule.Name)

	group := doc.FindGroup(rule.Identifiers()...)
	if group == nil {
		log.Debug("文档中没有对应的组，跳过", "aliases", rule.Identifiers())
		return nil, false
	}

	all := group.Flatten()
	items := svg.Deduplicate(all)
	layer := &Layer{Rule: rule}
	layer.Stats.Items = len(items)
	layer.Stats.Duplicates = len(all) - len(items)
	if layer.Stats.Duplicates > 0 {
		log.Debug("跳过重复元素", "count", layer.Stats.Duplicates)
	}

	tol := opts.tolerance()
	for _, item := range items {
		segments, err := item.Segments(tol)
		if err != nil {
			layer.Stats.Skipped++
			log.Warn("跳过无法展平的元素", "err", err)
			continue
		}
		switch rule.Mode {
		case Contour:
			layer.addContours(segments)
		case Fill:
			layer.addRegion(segments, log)
		default:
			layer.Stats.Skipped++
			log.Warn("未知的转换模式，跳过元素", "mode", rule.Mode)
		}
	}
	log.Debug("图层构建完成",
		"group", group.ID,
		"items", layer.Stats.Items,
		"contours", len(layer.Contours),
		"regions", len(layer.Regions),
	)
	return layer, true
}

func (l *Layer) addContours(segments []geom.Segment) {
	for _, seg := range segments {
		points := geom.DedupPoints(seg)
		if len(points) < 2 {
			l.Stats.Degenerate++
			continue
		}
		l.Contours = append(l.Contours, points)
	}
}

// maxDeviation 以上的剖分面积相对误差会记录警告，通常意味着自相交或孔越界。
const maxDeviation = 1e-6

// addRegion 把一个元素的全部子路径作为一个多边形剖分：第一个为外边界，其余为孔。
func (l *Layer) addRegion(segments []geom.Segment, log *slog.Logger) {
	rings := make([]geom.Segment, 0, len(segments))
	for i, seg := range segments {
		ring := geom.OpenRing(geom.DedupPoints(seg))
		if i > 0 && len(ring) < 3 {
			continue
		}
		rings = append(rings, ring)
	}
	if len(rings) == 0 {
		return
	}

	vertices, holes := earcut.Flatten(rings)
	indices := earcut.Triangulate(vertices, holes)
	if len(indices) == 0 {
		l.Stats.Degenerate++
		log.Debug("区域剖分为空，已省略", "rings", len(rings))
		return
	}
	dev := earcut.Deviation(vertices, holes, indices)
	if dev > maxDeviation {
		log.Warn("三角剖分面积偏差过大", "deviation", dev, "rings", len(rings))
	}
	l.Regions = append(l.Regions, Region{Vertices: vertices, Holes: holes, Indices: indices, Deviation: dev})
}
