// Package pipeline 把文档中的每个规则图层编码为独立的 Gerber 文件。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/svg2gerber/geom"
	"github.com/ByLCY/svg2gerber/gerber"
	"github.com/ByLCY/svg2gerber/layout"
	"github.com/ByLCY/svg2gerber/svg"
)

// Options 配置一次转换。
type Options struct {
	Rules     []layout.Rule  // 为空时使用 layout.DefaultRules()
	Tolerance float64        // 展平容差（mm），0 表示默认值
	Gerber    gerber.Options // 输出格式与单位，零值字段使用默认值
	Sink      Sink
	Parallel  int // 大于 1 时按图层并行
	Logger    *slog.Logger
}

// LayerReport 记录单个图层的处理结果。
type LayerReport struct {
	Rule   layout.Rule   `json:"rule"`
	Output string        `json:"output,omitempty"`
	Lines  int           `json:"lines"`
	Layer  *layout.Layer `json:"-"`
	Err    error         `json:"-"`
}

// Report 汇总一次转换：已写出的图层与未找到的规则。
type Report struct {
	Layers  []LayerReport
	Missing []string
}

// Result 把报告转换为 layout.Result，供预览与调试输出使用。
func (r *Report) Result(doc *svg.Document) *layout.Result {
	res := &layout.Result{Width: doc.Width, Height: doc.Height, Missing: r.Missing}
	for _, l := range r.Layers {
		if l.Layer != nil {
			res.Layers = append(res.Layers, l.Layer)
		}
	}
	return res
}

// Run 对每条规则构建图层并编码输出。
// 单个图层的错误不会中断其他图层；全部规则处理完后返回合并的错误。
func Run(ctx context.Context, doc *svg.Document, opts Options) (*Report, error) {
	if doc == nil {
		return nil, errors.New("文档为空")
	}
	if opts.Sink == nil {
		return nil, errors.New("pipeline: 缺少输出 Sink")
	}
	rules := opts.Rules
	if len(rules) == 0 {
		rules = layout.DefaultRules()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	// 每条规则一个槽位，并行时互不干扰
	layers := make([]*LayerReport, len(rules))
	missing := make([]bool, len(rules))
	convert := func(i int) {
		if err := ctx.Err(); err != nil {
			layers[i] = &LayerReport{Rule: rules[i], Err: err}
			return
		}
		rep, ok := convertLayer(doc, rules[i], opts, log)
		if !ok {
			missing[i] = true
			return
		}
		layers[i] = rep
	}

	if opts.Parallel > 1 {
		var g errgroup.Group
		g.SetLimit(opts.Parallel)
		for i := range rules {
			g.Go(func() error {
				convert(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range rules {
			convert(i)
		}
	}

	report := &Report{}
	var errs []error
	for i, rep := range layers {
		if missing[i] {
			report.Missing = append(report.Missing, rules[i].Name)
			continue
		}
		report.Layers = append(report.Layers, *rep)
		if rep.Err != nil {
			errs = append(errs, fmt.Errorf("图层 %s: %w", rep.Rule.Name, rep.Err))
		}
	}
	return report, errors.Join(errs...)
}

func convertLayer(doc *svg.Document, rule layout.Rule, opts Options, log *slog.Logger) (*LayerReport, bool) {
	layer, ok := layout.BuildLayer(doc, rule, layout.BuildOptions{Tolerance: opts.Tolerance, Logger: log})
	if !ok {
		return nil, false
	}
	rep := &LayerReport{Rule: rule, Layer: layer}
	if layer.Empty() {
		log.Warn("图层没有可输出的几何，仍写出空文件", "layer", rule.Name)
	}

	// 配置错误在创建输出之前报告，避免留下只有半个文件头的文件
	if err := checkLayer(rule, opts.Gerber); err != nil {
		rep.Err = err
		log.Error("图层配置无效", "layer", rule.Name, "err", err)
		return rep, true
	}

	name, out, err := opts.Sink.Create(rule)
	if err != nil {
		rep.Err = err
		log.Error("无法创建图层输出", "layer", rule.Name, "err", err)
		return rep, true
	}
	rep.Output = name

	w := gerber.New(out, opts.Gerber)
	err = Encode(w, layer)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	rep.Lines = w.Lines()
	if err != nil {
		rep.Err = err
		log.Error("图层编码失败", "layer", rule.Name, "output", name, "err", err)
		return rep, true
	}
	log.Info("图层已写出",
		"layer", rule.Name,
		"output", name,
		"lines", rep.Lines,
		"skipped", layer.Stats.Skipped,
	)
	return rep, true
}

func checkLayer(rule layout.Rule, opts gerber.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	switch rule.Mode {
	case layout.Contour, layout.Fill:
		return nil
	default:
		return fmt.Errorf("%w: 未知的转换模式 %s", gerber.ErrConfig, rule.Mode)
	}
}

// Encode 把图层几何写入一个新的 Writer，完成后关闭（M02）。
// 坐标从毫米换算为输出单位，并在输出时翻转 Y 轴。
func Encode(w *gerber.Writer, layer *layout.Layer) error {
	rule := layer.Rule
	// 每个输出单位对应的毫米数；用除法换算，25.4mm 恰好得到 1in
	mmPerUnit := 1.0
	if w.Options().Unit == gerber.UnitInch {
		mmPerUnit = geom.MmPerInch
	}
	e := emitter{w: w, mmPerUnit: mmPerUnit}

	if err := w.WriteComment(fmt.Sprintf("%s (%s)", rule.Name, rule.Mode)); err != nil {
		return err
	}
	if err := w.WriteHeader(); err != nil {
		return err
	}

	switch rule.Mode {
	case layout.Contour:
		if err := w.DeclareAperture(gerber.MinApertureIndex, rule.ApertureDiameter()/mmPerUnit); err != nil {
			return err
		}
		if err := w.SelectAperture(gerber.MinApertureIndex); err != nil {
			return err
		}
		for _, c := range layer.Contours {
			if err := e.contour(c); err != nil {
				return err
			}
		}
	case layout.Fill:
		if err := w.SetPolarity(rule.Polarity == layout.Dark); err != nil {
			return err
		}
		for _, reg := range layer.Regions {
			if err := e.region(reg); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: 未知的转换模式 %s", gerber.ErrConfig, rule.Mode)
	}
	return w.Close()
}

type emitter struct {
	w         *gerber.Writer
	mmPerUnit float64
}

func (e emitter) moveTo(p geom.Point) error {
	return e.w.MoveTo(p.X/e.mmPerUnit, -p.Y/e.mmPerUnit)
}

func (e emitter) lineTo(p geom.Point) error {
	return e.w.InterpolateTo(p.X/e.mmPerUnit, -p.Y/e.mmPerUnit)
}

// contour 输出一个 D02 与 n-1 个 D01；不足两个点时不输出。
func (e emitter) contour(points geom.Segment) error {
	points = geom.DedupPoints(points)
	if len(points) < 2 {
		return nil
	}
	if err := e.moveTo(points[0]); err != nil {
		return err
	}
	for _, p := range points[1:] {
		if err := e.lineTo(p); err != nil {
			return err
		}
	}
	return nil
}

// region 以 G36/G37 包裹全部三角形；没有三角形时整个区域省略。
func (e emitter) region(reg layout.Region) error {
	if reg.Triangles() == 0 {
		return nil
	}
	if err := e.w.BeginRegion(); err != nil {
		return err
	}
	for i := 0; i < reg.Triangles(); i++ {
		tri := reg.Triangle(i)
		if err := e.moveTo(tri[0]); err != nil {
			return err
		}
		for _, p := range []geom.Point{tri[1], tri[2], tri[0]} {
			if err := e.lineTo(p); err != nil {
				return err
			}
		}
	}
	return e.w.EndRegion()
}
