package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ByLCY/svg2gerber/binding"
	"github.com/ByLCY/svg2gerber/gerber"
	"github.com/ByLCY/svg2gerber/layout"
	"github.com/ByLCY/svg2gerber/pipeline"
	"github.com/ByLCY/svg2gerber/renderer"
	canvasrenderer "github.com/ByLCY/svg2gerber/renderer/canvas"
	"github.com/ByLCY/svg2gerber/svg"
)

type config struct {
	tolerance float64
	rulesPath string
	unit      string
	precision int
	outDir    string
	preview   bool
	debug     bool
	jobs      int
	verbose   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(&config{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "svg2gerber [flags] FILE.svg...",
		Short: "把分层的 SVG 绘图转换为 Gerber 光绘文件",
		Long: `svg2gerber 按图层规则在 SVG 中查找分组（id 或 inkscape:label），
轮廓图层输出为光圈描线，填充图层经三角剖分后输出为 G36/G37 区域。`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(cfg.verbose)
			opts, err := resolveOptions(cmd, cfg)
			if err != nil {
				log.Error("配置无效", "err", err)
				return err
			}
			var r renderer.Renderer = canvasrenderer.NewRenderer()

			var errs []error
			for _, input := range args {
				if err := convert(cmd.Context(), input, cfg, opts, r, log); err != nil {
					log.Error("转换失败", "input", input, "err", err)
					errs = append(errs, fmt.Errorf("%s: %w", input, err))
				}
			}
			return errors.Join(errs...)
		},
	}

	f := cmd.Flags()
	f.Float64VarP(&cfg.tolerance, "tolerance", "t", layout.DefaultTolerance, "曲线展平容差（mm）")
	f.StringVar(&cfg.rulesPath, "rules", "", "图层规则文件路径，未指定时使用内置规则")
	f.StringVar(&cfg.unit, "unit", string(gerber.UnitMM), "输出单位：mm 或 inch")
	f.IntVar(&cfg.precision, "precision", gerber.DefaultOptions().Format.FracDigits, "坐标小数位数")
	f.StringVarP(&cfg.outDir, "out-dir", "o", "", "输出目录，默认与输入文件相同")
	f.BoolVar(&cfg.preview, "preview", false, "同时输出 PDF 预览（<base>-preview.pdf）")
	f.BoolVar(&cfg.debug, "debug", false, "同时输出图层调试 JSON（<base>-layers.json）")
	f.IntVarP(&cfg.jobs, "jobs", "j", 1, "并行处理的图层数")
	f.BoolVarP(&cfg.verbose, "verbose", "v", false, "输出调试日志")
	return cmd
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveOptions 合并配置：命令行参数优先于规则文件，规则文件优先于默认值。
func resolveOptions(cmd *cobra.Command, cfg *config) (pipeline.Options, error) {
	opts := pipeline.Options{
		Tolerance: cfg.tolerance,
		Gerber:    gerber.DefaultOptions(),
		Parallel:  cfg.jobs,
	}
	flags := cmd.Flags()

	if cfg.rulesPath != "" {
		rs, err := layout.LoadRules(cfg.rulesPath)
		if err != nil {
			return opts, err
		}
		opts.Rules = rs.Rules
		if rs.Tolerance > 0 && !flags.Changed("tolerance") {
			opts.Tolerance = rs.Tolerance
		}
		rs.ApplyTo(&opts.Gerber)
	}

	if flags.Changed("unit") {
		u, err := layout.ParseUnit(cfg.unit)
		if err != nil {
			return opts, err
		}
		opts.Gerber.Unit = u
	}
	if flags.Changed("precision") {
		opts.Gerber.Format.FracDigits = cfg.precision
	}
	if !(opts.Tolerance > 0) {
		return opts, fmt.Errorf("%w: 容差必须为正数，当前为 %g", gerber.ErrConfig, opts.Tolerance)
	}
	if err := opts.Gerber.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// convert 串联解析、图层转换与可选的预览/调试输出。
func convert(ctx context.Context, input string, cfg *config, opts pipeline.Options, r renderer.Renderer, log *slog.Logger) error {
	file, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("无法打开 SVG 文件: %w", err)
	}
	doc, err := svg.Parse(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("解析 SVG 失败: %w", err)
	}

	outDir := cfg.outDir
	if outDir == "" {
		outDir = filepath.Dir(input)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	opts.Sink = pipeline.DirSink{Dir: outDir, Input: input}
	opts.Logger = log.With("input", input)
	report, runErr := pipeline.Run(ctx, doc, opts)
	if report == nil {
		return runErr
	}
	for _, name := range report.Missing {
		log.Debug("未找到图层分组", "input", input, "layer", name)
	}
	if len(report.Layers) == 0 {
		log.Warn("没有任何图层被转换", "input", input)
	}

	base := filepath.Join(outDir, binding.Vars(input, "")["base"])
	result := report.Result(doc)
	if cfg.debug {
		path := base + "-layers.json"
		if err := layout.WriteDebugJSON(result, path); err != nil {
			return errors.Join(runErr, fmt.Errorf("输出调试 JSON 失败: %w", err))
		}
		log.Info("已写出调试 JSON", "output", path)
	}
	if cfg.preview && len(result.Layers) > 0 {
		pdfBytes, err := r.Render(result)
		if err != nil {
			return errors.Join(runErr, fmt.Errorf("渲染 PDF 失败: %w", err))
		}
		path := base + "-preview" + r.Extension()
		if err := os.WriteFile(path, pdfBytes, 0o644); err != nil {
			return errors.Join(runErr, fmt.Errorf("写入 PDF 文件失败: %w", err))
		}
		log.Info("已生成预览", "output", path)
	}
	return runErr
}
