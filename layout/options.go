package layout

import "log/slog"

// DefaultTolerance 是曲线展平的默认容差（mm）。
const DefaultTolerance = 0.05

// BuildOptions 配置图层构建。
type BuildOptions struct {
	Tolerance float64      // 展平容差（mm），0 表示使用 DefaultTolerance
	Logger    *slog.Logger // 为空时使用 slog.Default()
}

func (o BuildOptions) tolerance() float64 {
	if o.Tolerance == 0 {
		return DefaultTolerance
	}
	return o.Tolerance
}

func (o BuildOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}
