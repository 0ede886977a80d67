// Package gerber writes RS-274X (extended Gerber) command streams.
//
// Writer 是一个追加式的状态机：每次调用输出恰好一行，已写出的指令不会被改写。
package gerber

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

var (
	// ErrConfig 表示格式或单位配置非法，当前层应放弃输出。
	ErrConfig = errors.New("gerber: 配置错误")
	// ErrAperture 表示光圈编号非法或未声明。
	ErrAperture = errors.New("gerber: 光圈错误")
	// ErrState 表示调用顺序不符合状态机约束。
	ErrState = errors.New("gerber: 状态错误")
	// ErrRange 表示坐标不是有限值，或量化后超出 int64。
	ErrRange = errors.New("gerber: 坐标超出范围")
)

// MinApertureIndex 以下的光圈编号为保留值。
const MinApertureIndex = 10

// Unit 是输出文件的坐标单位。
type Unit string

const (
	UnitMM   Unit = "mm"
	UnitInch Unit = "inch"
)

// Format 描述坐标的定点格式：整数位数与小数位数。
type Format struct {
	IntDigits  int
	FracDigits int
}

// Options 配置一个 Writer。
type Options struct {
	Format Format
	Unit   Unit
}

// Validate 检查单位与坐标格式，错误均包装 ErrConfig。
// 整数位数取 1..6，小数位数取 0..6；整个 Format 为零值时表示未设置，由 New 填入默认值。
func (o Options) Validate() error {
	switch o.Unit {
	case UnitMM, UnitInch, "":
	default:
		return fmt.Errorf("%w: 非法单位 %q（请使用 mm 或 inch）", ErrConfig, o.Unit)
	}
	f := o.Format
	if f == (Format{}) {
		return nil
	}
	if f.IntDigits < 1 || f.IntDigits > 6 || f.FracDigits < 0 || f.FracDigits > 6 {
		return fmt.Errorf("%w: 非法坐标格式 %d.%d", ErrConfig, f.IntDigits, f.FracDigits)
	}
	return nil
}

// DefaultOptions 与常见 PCB 工具一致：6 位整数、3 位小数、毫米。
func DefaultOptions() Options {
	return Options{Format: Format{IntDigits: 6, FracDigits: 3}, Unit: UnitMM}
}

// State 是 Writer 的生命周期阶段。
type State int

const (
	Uninitialized State = iota
	HeaderWritten
	Emitting
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case HeaderWritten:
		return "header-written"
	case Emitting:
		return "emitting"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Aperture 是一个已声明的圆形光圈。
type Aperture struct {
	Index    int
	Diameter float64
}

// Writer 将 Gerber 指令逐行写入目标。
type Writer struct {
	w    io.Writer
	opts Options

	state     State
	apertures []Aperture
	selected  int
	inRegion  bool
	lines     int
}

// New 创建绑定到 w 的 Writer。
// 只有整个 Format 为零值时才使用默认格式，Format{6, 0} 这样的显式配置保持不变。
func New(w io.Writer, opts Options) *Writer {
	def := DefaultOptions()
	if opts.Format == (Format{}) {
		opts.Format = def.Format
	}
	if opts.Unit == "" {
		opts.Unit = def.Unit
	}
	return &Writer{w: w, opts: opts}
}

// State 返回当前状态。
func (g *Writer) State() State { return g.state }

// Options 返回填充默认值后的配置。
func (g *Writer) Options() Options { return g.opts }

// Lines 返回已写出的行数。
func (g *Writer) Lines() int { return g.lines }

// Apertures 返回按声明顺序排列的光圈副本。
func (g *Writer) Apertures() []Aperture {
	return append([]Aperture(nil), g.apertures...)
}

// Quantize 将坐标截断为定点整数：floor(v × 10^digits)。
// 截断方向为负无穷，因此对零点不对称，这是输出兼容性的一部分。
// v 必须是有限值且量化结果落在 int64 内，否则结果无意义；Writer 会先用 quantizeChecked 检查。
func Quantize(v float64, digits int) int64 {
	return int64(math.Floor(v * math.Pow(10, float64(digits))))
}

// 2^63，float64 可精确表示
const int64Limit = 1 << 63

func quantizeChecked(v float64, digits int) (int64, error) {
	q := math.Floor(v * math.Pow(10, float64(digits)))
	if math.IsNaN(q) || q >= int64Limit || q < -int64Limit {
		return 0, fmt.Errorf("%w: %g（%d 位小数）", ErrRange, v, digits)
	}
	return int64(q), nil
}

// WriteComment 写出一条 G04 注释，可在关闭前的任意阶段调用。
func (g *Writer) WriteComment(text string) error {
	if g.state == Closed {
		return fmt.Errorf("%w: 文件已关闭，无法写入注释", ErrState)
	}
	return g.cmd("G04 " + text)
}

// WriteHeader 写出坐标格式与单位声明，只能调用一次。
func (g *Writer) WriteHeader() error {
	if g.state != Uninitialized {
		return fmt.Errorf("%w: 文件头只能在初始状态写入（当前 %s）", ErrState, g.state)
	}
	if err := g.opts.Validate(); err != nil {
		return err
	}
	mode := "MOMM"
	if g.opts.Unit == UnitInch {
		mode = "MOIN"
	}
	f := g.opts.Format
	digits := fmt.Sprintf("%d%d", f.IntDigits, f.FracDigits)
	if err := g.ext("FSLAX" + digits + "Y" + digits); err != nil {
		return err
	}
	if err := g.ext(mode); err != nil {
		return err
	}
	g.state = HeaderWritten
	return nil
}

// DeclareAperture 声明一个圆形光圈。
func (g *Writer) DeclareAperture(index int, diameter float64) error {
	if err := g.requireBody(); err != nil {
		return err
	}
	if index < MinApertureIndex {
		return fmt.Errorf("%w: 非法光圈编号 %d（请使用 >= %d）", ErrAperture, index, MinApertureIndex)
	}
	if g.declared(index) {
		return fmt.Errorf("%w: 光圈 D%d 重复声明", ErrAperture, index)
	}
	if !(diameter > 0) || math.IsInf(diameter, 1) {
		return fmt.Errorf("%w: 光圈 D%d 直径必须为正数，实际 %g", ErrConfig, index, diameter)
	}
	diam := formatDiameter(diameter, g.opts.Format.FracDigits)
	if err := g.body(fmt.Sprintf("%%ADD%dC,%s*%%", index, diam)); err != nil {
		return err
	}
	g.apertures = append(g.apertures, Aperture{Index: index, Diameter: diameter})
	return nil
}

// SelectAperture 选中一个已声明的光圈。
func (g *Writer) SelectAperture(index int) error {
	if err := g.requireBody(); err != nil {
		return err
	}
	if index < MinApertureIndex {
		return fmt.Errorf("%w: 非法光圈编号 %d（请使用 >= %d）", ErrAperture, index, MinApertureIndex)
	}
	if !g.declared(index) {
		return fmt.Errorf("%w: 光圈 D%d 尚未声明", ErrAperture, index)
	}
	if err := g.body(fmt.Sprintf("D%d*", index)); err != nil {
		return err
	}
	g.selected = index
	return nil
}

// MoveTo 抬笔移动到 (x, y)。
func (g *Writer) MoveTo(x, y float64) error { return g.op(x, y, "D02") }

// InterpolateTo 以当前光圈画线到 (x, y)；在区域内则描述边界。
func (g *Writer) InterpolateTo(x, y float64) error { return g.op(x, y, "D01") }

// FlashAt 在 (x, y) 处闪光当前光圈。
func (g *Writer) FlashAt(x, y float64) error {
	if err := g.requireBody(); err != nil {
		return err
	}
	if g.inRegion {
		return fmt.Errorf("%w: 区域内不允许 D03", ErrState)
	}
	if g.selected == 0 {
		return fmt.Errorf("%w: D03 之前必须选择光圈", ErrAperture)
	}
	return g.op(x, y, "D03")
}

// BeginRegion 开始一个填充区域（G36）。
func (g *Writer) BeginRegion() error {
	if err := g.requireBody(); err != nil {
		return err
	}
	if g.inRegion {
		return fmt.Errorf("%w: 区域不可嵌套", ErrState)
	}
	if err := g.body("G36*"); err != nil {
		return err
	}
	g.inRegion = true
	return nil
}

// EndRegion 结束当前填充区域（G37）。
func (g *Writer) EndRegion() error {
	if err := g.requireBody(); err != nil {
		return err
	}
	if !g.inRegion {
		return fmt.Errorf("%w: 没有打开的区域", ErrState)
	}
	if err := g.body("G37*"); err != nil {
		return err
	}
	g.inRegion = false
	return nil
}

// SetPolarity 设置后续图形的极性：dark 为加料，否则为清除。
func (g *Writer) SetPolarity(dark bool) error {
	if err := g.requireBody(); err != nil {
		return err
	}
	if g.inRegion {
		return fmt.Errorf("%w: 区域内不允许切换极性", ErrState)
	}
	p := "%LPC*%"
	if dark {
		p = "%LPD*%"
	}
	return g.body(p)
}

// Close 写出文件结束指令（M02）。之后不再接受任何写入。
func (g *Writer) Close() error {
	if g.state == Closed {
		return nil
	}
	if g.state == Uninitialized {
		return fmt.Errorf("%w: 尚未写入文件头", ErrState)
	}
	if g.inRegion {
		return fmt.Errorf("%w: 关闭前区域未结束", ErrState)
	}
	if err := g.cmd("M02"); err != nil {
		return err
	}
	g.state = Closed
	return nil
}

func (g *Writer) op(x, y float64, code string) error {
	if err := g.requireBody(); err != nil {
		return err
	}
	d := g.opts.Format.FracDigits
	qx, err := quantizeChecked(x, d)
	if err != nil {
		return err
	}
	qy, err := quantizeChecked(y, d)
	if err != nil {
		return err
	}
	line := "X" + strconv.FormatInt(qx, 10) + "Y" + strconv.FormatInt(qy, 10) + code
	return g.body(line + "*")
}

// maxDiameterError 是光圈直径格式化后允许的相对误差。
const maxDiameterError = 0.005

// formatDiameter 至少使用 digits 位小数；若舍入后误差过大（例如英寸单位下的细线光圈），
// 继续增加位数，直到误差足够小，最多退回到无损表示。
func formatDiameter(d float64, digits int) string {
	for n := digits; n <= 9; n++ {
		s := strconv.FormatFloat(d, 'f', n, 64)
		v, err := strconv.ParseFloat(s, 64)
		if err == nil && v > 0 && math.Abs(v-d)/d <= maxDiameterError {
			return s
		}
	}
	return strconv.FormatFloat(d, 'f', -1, 64)
}

// body 写出一行正文指令，并在首次成功写入后进入 Emitting。
func (g *Writer) body(line string) error {
	if err := g.write(line); err != nil {
		return err
	}
	g.state = Emitting
	return nil
}

func (g *Writer) requireBody() error {
	switch g.state {
	case HeaderWritten, Emitting:
		return nil
	case Closed:
		return fmt.Errorf("%w: 文件已关闭", ErrState)
	default:
		return fmt.Errorf("%w: 必须先写入文件头", ErrState)
	}
}

func (g *Writer) declared(index int) bool {
	for _, a := range g.apertures {
		if a.Index == index {
			return true
		}
	}
	return false
}

// cmd 写出普通指令，以 '*' 结尾。
func (g *Writer) cmd(s string) error {
	return g.write(s + "*")
}

// ext 写出扩展指令，额外包在 '%' 中。
func (g *Writer) ext(s string) error {
	return g.write("%" + s + "*%")
}

func (g *Writer) write(line string) error {
	if _, err := io.WriteString(g.w, line+"\n"); err != nil {
		return fmt.Errorf("写入 Gerber 失败: %w", err)
	}
	g.lines++
	return nil
}
