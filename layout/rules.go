package layout

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ByLCY/svg2gerber/dsl"
	"github.com/ByLCY/svg2gerber/geom"
	"github.com/ByLCY/svg2gerber/gerber"
)

// Mode 决定图层几何如何编码：轮廓描线或区域填充。
type Mode int

const (
	Contour Mode = iota + 1
	Fill
)

func (m Mode) String() string {
	switch m {
	case Contour:
		return "contour"
	case Fill:
		return "fill"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText 让调试 JSON 输出可读的模式名。
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode 解析 contour / fill。
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "contour", "outline":
		return Contour, nil
	case "fill", "region":
		return Fill, nil
	default:
		return 0, fmt.Errorf("未知的转换模式 %q", s)
	}
}

// Polarity 是填充区域的极性，零值为 dark。
type Polarity int

const (
	Dark Polarity = iota
	Clear
)

func (p Polarity) String() string {
	if p == Clear {
		return "clear"
	}
	return "dark"
}

func (p Polarity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// DefaultContourAperture 是轮廓模式的默认圆形光圈直径（mm）。
const DefaultContourAperture = 0.01

// Rule 描述一个输出图层：查找哪些组、输出文件后缀以及编码方式。
type Rule struct {
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases,omitempty"`
	Suffix   string   `json:"suffix"`
	Mode     Mode     `json:"mode"`
	Aperture float64  `json:"aperture,omitempty"` // 轮廓模式光圈直径（mm）
	Polarity Polarity `json:"polarity"`
}

// Identifiers 返回用于查找组的全部名称（Name 在前，去重）。
func (r Rule) Identifiers() []string {
	out := make([]string, 0, len(r.Aliases)+1)
	seen := map[string]bool{}
	for _, s := range append([]string{r.Name}, r.Aliases...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// ApertureDiameter 返回轮廓光圈直径，未设置时使用默认值。
func (r Rule) ApertureDiameter() float64 {
	if r.Aperture > 0 {
		return r.Aperture
	}
	return DefaultContourAperture
}

// DefaultRules 返回内置的 KiCad 风格图层表。
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "Edge.Cuts",
			Aliases:  []string{"Edgecuts", "Edge_Cuts", "EdgeCuts", "Edge Cuts", "Outline"},
			Suffix:   "-Edge_Cuts.gm1",
			Mode:     Contour,
			Aperture: DefaultContourAperture,
		},
		{
			Name:    "F.SilkS",
			Aliases: []string{"Silkscreen", "F.Silkscreen", "F_SilkS", "Top Silkscreen"},
			Suffix:  "-F_SilkS.gto",
			Mode:    Fill,
		},
		{
			Name:    "B.SilkS",
			Aliases: []string{"B.Silkscreen", "B_SilkS", "Bottom Silkscreen"},
			Suffix:  "-B_SilkS.gbo",
			Mode:    Fill,
		},
		{
			Name:    "F.Cu",
			Aliases: []string{"F_Cu", "Front Copper", "Top Copper", "Copper"},
			Suffix:  "-F_Cu.gtl",
			Mode:    Fill,
		},
		{
			Name:    "B.Cu",
			Aliases: []string{"B_Cu", "Back Copper", "Bottom Copper"},
			Suffix:  "-B_Cu.gbl",
			Mode:    Fill,
		},
		{
			Name:    "F.Mask",
			Aliases: []string{"F_Mask", "Front Mask", "Top Mask", "Soldermask"},
			Suffix:  "-F_Mask.gts",
			Mode:    Fill,
		},
		{
			Name:    "B.Mask",
			Aliases: []string{"B_Mask", "Back Mask", "Bottom Mask"},
			Suffix:  "-B_Mask.gbs",
			Mode:    Fill,
		},
	}
}

// RuleSet 是规则文件的解析结果；零值或 nil 字段表示未设置。
// 位数用指针保存，因此 precision: 0 与未设置可以区分。
type RuleSet struct {
	Tolerance  float64     `json:"tolerance,omitempty"`
	Unit       gerber.Unit `json:"unit,omitempty"`
	IntDigits  *int        `json:"integer,omitempty"`
	FracDigits *int        `json:"precision,omitempty"`
	Rules      []Rule      `json:"rules"`
}

// ApplyTo 用规则文件中显式设置的输出选项覆盖 opts。
func (rs *RuleSet) ApplyTo(opts *gerber.Options) {
	if rs.Unit != "" {
		opts.Unit = rs.Unit
	}
	if rs.IntDigits != nil {
		opts.Format.IntDigits = *rs.IntDigits
	}
	if rs.FracDigits != nil {
		opts.Format.FracDigits = *rs.FracDigits
	}
}

// LoadRules 读取并解析规则文件。
func LoadRules(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开规则文件失败: %w", err)
	}
	defer f.Close()

	file, err := dsl.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("解析规则文件 %s 失败: %w", path, err)
	}
	rs, err := RulesFromDSL(file)
	if err != nil {
		return nil, fmt.Errorf("规则文件 %s: %w", path, err)
	}
	return rs, nil
}

// RulesFromDSL 把规则文件 AST 转换为 RuleSet，未知键或非法取值报告所在位置。
func RulesFromDSL(file *dsl.File) (*RuleSet, error) {
	if file == nil {
		return nil, fmt.Errorf("规则文件为空")
	}
	rs := &RuleSet{}
	names := map[string]bool{}
	for _, sec := range file.Sections {
		switch {
		case sec.Options != nil:
			if err := applyOptions(rs, sec.Options.Block); err != nil {
				return nil, err
			}
		case sec.Layer != nil:
			rule, err := layerRule(sec.Layer)
			if err != nil {
				return nil, err
			}
			if names[rule.Name] {
				return nil, fmt.Errorf("%d:%d: 图层 %q 重复定义", sec.Layer.Pos.Line, sec.Layer.Pos.Column, rule.Name)
			}
			names[rule.Name] = true
			rs.Rules = append(rs.Rules, rule)
		}
	}
	if len(rs.Rules) == 0 {
		return nil, fmt.Errorf("规则文件未定义任何图层")
	}
	return rs, nil
}

func applyOptions(rs *RuleSet, block *dsl.Block) error {
	for _, a := range block.Assignments {
		raw := a.Value.Raw()
		switch a.Key {
		case "tolerance":
			v, err := millimetres(raw)
			if err != nil || v <= 0 {
				return a.Errorf("容差必须为正数，当前为 %q", raw)
			}
			rs.Tolerance = v
		case "unit":
			u, err := ParseUnit(raw)
			if err != nil {
				return a.Errorf("%v", err)
			}
			rs.Unit = u
		case "precision":
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 || n > 6 {
				return a.Errorf("精度必须为 0 到 6 的整数，当前为 %q", raw)
			}
			rs.FracDigits = &n
		case "integer":
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 6 {
				return a.Errorf("整数位数必须为 1 到 6 的整数，当前为 %q", raw)
			}
			rs.IntDigits = &n
		default:
			return a.Errorf("未知的选项")
		}
	}
	return nil
}

func layerRule(sec *dsl.LayerSection) (Rule, error) {
	rule := Rule{Name: sec.Name(), Aliases: append([]string(nil), sec.Names[1:]...), Mode: Fill}
	var hasSuffix bool
	for _, a := range sec.Block.Assignments {
		raw := a.Value.Raw()
		switch a.Key {
		case "suffix":
			if raw == "" {
				return rule, a.Errorf("后缀不能为空")
			}
			rule.Suffix = raw
			hasSuffix = true
		case "mode":
			m, err := ParseMode(raw)
			if err != nil {
				return rule, a.Errorf("%v", err)
			}
			rule.Mode = m
		case "aperture":
			v, err := millimetres(raw)
			if err != nil || v <= 0 {
				return rule, a.Errorf("光圈直径必须为正数，当前为 %q", raw)
			}
			rule.Aperture = v
		case "polarity":
			switch raw {
			case "dark":
				rule.Polarity = Dark
			case "clear":
				rule.Polarity = Clear
			default:
				return rule, a.Errorf("极性只能是 dark 或 clear，当前为 %q", raw)
			}
		case "aliases":
			rule.Aliases = append(rule.Aliases, a.Value.Strings()...)
		default:
			return rule, a.Errorf("未知的图层属性")
		}
	}
	if !hasSuffix {
		return rule, fmt.Errorf("%d:%d: 图层 %q 缺少 suffix", sec.Pos.Line, sec.Pos.Column, rule.Name)
	}
	return rule, nil
}

// ParseUnit 解析输出单位：mm 或 inch（in）。
func ParseUnit(s string) (gerber.Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mm":
		return gerber.UnitMM, nil
	case "inch", "in":
		return gerber.UnitInch, nil
	default:
		return "", fmt.Errorf("未知的输出单位 %q", s)
	}
}

// millimetres 解析带可选单位的长度，无单位按毫米处理。
func millimetres(raw string) (float64, error) {
	l, ok := geom.ParseLength(raw)
	if !ok {
		return 0, fmt.Errorf("无效的长度 %q", raw)
	}
	if l.Unit == geom.UnitNone {
		return l.Value, nil
	}
	return l.ToMM(), nil
}
