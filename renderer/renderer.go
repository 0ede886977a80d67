package renderer

import "github.com/ByLCY/svg2gerber/layout"

// Renderer 把解析出的图层几何绘制为预览文件。
type Renderer interface {
	// Render 返回完整的文件内容；没有可绘制图层时返回错误。
	Render(result *layout.Result) ([]byte, error)
	// Extension 返回输出文件的扩展名（含点），例如 ".pdf"。
	Extension() string
}
