package layout

import "github.com/ByLCY/svg2gerber/geom"

// 该文件定义图层构建结果，供编码、预览与调试 JSON 共用。坐标单位均为毫米，Y 轴向下（与绘图一致）。

// Result 保存一次构建得到的全部图层。
type Result struct {
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Layers  []*Layer `json:"layers"`
	Missing []string `json:"missing,omitempty"` // 文档中找不到对应组的规则
}

// Layer 是单条规则解析出的几何。
// 轮廓模式只填充 Contours，填充模式只填充 Regions。
type Layer struct {
	Rule     Rule           `json:"rule"`
	Contours []geom.Segment `json:"contours,omitempty"`
	Regions  []Region       `json:"regions,omitempty"`
	Stats    Stats          `json:"stats"`
}

// Stats 记录构建过程中被丢弃的内容。
type Stats struct {
	Items      int `json:"items"`      // 去重后的元素数
	Duplicates int `json:"duplicates"` // 结构重复而被丢弃的元素
	Skipped    int `json:"skipped"`    // 几何错误或模式未知而被跳过的元素
	Degenerate int `json:"degenerate"` // 剖分为零个三角形的区域或少于两个点的轮廓
}

// Region 是一个元素的三角剖分结果。
// Vertices 为扁平顶点缓冲区，Indices 每三个下标构成一个三角形。
type Region struct {
	Vertices  []float64 `json:"vertices"`
	Holes     []int     `json:"holes,omitempty"`
	Indices   []int     `json:"indices"`
	Deviation float64   `json:"deviation"` // 剖分面积与多边形面积的相对误差
}

// Triangles 返回三角形个数。
func (r Region) Triangles() int { return len(r.Indices) / 3 }

// Triangle 返回第 i 个三角形的三个顶点。
func (r Region) Triangle(i int) [3]geom.Point {
	var tri [3]geom.Point
	for k := 0; k < 3; k++ {
		v := r.Indices[i*3+k]
		tri[k] = geom.Point{X: r.Vertices[v*2], Y: r.Vertices[v*2+1]}
	}
	return tri
}

// Empty 表示图层没有任何可输出的几何。
func (l *Layer) Empty() bool {
	return len(l.Contours) == 0 && len(l.Regions) == 0
}
