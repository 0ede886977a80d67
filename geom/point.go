package geom

import "math"

// Point 是绘图坐标系中的一个点（单位：mm）。
// 相等判断使用精确比较，去重依赖这一点。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment 是一串有序的点。用作多边形输入时，第一段为外边界，其余为孔。
type Segment []Point

// DedupPoints 合并相邻的重复点，返回新的切片，不修改输入。
func DedupPoints(points Segment) Segment {
	if len(points) == 0 {
		return nil
	}
	out := make(Segment, 0, len(points))
	for i, p := range points {
		if i > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// OpenRing 去掉与首点重合的末尾闭合点，供三角剖分使用。
func OpenRing(points Segment) Segment {
	if len(points) > 1 && points[0] == points[len(points)-1] {
		return points[:len(points)-1]
	}
	return points
}

// Bounds 返回点集的包围盒；空输入返回零值与 false。
func Bounds(segments []Segment) (minPt, maxPt Point, ok bool) {
	minPt = Point{X: math.Inf(1), Y: math.Inf(1)}
	maxPt = Point{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, seg := range segments {
		for _, p := range seg {
			minPt.X = math.Min(minPt.X, p.X)
			minPt.Y = math.Min(minPt.Y, p.Y)
			maxPt.X = math.Max(maxPt.X, p.X)
			maxPt.Y = math.Max(maxPt.Y, p.Y)
			ok = true
		}
	}
	if !ok {
		return Point{}, Point{}, false
	}
	return minPt, maxPt, true
}
