// Package earcut triangulates polygons with holes by ear clipping.
//
// The algorithm follows the well known earcut scheme: rings are loaded into a
// circular doubly linked list, every hole is bridged into the outer ring to
// form a single weakly simple polygon, and ears are clipped until the polygon
// is exhausted. Large inputs use a z-order curve to speed up the ear tests.
// When clipping gets stuck the ring is filtered, locally repaired and finally
// split in two; a self-intersecting input degrades the result but never panics.
package earcut

import (
	"math"
	"sort"

	"github.com/ByLCY/svg2gerber/geom"
)

// hashThreshold 顶点数超过该值时启用 z-order 加速。
const hashThreshold = 80

type node struct {
	i    int // vertex index in the flat buffer
	x, y float64
	z    int32

	prev, next   *node
	prevZ, nextZ *node

	steiner bool
}

// Flatten 把若干环（第一个为外边界，其余为孔）展开为顶点缓冲区与孔起始下标。
// 顶点 i 位于 vertices[2i], vertices[2i+1]。
func Flatten(rings []geom.Segment) (vertices []float64, holes []int) {
	n := 0
	for _, r := range rings {
		n += len(r)
	}
	vertices = make([]float64, 0, n*2)
	for i, r := range rings {
		if i > 0 {
			holes = append(holes, len(vertices)/2)
		}
		for _, p := range r {
			vertices = append(vertices, p.X, p.Y)
		}
	}
	return vertices, holes
}

// Triangulate 返回三角形顶点下标列表，每三个为一个三角形。
// holes 为每个孔在顶点缓冲区中的起始顶点下标。退化输入返回空切片。
// 输入切片不会被修改。
func Triangulate(vertices []float64, holes []int) []int {
	outerLen := len(vertices) / 2
	if len(holes) > 0 {
		outerLen = holes[0]
	}
	triangles := make([]int, 0, (len(vertices)/2)*3)
	if outerLen < 3 {
		return triangles
	}

	outer := linkedList(vertices, 0, outerLen, true)
	if outer == nil || outer.next == outer.prev {
		return triangles
	}

	if len(holes) > 0 {
		outer = eliminateHoles(vertices, holes, outer)
	}

	var minX, minY, invSize float64
	if len(vertices) > hashThreshold*2 {
		minX, minY = vertices[0], vertices[1]
		maxX, maxY := minX, minY
		for i := 2; i < outerLen*2; i += 2 {
			x, y := vertices[i], vertices[i+1]
			minX = math.Min(minX, x)
			minY = math.Min(minY, y)
			maxX = math.Max(maxX, x)
			maxY = math.Max(maxY, y)
		}
		invSize = math.Max(maxX-minX, maxY-minY)
		if invSize != 0 {
			invSize = 32767 / invSize
		}
	}

	triangles = earcutLinked(outer, triangles, minX, minY, invSize, 0)
	return triangles
}

// linkedList 按指定方向构建环形链表；clockwise 对外环为 true。
func linkedList(data []float64, start, end int, clockwise bool) *node {
	var last *node
	if clockwise == (signedArea(data, start, end) > 0) {
		for i := start; i < end; i++ {
			last = insertNode(i, data[i*2], data[i*2+1], last)
		}
	} else {
		for i := end - 1; i >= start; i-- {
			last = insertNode(i, data[i*2], data[i*2+1], last)
		}
	}
	if last != nil && equals(last, last.next) {
		removeNode(last)
		last = last.next
	}
	return last
}

// filterPoints 删除重复点与共线点。
func filterPoints(start, end *node) *node {
	if start == nil {
		return start
	}
	if end == nil {
		end = start
	}
	p := start
	for {
		again := false
		if !p.steiner && (equals(p, p.next) || area(p.prev, p, p.next) == 0) {
			removeNode(p)
			p = p.prev
			end = p
			if p == p.next {
				break
			}
			again = true
		} else {
			p = p.next
		}
		if !again && p == end {
			break
		}
	}
	return end
}

// earcutLinked 是主循环：反复寻找并切除耳朵。
func earcutLinked(ear *node, triangles []int, minX, minY, invSize float64, pass int) []int {
	if ear == nil {
		return triangles
	}
	if pass == 0 && invSize != 0 {
		indexCurve(ear, minX, minY, invSize)
	}

	stop := ear
	for ear.prev != ear.next {
		prev := ear.prev
		next := ear.next

		var isEarNode bool
		if invSize != 0 {
			isEarNode = isEarHashed(ear, minX, minY, invSize)
		} else {
			isEarNode = isEar(ear)
		}
		if isEarNode {
			triangles = append(triangles, prev.i, ear.i, next.i)
			removeNode(ear)
			// skipping the next vertex leads to less sliver triangles
			ear = next.next
			stop = next.next
			continue
		}

		ear = next

		if ear == stop {
			switch pass {
			case 0:
				triangles = earcutLinked(filterPoints(ear, nil), triangles, minX, minY, invSize, 1)
			case 1:
				ear = cureLocalIntersections(filterPoints(ear, nil), &triangles)
				triangles = earcutLinked(ear, triangles, minX, minY, invSize, 2)
			case 2:
				triangles = splitEarcut(ear, triangles, minX, minY, invSize)
			}
			break
		}
	}
	return triangles
}

// isEar 判断 ear 处的三角形是否可以安全切除。
func isEar(ear *node) bool {
	a, b, c := ear.prev, ear, ear.next
	if area(a, b, c) >= 0 {
		return false // reflex
	}

	x0 := math.Min(a.x, math.Min(b.x, c.x))
	y0 := math.Min(a.y, math.Min(b.y, c.y))
	x1 := math.Max(a.x, math.Max(b.x, c.x))
	y1 := math.Max(a.y, math.Max(b.y, c.y))

	for p := c.next; p != a; p = p.next {
		if p.x >= x0 && p.x <= x1 && p.y >= y0 && p.y <= y1 &&
			pointInTriangle(a.x, a.y, b.x, b.y, c.x, c.y, p.x, p.y) &&
			area(p.prev, p, p.next) >= 0 {
			return false
		}
	}
	return true
}

func isEarHashed(ear *node, minX, minY, invSize float64) bool {
	a, b, c := ear.prev, ear, ear.next
	if area(a, b, c) >= 0 {
		return false
	}

	x0 := math.Min(a.x, math.Min(b.x, c.x))
	y0 := math.Min(a.y, math.Min(b.y, c.y))
	x1 := math.Max(a.x, math.Max(b.x, c.x))
	y1 := math.Max(a.y, math.Max(b.y, c.y))

	minZ := zOrder(x0, y0, minX, minY, invSize)
	maxZ := zOrder(x1, y1, minX, minY, invSize)

	p := ear.prevZ
	n := ear.nextZ

	// look for points inside the triangle in both directions
	for p != nil && p.z >= minZ && n != nil && n.z <= maxZ {
		if p.x >= x0 && p.x <= x1 && p.y >= y0 && p.y <= y1 && p != a && p != c &&
			pointInTriangle(a.x, a.y, b.x, b.y, c.x, c.y, p.x, p.y) && area(p.prev, p, p.next) >= 0 {
			return false
		}
		p = p.prevZ

		if n.x >= x0 && n.x <= x1 && n.y >= y0 && n.y <= y1 && n != a && n != c &&
			pointInTriangle(a.x, a.y, b.x, b.y, c.x, c.y, n.x, n.y) && area(n.prev, n, n.next) >= 0 {
			return false
		}
		n = n.nextZ
	}

	for p != nil && p.z >= minZ {
		if p.x >= x0 && p.x <= x1 && p.y >= y0 && p.y <= y1 && p != a && p != c &&
			pointInTriangle(a.x, a.y, b.x, b.y, c.x, c.y, p.x, p.y) && area(p.prev, p, p.next) >= 0 {
			return false
		}
		p = p.prevZ
	}

	for n != nil && n.z <= maxZ {
		if n.x >= x0 && n.x <= x1 && n.y >= y0 && n.y <= y1 && n != a && n != c &&
			pointInTriangle(a.x, a.y, b.x, b.y, c.x, c.y, n.x, n.y) && area(n.prev, n, n.next) >= 0 {
			return false
		}
		n = n.nextZ
	}
	return true
}

// cureLocalIntersections 处理相邻边自交的局部情况。
func cureLocalIntersections(start *node, triangles *[]int) *node {
	p := start
	for {
		a := p.prev
		b := p.next.next

		if !equals(a, b) && intersects(a, p, p.next, b) && locallyInside(a, b) && locallyInside(b, a) {
			*triangles = append(*triangles, a.i, p.i, b.i)
			removeNode(p)
			removeNode(p.next)
			p = b
			start = b
		}
		p = p.next
		if p == start {
			break
		}
	}
	return filterPoints(p, nil)
}

// splitEarcut 在无法继续切耳时，寻找一条合法对角线把多边形一分为二。
func splitEarcut(start *node, triangles []int, minX, minY, invSize float64) []int {
	a := start
	for {
		for b := a.next.next; b != a.prev; b = b.next {
			if a.i != b.i && isValidDiagonal(a, b) {
				c := splitPolygon(a, b)

				a = filterPoints(a, a.next)
				c = filterPoints(c, c.next)

				triangles = earcutLinked(a, triangles, minX, minY, invSize, 0)
				triangles = earcutLinked(c, triangles, minX, minY, invSize, 0)
				return triangles
			}
		}
		a = a.next
		if a == start {
			return triangles
		}
	}
}

// eliminateHoles 将所有孔按最左顶点排序后依次桥接进外环。
func eliminateHoles(data []float64, holes []int, outer *node) *node {
	queue := make([]*node, 0, len(holes))
	for i, start := range holes {
		end := len(data) / 2
		if i < len(holes)-1 {
			end = holes[i+1]
		}
		list := linkedList(data, start, end, false)
		if list == nil {
			continue
		}
		if list == list.next {
			list.steiner = true
		}
		queue = append(queue, getLeftmost(list))
	}

	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if a.x != b.x {
			return a.x < b.x
		}
		if a.y != b.y {
			return a.y < b.y
		}
		return slope(a) < slope(b)
	})

	for _, h := range queue {
		outer = eliminateHole(h, outer)
	}
	return outer
}

func slope(n *node) float64 {
	return (n.next.y - n.y) / (n.next.x - n.x)
}

// eliminateHole 找到孔与外环之间的桥并连接。
func eliminateHole(hole, outer *node) *node {
	bridge := findHoleBridge(hole, outer)
	if bridge == nil {
		return outer
	}
	bridgeReverse := splitPolygon(bridge, hole)

	// filter collinear points around the cuts
	filterPoints(bridgeReverse, bridgeReverse.next)
	return filterPoints(bridge, bridge.next)
}

// findHoleBridge 使用 David Eberly 的算法寻找孔与外环之间的连接点。
func findHoleBridge(hole, outer *node) *node {
	p := outer
	hx, hy := hole.x, hole.y
	qx := math.Inf(-1)
	var m *node

	// find a segment intersected by a ray from the hole's leftmost point to the left;
	// segment's endpoint with lesser x will be potential connection point
	if equals(hole, p) {
		return p
	}
	for {
		if equals(hole, p.next) {
			return p.next
		}
		if hy <= p.y && hy >= p.next.y && p.next.y != p.y {
			x := p.x + (hy-p.y)*(p.next.x-p.x)/(p.next.y-p.y)
			if x <= hx && x > qx {
				qx = x
				if p.x < p.next.x {
					m = p
				} else {
					m = p.next
				}
				if x == hx {
					return m // hole touches outer segment; pick leftmost endpoint
				}
			}
		}
		p = p.next
		if p == outer {
			break
		}
	}

	if m == nil {
		return nil
	}

	// look for points inside the triangle of hole point, segment intersection and endpoint;
	// if there are no points found, we have a valid connection;
	// otherwise choose the point of the minimum angle with the ray as connection point
	stop := m
	mx, my := m.x, m.y
	tanMin := math.Inf(1)

	p = m
	for {
		var ax, cx float64
		if hy < my {
			ax, cx = hx, qx
		} else {
			ax, cx = qx, hx
		}
		if hx >= p.x && p.x >= mx && hx != p.x &&
			pointInTriangle(ax, hy, mx, my, cx, hy, p.x, p.y) {

			tan := math.Abs(hy-p.y) / (hx - p.x)

			if locallyInside(p, hole) &&
				(tan < tanMin || (tan == tanMin && (p.x > m.x || (p.x == m.x && sectorContainsSector(m, p))))) {
				m = p
				tanMin = tan
			}
		}
		p = p.next
		if p == stop {
			break
		}
	}
	return m
}

// sectorContainsSector 判断 m 处的扇区是否包含 p 处的扇区。
func sectorContainsSector(m, p *node) bool {
	return area(m.prev, m, p.prev) < 0 && area(p.next, m, m.next) < 0
}

// indexCurve 为每个节点计算 z-order 值并按其排序。
func indexCurve(start *node, minX, minY, invSize float64) {
	p := start
	for {
		if p.z == 0 {
			p.z = zOrder(p.x, p.y, minX, minY, invSize)
		}
		p.prevZ = p.prev
		p.nextZ = p.next
		p = p.next
		if p == start {
			break
		}
	}
	p.prevZ.nextZ = nil
	p.prevZ = nil

	sortLinked(p)
}

// sortLinked 对 z 链表做归并排序（Simon Tatham 的链表归并）。
func sortLinked(list *node) *node {
	inSize := 1
	for {
		p := list
		list = nil
		var tail *node
		numMerges := 0

		for p != nil {
			numMerges++
			q := p
			pSize := 0
			for i := 0; i < inSize; i++ {
				pSize++
				q = q.nextZ
				if q == nil {
					break
				}
			}
			qSize := inSize

			for pSize > 0 || (qSize > 0 && q != nil) {
				var e *node
				if pSize != 0 && (qSize == 0 || q == nil || p.z <= q.z) {
					e = p
					p = p.nextZ
					pSize--
				} else {
					e = q
					q = q.nextZ
					qSize--
				}

				if tail != nil {
					tail.nextZ = e
				} else {
					list = e
				}
				e.prevZ = tail
				tail = e
			}
			p = q
		}

		tail.nextZ = nil
		inSize *= 2

		if numMerges <= 1 {
			return list
		}
	}
}

// zOrder 计算点在 z-order 曲线上的位置（坐标先映射到 15 位整数）。
func zOrder(x, y, minX, minY, invSize float64) int32 {
	ix := int32((x - minX) * invSize)
	iy := int32((y - minY) * invSize)

	ix = (ix | (ix << 8)) & 0x00FF00FF
	ix = (ix | (ix << 4)) & 0x0F0F0F0F
	ix = (ix | (ix << 2)) & 0x33333333
	ix = (ix | (ix << 1)) & 0x55555555

	iy = (iy | (iy << 8)) & 0x00FF00FF
	iy = (iy | (iy << 4)) & 0x0F0F0F0F
	iy = (iy | (iy << 2)) & 0x33333333
	iy = (iy | (iy << 1)) & 0x55555555

	return ix | (iy << 1)
}

// getLeftmost 返回环中最左（x 相同时取 y 最小）的节点。
func getLeftmost(start *node) *node {
	p := start
	leftmost := start
	for {
		if p.x < leftmost.x || (p.x == leftmost.x && p.y < leftmost.y) {
			leftmost = p
		}
		p = p.next
		if p == start {
			break
		}
	}
	return leftmost
}

func pointInTriangle(ax, ay, bx, by, cx, cy, px, py float64) bool {
	return (cx-px)*(ay-py) >= (ax-px)*(cy-py) &&
		(ax-px)*(by-py) >= (bx-px)*(ay-py) &&
		(bx-px)*(cy-py) >= (cx-px)*(by-py)
}

// isValidDiagonal 判断 a、b 之间的对角线是否位于多边形内部且不与边相交。
func isValidDiagonal(a, b *node) bool {
	return a.next.i != b.i && a.prev.i != b.i && !intersectsPolygon(a, b) &&
		(locallyInside(a, b) && locallyInside(b, a) && middleInside(a, b) &&
			(area(a.prev, a, b.prev) != 0 || area(a, b.prev, b) != 0) ||
			equals(a, b) && area(a.prev, a, a.next) > 0 && area(b.prev, b, b.next) > 0)
}

// area 返回三角形有向面积的两倍（符号约定与外环方向一致）。
func area(p, q, r *node) float64 {
	return (q.y-p.y)*(r.x-q.x) - (q.x-p.x)*(r.y-q.y)
}

func equals(p1, p2 *node) bool {
	return p1.x == p2.x && p1.y == p2.y
}

// intersects 判断线段 p1q1 与 p2q2 是否相交。
func intersects(p1, q1, p2, q2 *node) bool {
	o1 := sign(area(p1, q1, p2))
	o2 := sign(area(p1, q1, q2))
	o3 := sign(area(p2, q2, p1))
	o4 := sign(area(p2, q2, q1))

	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if o2 == 0 && onSegment(p1, q2, q1) {
		return true
	}
	if o3 == 0 && onSegment(p2, p1, q2) {
		return true
	}
	if o4 == 0 && onSegment(p2, q1, q2) {
		return true
	}
	return false
}

// onSegment 对共线的 p、q、r 判断 q 是否落在线段 pr 上。
func onSegment(p, q, r *node) bool {
	return q.x <= math.Max(p.x, r.x) && q.x >= math.Min(p.x, r.x) &&
		q.y <= math.Max(p.y, r.y) && q.y >= math.Min(p.y, r.y)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func intersectsPolygon(a, b *node) bool {
	p := a
	for {
		if p.i != a.i && p.next.i != a.i && p.i != b.i && p.next.i != b.i &&
			intersects(p, p.next, a, b) {
			return true
		}
		p = p.next
		if p == a {
			break
		}
	}
	return false
}

func locallyInside(a, b *node) bool {
	if area(a.prev, a, a.next) < 0 {
		return area(a, b, a.next) >= 0 && area(a, a.prev, b) >= 0
	}
	return area(a, b, a.prev) < 0 || area(a, a.next, b) < 0
}

// middleInside 判断对角线中点是否在多边形内部（射线法）。
func middleInside(a, b *node) bool {
	p := a
	inside := false
	px := (a.x + b.x) / 2
	py := (a.y + b.y) / 2
	for {
		if (p.y > py) != (p.next.y > py) && p.next.y != p.y &&
			px < (p.next.x-p.x)*(py-p.y)/(p.next.y-p.y)+p.x {
			inside = !inside
		}
		p = p.next
		if p == a {
			break
		}
	}
	return inside
}

// splitPolygon 用对角线 a-b 把多边形拆成两个，返回新环上的节点。
// 复制 a、b 两个节点，因此原有链表结构保持合法。
func splitPolygon(a, b *node) *node {
	a2 := &node{i: a.i, x: a.x, y: a.y}
	b2 := &node{i: b.i, x: b.x, y: b.y}
	an := a.next
	bp := b.prev

	a.next = b
	b.prev = a

	a2.next = an
	an.prev = a2

	b2.next = a2
	a2.prev = b2

	bp.next = b2
	b2.prev = bp

	return b2
}

func insertNode(i int, x, y float64, last *node) *node {
	p := &node{i: i, x: x, y: y}
	if last == nil {
		p.prev = p
		p.next = p
	} else {
		p.next = last.next
		p.prev = last
		last.next.prev = p
		last.next = p
	}
	return p
}

func removeNode(p *node) {
	p.next.prev = p.prev
	p.prev.next = p.next

	if p.prevZ != nil {
		p.prevZ.nextZ = p.nextZ
	}
	if p.nextZ != nil {
		p.nextZ.prevZ = p.prevZ
	}
}

func signedArea(data []float64, start, end int) float64 {
	var sum float64
	for i, j := start, end-1; i < end; i++ {
		sum += (data[j*2] - data[i*2]) * (data[i*2+1] + data[j*2+1])
		j = i
	}
	return sum
}

// Deviation 返回三角剖分面积与多边形面积的相对误差，0 表示完全覆盖。
// 图层构建用它检查剖分质量，结果写入调试输出。
func Deviation(vertices []float64, holes []int, triangles []int) float64 {
	outerLen := len(vertices) / 2
	if len(holes) > 0 {
		outerLen = holes[0]
	}

	polygonArea := math.Abs(signedArea(vertices, 0, outerLen))
	for i, start := range holes {
		end := len(vertices) / 2
		if i < len(holes)-1 {
			end = holes[i+1]
		}
		polygonArea -= math.Abs(signedArea(vertices, start, end))
	}

	var trianglesArea float64
	for i := 0; i+2 < len(triangles); i += 3 {
		a := triangles[i] * 2
		b := triangles[i+1] * 2
		c := triangles[i+2] * 2
		trianglesArea += math.Abs(
			(vertices[a]-vertices[c])*(vertices[b+1]-vertices[a+1]) -
				(vertices[a]-vertices[b])*(vertices[c+1]-vertices[a+1]))
	}

	if polygonArea == 0 && trianglesArea == 0 {
		return 0
	}
	return math.Abs((trianglesArea - polygonArea) / polygonArea)
}
