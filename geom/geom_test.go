package geom

import (
	"math"
	"testing"
)

func TestDedupPointsCollapsesRuns(t *testing.T) {
	in := Segment{{0, 0}, {0, 0}, {1, 0}, {1, 0}, {1, 0}, {1, 1}, {0, 0}}
	got := DedupPoints(in)
	want := Segment{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	if len(got) != len(want) {
		t.Fatalf("expected %d points, got %d (%v)", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("point %d mismatch: got=%v want=%v", i, got[i], want[i])
		}
	}
}

// TestDedupPointsIdempotent 验证去重两次与一次结果一致。
func TestDedupPointsIdempotent(t *testing.T) {
	in := Segment{{1, 1}, {1, 1}, {2, 2}, {2, 2}, {3, 3}, {1, 1}, {1, 1}}
	once := DedupPoints(in)
	twice := DedupPoints(once)
	if len(once) != len(twice) {
		t.Fatalf("dedup is not idempotent: %v vs %v", once, twice)
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("point %d differs after second dedup", i)
		}
	}
}

func TestDedupPointsEmpty(t *testing.T) {
	if got := DedupPoints(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestOpenRing(t *testing.T) {
	closed := Segment{{0, 0}, {1, 0}, {1, 1}, {0, 0}}
	if got := OpenRing(closed); len(got) != 3 {
		t.Fatalf("expected closing point to be dropped, got %v", got)
	}
	open := Segment{{0, 0}, {1, 0}, {1, 1}}
	if got := OpenRing(open); len(got) != 3 {
		t.Fatalf("open ring must be kept as is, got %v", got)
	}
}

func TestBounds(t *testing.T) {
	minPt, maxPt, ok := Bounds([]Segment{{{1, 5}, {-2, 3}}, {{4, -1}}})
	if !ok {
		t.Fatalf("expected bounds")
	}
	if minPt != (Point{-2, -1}) || maxPt != (Point{4, 5}) {
		t.Fatalf("unexpected bounds min=%v max=%v", minPt, maxPt)
	}
	if _, _, ok := Bounds(nil); ok {
		t.Fatalf("empty input must report no bounds")
	}
}

// TestParseLength 覆盖常见 SVG 长度写法到 mm 的换算。
func TestParseLength(t *testing.T) {
	cases := []struct {
		in   string
		mm   float64
		unit Unit
	}{
		{"210mm", 210, UnitMM},
		{"2.54cm", 25.4, UnitCM},
		{"1in", 25.4, UnitIN},
		{"72pt", 25.4, UnitPT},
		{"96px", 25.4, UnitPX},
		{"96", 25.4, UnitNone},
	}
	for _, tc := range cases {
		l, ok := ParseLength(tc.in)
		if !ok {
			t.Fatalf("%s: parse failed", tc.in)
		}
		if l.Unit != tc.unit {
			t.Fatalf("%s: unit got=%v want=%v", tc.in, l.Unit, tc.unit)
		}
		if diff := math.Abs(l.ToMM() - tc.mm); diff > 1e-9 {
			t.Fatalf("%s: 转换为 mm 错误 got=%g want=%g", tc.in, l.ToMM(), tc.mm)
		}
	}
	for _, bad := range []string{"", "50%", "abc"} {
		if _, ok := ParseLength(bad); ok {
			t.Fatalf("%q should not parse", bad)
		}
	}
}
