package binding

import "testing"

func TestExpand(t *testing.T) {
	got, err := Expand("${base}-${ layer_file }.gbr", map[string]string{"base": "panel", "layer_file": "F_Cu"})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != "panel-F_Cu.gbr" {
		t.Fatalf("unexpected result %q", got)
	}

	if _, err := Expand("${missing}.gbr", map[string]string{}); err == nil {
		t.Fatalf("undefined variable must fail")
	}
	if got, _ := Expand("plain.gbr", nil); got != "plain.gbr" {
		t.Fatalf("text without placeholders must pass through, got %q", got)
	}
}

func TestOutputName(t *testing.T) {
	cases := []struct {
		input, layer, suffix, want string
	}{
		{"boards/frontpanel.svg", "Edge.Cuts", "-Edge_Cuts.gm1", "frontpanel-Edge_Cuts.gm1"},
		{"frontpanel.svg", "F.Cu", "${base}.gtl", "frontpanel.gtl"},
		{"a.b.svg", "Edge Cuts", "${layer_file}-${base}.gbr", "Edge_Cuts-a.b.gbr"},
	}
	for _, tc := range cases {
		got, err := OutputName(tc.input, tc.layer, tc.suffix)
		if err != nil {
			t.Fatalf("%s: %v", tc.suffix, err)
		}
		if got != tc.want {
			t.Fatalf("OutputName(%q, %q, %q) = %q, want %q", tc.input, tc.layer, tc.suffix, got, tc.want)
		}
	}
}
