package dsl_test

import (
	"strings"
	"testing"

	"github.com/ByLCY/svg2gerber/dsl"
)

const sampleRules = `
# board conversion rules
options { tolerance: 0.05  unit: mm  precision: 3 }

layer "Edge.Cuts" "Edgecuts" {
  suffix: "-Edge_Cuts.gm1"
  mode: contour
  aperture: 0.01mm
}

// silkscreen is filled
layer "F.SilkS" "Silkscreen" { suffix: "-F_SilkS.gto"; mode: fill; polarity: dark }

layer "F.Cu"
{
  aliases: ["Top Copper", "Front Copper",
            "Copper"]
  suffix: "${base}.gtl"
  mode: fill
}
`

func TestParseRuleFile(t *testing.T) {
	file, err := dsl.ParseString(sampleRules)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(file.Sections) != 4 {
		t.Fatalf("expected 4 sections, got %d", len(file.Sections))
	}

	opts := file.Sections[0]
	if opts.Kind() != "options" {
		t.Fatalf("expected options section, got %s", opts.Kind())
	}
	if a, ok := opts.Options.Block.Lookup("precision"); !ok || a.Value.Raw() != "3" {
		t.Fatalf("expected precision 3, got %#v", a)
	}
	if a, ok := opts.Options.Block.Lookup("unit"); !ok || a.Value.Ident == nil || *a.Value.Ident != "mm" {
		t.Fatalf("expected unit ident mm, got %#v", a)
	}

	edge := file.Sections[1].Layer
	if edge == nil || edge.Name() != "Edge.Cuts" || len(edge.Names) != 2 || edge.Names[1] != "Edgecuts" {
		t.Fatalf("unexpected edge layer %#v", edge)
	}
	if a, _ := edge.Block.Lookup("suffix"); a.Value.Raw() != "-Edge_Cuts.gm1" {
		t.Fatalf("suffix must be unquoted, got %q", a.Value.Raw())
	}
	if a, _ := edge.Block.Lookup("aperture"); a.Value.Number == nil || *a.Value.Number != "0.01mm" {
		t.Fatalf("expected aperture number with unit, got %#v", a.Value)
	}

	silk := file.Sections[2].Layer
	if len(silk.Block.Assignments) != 3 {
		t.Fatalf("expected 3 assignments separated by ';', got %d", len(silk.Block.Assignments))
	}

	cu := file.Sections[3].Layer
	a, ok := cu.Block.Lookup("aliases")
	if !ok {
		t.Fatalf("aliases missing")
	}
	got := a.Value.Strings()
	if strings.Join(got, "|") != "Top Copper|Front Copper|Copper" {
		t.Fatalf("unexpected aliases %v", got)
	}
	if a.Pos.Line != 16 {
		t.Fatalf("expected aliases on line 16, got %d", a.Pos.Line)
	}
}

func TestParseRuleFileErrors(t *testing.T) {
	cases := []string{
		`layer { mode: fill }`,
		`layer "A" { mode fill }`,
		`options { tolerance: 0.1`,
		`unknown { }`,
	}
	for _, src := range cases {
		if _, err := dsl.ParseString(src); err == nil {
			t.Fatalf("expected error for %q", src)
		} else if !strings.Contains(err.Error(), ":") {
			t.Fatalf("error should carry a position: %v", err)
		}
	}
}

func TestAssignmentErrorfCarriesPosition(t *testing.T) {
	file, err := dsl.ParseString("layer \"A\" {\n  mode: spiral\n}\n")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	a, _ := file.Sections[0].Layer.Block.Lookup("mode")
	msg := a.Errorf("unknown mode %q", a.Value.Raw()).Error()
	if !strings.HasPrefix(msg, "2:3: mode:") {
		t.Fatalf("unexpected message %q", msg)
	}
}
