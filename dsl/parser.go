package dsl

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var (
	dslLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Whitespace", Pattern: `[ \t\r]+`},
		{Name: "Newline", Pattern: `\n+`},
		{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
		{Name: "LineComment", Pattern: `//[^\n]*`},
		{Name: "HashComment", Pattern: `#[^\n]*`},
		{Name: "Number", Pattern: `[-+]?(?:\d+\.\d*|\.\d+|\d+)(?:mm|cm|in|pt|px)?`},
		{Name: "String", Pattern: `"(?:\\.|[^"])*"`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.-]*`},
		{Name: "Symbol", Pattern: `[][,;:]`},
		{Name: "LBrace", Pattern: `{`},
		{Name: "RBrace", Pattern: `}`},
	})

	fileParser = participle.MustBuild[File](
		participle.Lexer(dslLexer),
		participle.Unquote("String"),
		participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
	)
)

// File is the root AST node of a layer rule file.
type File struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Sections []*Section     `parser:"Newline* ( @@ Newline* )*"`
}

// Section is either the global options block or a layer rule.
type Section struct {
	Options *OptionsSection `parser:"  @@"`
	Layer   *LayerSection   `parser:"| @@"`
}

// Kind returns the human-readable section type.
func (s *Section) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Options != nil:
		return "options"
	case s.Layer != nil:
		return "layer"
	default:
		return "unknown"
	}
}

// OptionsSection holds conversion-wide settings (tolerance, unit, precision).
type OptionsSection struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Block *Block         `parser:"'options' Newline* @@"`
}

// LayerSection declares one output layer; the quoted names are the group
// identifiers it resolves to, the first one naming the layer.
type LayerSection struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Names []string       `parser:"'layer' @String+"`
	Block *Block         `parser:"Newline* @@"`
}

// Name returns the primary layer name.
func (l *LayerSection) Name() string {
	if len(l.Names) == 0 {
		return ""
	}
	return l.Names[0]
}

// Block is a delimited list of assignments.
type Block struct {
	Assignments []*Assignment `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Lookup returns the last assignment for key.
func (b *Block) Lookup(key string) (*Assignment, bool) {
	if b == nil {
		return nil, false
	}
	for i := len(b.Assignments) - 1; i >= 0; i-- {
		if b.Assignments[i].Key == key {
			return b.Assignments[i], true
		}
	}
	return nil, false
}

// Assignment uses colon syntax (key: value).
type Assignment struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Key   string         `parser:"@Ident ':'"`
	Value *Value         `parser:"Newline* @@"`
}

// Value represents a scalar or list property value.
type Value struct {
	String *string     `parser:"  @String"`
	Number *string     `parser:"| @Number"`
	Ident  *string     `parser:"| @Ident"`
	Array  *ArrayValue `parser:"| @@"`
}

// ArrayValue captures `[ ... ]` lists.
type ArrayValue struct {
	Values []*Value `parser:"'[' Newline* ( @@ ( ',' Newline* @@ )* )? Newline* ']'"`
}

// Raw returns the source text of a scalar value; lists are joined with ", ".
func (v *Value) Raw() string {
	switch {
	case v == nil:
		return ""
	case v.String != nil:
		return *v.String
	case v.Number != nil:
		return *v.Number
	case v.Ident != nil:
		return *v.Ident
	case v.Array != nil:
		parts := make([]string, 0, len(v.Array.Values))
		for _, item := range v.Array.Values {
			parts = append(parts, item.Raw())
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// Strings flattens a string or list value into a slice.
func (v *Value) Strings() []string {
	if v == nil {
		return nil
	}
	if v.Array == nil {
		return []string{v.Raw()}
	}
	out := make([]string, 0, len(v.Array.Values))
	for _, item := range v.Array.Values {
		out = append(out, item.Strings()...)
	}
	return out
}

// Errorf formats an error prefixed with the assignment position.
func (a *Assignment) Errorf(format string, args ...any) error {
	return fmt.Errorf("%d:%d: %s: %s", a.Pos.Line, a.Pos.Column, a.Key, fmt.Sprintf(format, args...))
}

// Parse parses a rule file from an io.Reader.
func Parse(r io.Reader) (*File, error) {
	return fileParser.Parse("", r)
}

// ParseString parses a rule file from a string.
func ParseString(input string) (*File, error) {
	return fileParser.ParseString("", input)
}
