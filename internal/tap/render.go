package tap

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Version is the TAP version line that opens every report.
const Version = "TAP version 13"

const indentUnit = "    "

// WriteHeader writes the version line.
func WriteHeader(w io.Writer) error {
	_, err := io.WriteString(w, Version+"\n")
	return err
}

// WriteTest writes one top-level test block, preceded by a blank line.
// number is the test's 1-based position among top-level tests.
func WriteTest(w io.Writer, number int, t *Test) error {
	_, err := io.WriteString(w, "\n"+Render(number, t))
	return err
}

// WriteSummary writes the root plan line, the counters and the final verdict.
func WriteSummary(w io.Writer, count int, s Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n1..%d\n", count)
	fmt.Fprintf(&b, "# tests = %d/%d pass\n", s.TestsPassed, s.TestsTotal)
	fmt.Fprintf(&b, "# asserts = %d/%d pass\n", s.AssertsPassed, s.AssertsTotal)
	fmt.Fprintf(&b, "# time = %s\n", FormatElapsed(s.Elapsed))
	if s.Ok() {
		b.WriteString("\n# ok\n")
	} else {
		b.WriteString("\n# not ok\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Document renders a complete report for the given top-level tests.
func Document(tests []*Test, s Summary) string {
	var b strings.Builder
	_ = WriteHeader(&b)
	for i, t := range tests {
		_ = WriteTest(&b, i+1, t)
	}
	_ = WriteSummary(&b, len(tests), s)
	return b.String()
}

// Render returns the block for a top-level test: its comment line, its
// entries, its plan line, its children and its rollup line. Rendering is a
// pure function of the snapshot.
func Render(number int, t *Test) string {
	var b strings.Builder
	renderBlock(&b, number, t, 1)
	return b.String()
}

// FormatElapsed renders a duration in milliseconds with six fractional digits.
func FormatElapsed(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 6, 64) + "ms"
}

func renderBlock(b *strings.Builder, number int, t *Test, depth int) {
	outer := strings.Repeat(indentUnit, depth-1)
	inner := strings.Repeat(indentUnit, depth)

	b.WriteString(outer + "# " + clean(t.Name) + "\n")

	n := 0
	for _, e := range t.Entries {
		if e.Assertion == nil {
			b.WriteString(inner + "# " + clean(e.Comment) + "\n")
			continue
		}
		n++
		b.WriteString(inner + resultLine(e.Assertion.Ok, n, e.Assertion.Message) + "\n")
		if e.Assertion.Diagnostic != nil {
			writeDiagnostic(b, inner+"  ", e.Assertion.Diagnostic)
		}
	}
	fmt.Fprintf(b, "%s1..%d\n", inner, t.PlanCount())

	for i, c := range t.Children {
		renderBlock(b, i+1, c, depth+1)
	}

	b.WriteString(outer + resultLine(t.Ok, number, t.Name) + " # time = " + FormatElapsed(t.Elapsed) + "\n")
	if t.Failure != nil {
		writeDiagnostic(b, outer+"  ", t.Failure)
	}
}

func resultLine(ok bool, n int, description string) string {
	status := "ok"
	if !ok {
		status = "not ok"
	}
	description = escape(clean(description))
	if description == "" {
		return fmt.Sprintf("%s %d", status, n)
	}
	return fmt.Sprintf("%s %d - %s", status, n, description)
}

// clean NFC-normalises s and folds line breaks so it fits on one TAP line.
func clean(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}

// escape protects '#' so descriptions are not read as directives.
func escape(s string) string {
	return strings.ReplaceAll(s, "#", `\#`)
}

func writeDiagnostic(b *strings.Builder, indent string, d *Diagnostic) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(diagnosticNode(d)); err != nil {
		buf.Reset()
		buf.WriteString("operator: " + d.Operator + "\n")
	}
	_ = enc.Close()

	b.WriteString(indent + "---\n")
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		b.WriteString(indent + line + "\n")
	}
	b.WriteString(indent + "...\n")
}

func diagnosticNode(d *Diagnostic) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, value *yaml.Node) {
		m.Content = append(m.Content, strNode(key), value)
	}

	add("operator", strNode(d.Operator))
	if d.Message != "" {
		add("message", strNode(d.Message))
	}
	if d.HasComparison {
		add("expected", valueNode(d.Expected))
		add("actual", valueNode(d.Actual))
	}
	if d.At != nil {
		at := &yaml.Node{Kind: yaml.MappingNode}
		at.Content = append(at.Content,
			strNode("line"), intNode(d.At.Line),
			strNode("column"), intNode(d.At.Column),
			strNode("file"), strNode(d.At.File),
		)
		add("at", at)
	}
	if d.Stack != "" {
		add("stack", &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Style: yaml.LiteralStyle,
			Value: strings.TrimRight(d.Stack, "\n") + "\n",
		})
	}
	return m
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func intNode(n int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(n)}
}

// valueNode encodes plain data with yaml.v3 and anything else with %#v.
func valueNode(v any) (n *yaml.Node) {
	if !plainData(reflect.ValueOf(v)) {
		return strNode(fmt.Sprintf("%#v", v))
	}
	defer func() {
		if recover() != nil {
			n = strNode(fmt.Sprintf("%#v", v))
		}
	}()
	n = &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return strNode(fmt.Sprintf("%#v", v))
	}
	return n
}

func plainData(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !plainData(v.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return false
		}
		iter := v.MapRange()
		for iter.Next() {
			if !plainData(iter.Value()) {
				return false
			}
		}
		return true
	case reflect.Interface, reflect.Pointer:
		return v.IsNil() || plainData(v.Elem())
	default:
		return false
	}
}
