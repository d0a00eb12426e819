package suite

import (
	"cuelang.org/go/cue"
	"gopkg.in/yaml.v3"
)

// Position is a 1-based line and column in a suite file. The zero value
// means unknown.
type Position struct {
	Line   int
	Column int
}

// annotateYAML records where each test and step is declared, and which
// steps carry a plan key. data has already been decoded into s.
func annotateYAML(data []byte, s *Suite) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return
	}
	tests := mappingValue(doc.Content[0], "tests")
	if tests == nil || tests.Kind != yaml.SequenceNode {
		return
	}
	for i, n := range tests.Content {
		if i >= len(s.Tests) {
			break
		}
		annotateTestYAML(n, &s.Tests[i])
	}
}

func annotateTestYAML(n *yaml.Node, def *TestDef) {
	n = resolve(n)
	def.Pos = Position{Line: n.Line, Column: n.Column}

	steps := mappingValue(n, "steps")
	if steps == nil || steps.Kind != yaml.SequenceNode {
		return
	}
	for i, sn := range steps.Content {
		if i >= len(def.Steps) {
			break
		}
		sn = resolve(sn)
		step := &def.Steps[i]
		step.Pos = Position{Line: sn.Line, Column: sn.Column}
		step.hasPlan = mappingValue(sn, "plan") != nil
		if tn := mappingValue(sn, "test"); tn != nil && step.Test != nil {
			annotateTestYAML(tn, step.Test)
		}
	}
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// mappingValue returns the value node for key, or nil.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	n = resolve(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return resolve(n.Content[i+1])
		}
	}
	return nil
}

// annotateCUE replaces test and step positions with those of the CUE
// source value.
func annotateCUE(v cue.Value, s *Suite) {
	iter, err := v.LookupPath(cue.ParsePath("tests")).List()
	if err != nil {
		return
	}
	for i := 0; i < len(s.Tests) && iter.Next(); i++ {
		annotateTestCUE(iter.Value(), &s.Tests[i])
	}
}

func annotateTestCUE(v cue.Value, def *TestDef) {
	def.Pos = cuePosition(v)
	iter, err := v.LookupPath(cue.ParsePath("steps")).List()
	if err != nil {
		return
	}
	for i := 0; i < len(def.Steps) && iter.Next(); i++ {
		sv := iter.Value()
		step := &def.Steps[i]
		step.Pos = cuePosition(sv)
		if tv := sv.LookupPath(cue.ParsePath("test")); tv.Exists() && step.Test != nil {
			annotateTestCUE(tv, step.Test)
		}
	}
}

func cuePosition(v cue.Value) Position {
	p := v.Pos()
	if !p.IsValid() {
		return Position{}
	}
	return Position{Line: p.Line(), Column: p.Column()}
}
