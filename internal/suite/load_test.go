package suite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSuite(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	s, err := Load("testdata/passing.yaml")
	require.NoError(t, err)

	assert.Equal(t, "passing", s.Name)
	assert.Equal(t, "testdata/passing.yaml", s.Path)
	require.Len(t, s.Tests, 2)
	assert.Equal(t, StyleClassic, s.Tests[0].style())
	assert.Equal(t, StyleInverted, s.Tests[1].style())

	steps := s.Tests[0].Steps
	require.Len(t, steps, 5)
	assert.Equal(t, "plan", steps[0].Kind())
	assert.Equal(t, 3, steps[0].Plan)
	assert.Equal(t, "is", steps[1].Kind())
	assert.Equal(t, "lists match", steps[2].Alike.Message)
	assert.Equal(t, "test", s.Tests[1].Steps[1].Kind())
	assert.Equal(t, "child", s.Tests[1].Steps[1].Test.Name)
}

func TestLoad_CUE(t *testing.T) {
	s, err := Load("testdata/arithmetic.cue")
	require.NoError(t, err)

	assert.Equal(t, "arithmetic", s.Name)
	require.Len(t, s.Tests, 1)
	require.Len(t, s.Tests[0].Steps, 5)
	assert.Equal(t, "comment", s.Tests[0].Steps[3].Kind())
	assert.Equal(t, "halfway", *s.Tests[0].Steps[3].Comment)
}

func TestLoad_Positions(t *testing.T) {
	s, err := Load("testdata/failing.yaml")
	require.NoError(t, err)

	compares := s.Tests[0]
	assert.Equal(t, Position{Line: 3, Column: 5}, compares.Pos)
	assert.Equal(t, Position{Line: 5, Column: 9}, compares.Steps[0].Pos)
	assert.Equal(t, Position{Line: 6, Column: 9}, compares.Steps[1].Pos)

	nested := compares.Steps[1].Test
	require.NotNil(t, nested)
	assert.Equal(t, Position{Line: 7, Column: 11}, nested.Pos)
	assert.Equal(t, Position{Line: 9, Column: 15}, nested.Steps[0].Pos)
}

func TestLoad_NullPlan(t *testing.T) {
	for _, doc := range []string{"plan: ~", "plan: null", "plan:"} {
		path := writeSuite(t, "s.yaml", "name: x\ntests:\n  - steps:\n      - "+doc+"\n      - end: true\n")
		s, err := Load(path)
		require.NoError(t, err, doc)

		step := s.Tests[0].Steps[0]
		assert.Nil(t, step.Plan, doc)
		assert.Equal(t, "plan", step.Kind(), doc)
	}
}

func TestLoad_CUEPositions(t *testing.T) {
	path := writeSuite(t, "s.cue", "name: \"x\"\ntests: [{\n\tname: \"t\"\n\tsteps: [\n\t\t{plan: null},\n\t\t{end: true},\n\t]\n}]\n")
	s, err := Load(path)
	require.NoError(t, err)

	steps := s.Tests[0].Steps
	require.Len(t, steps, 2)
	assert.Equal(t, "plan", steps[0].Kind(), "null plan survives the CUE export")
	assert.Equal(t, 5, steps[0].Pos.Line)
	assert.Equal(t, 6, steps[1].Pos.Line)
	assert.Equal(t, 2, s.Tests[0].Pos.Line)
}

func TestLoad_JSON(t *testing.T) {
	path := writeSuite(t, "s.json", `{"name": "json", "tests": [{"name": "t", "steps": [{"pass": ""}, {"end": true}]}]}`)
	s, err := Load(path)
	require.NoError(t, err)
	require.Len(t, s.Tests[0].Steps, 2)
	assert.Equal(t, "pass", s.Tests[0].Steps[0].Kind())
}

func TestLoad_Errors(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		content string
		code    string
	}{
		{"unknown yaml field", "s.yaml", "name: x\nbogus: 1\ntests: []\n", ErrCodeParse},
		{"unknown step field", "s.yaml", "name: x\ntests:\n  - steps:\n      - nope: 1\n", ErrCodeParse},
		{"empty file", "s.yaml", "", ErrCodeParse},
		{"missing name", "s.yaml", "tests:\n  - steps: [{end: true}]\n", ErrCodeInvalid},
		{"no tests", "s.yaml", "name: x\ntests: []\n", ErrCodeInvalid},
		{"two actions", "s.yaml", "name: x\ntests:\n  - steps:\n      - {pass: a, end: true}\n", ErrCodeInvalid},
		{"no action", "s.yaml", "name: x\ntests:\n  - steps:\n      - {end: false}\n", ErrCodeInvalid},
		{"bad style", "s.yaml", "name: x\ntests:\n  - style: sideways\n    steps: []\n", ErrCodeInvalid},
		{"bad timeout", "s.yaml", "name: x\ntests:\n  - timeout: soon\n    steps: []\n", ErrCodeInvalid},
		{"inverted panic", "s.yaml", "name: x\ntests:\n  - style: inverted\n    steps: [{panic: boom}]\n", ErrCodeInvalid},
		{"nested invalid", "s.yaml", "name: x\ntests:\n  - steps:\n      - test: {steps: [{sleep: forever}]}\n", ErrCodeInvalid},
		{"cue syntax", "s.cue", "name: \n", ErrCodeParse},
		{"cue closed schema", "s.cue", "name: \"x\"\nextra: 1\ntests: []\n", ErrCodeSchema},
		{"cue bad style", "s.cue", "name: \"x\"\ntests: [{style: \"sideways\", steps: []}]\n", ErrCodeSchema},
		{"extension", "s.toml", "name = 'x'\n", ErrCodeUnsupported},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeSuite(t, tc.file, tc.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.True(t, IsLoadError(err, tc.code), "got %v", err)
			assert.Contains(t, err.Error(), tc.code)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, IsLoadError(err, ErrCodeRead))
}

func TestLoadError_Format(t *testing.T) {
	err := &LoadError{Path: "a.yaml", Code: ErrCodeInvalid, Message: "name is required"}
	assert.Equal(t, "a.yaml: E_INVALID: name is required", err.Error())

	err = &LoadError{Code: ErrCodeParse, Message: "bad"}
	assert.Equal(t, "E_PARSE: bad", err.Error())
}

func TestStep_Kind(t *testing.T) {
	msg := "m"
	assert.Equal(t, "pass", Step{Pass: &msg}.Kind())
	assert.Equal(t, "plan", Step{Plan: 0}.Kind())
	assert.Equal(t, "sleep", Step{Sleep: "1ms"}.Kind())
	assert.Equal(t, "", Step{}.Kind())
	assert.Equal(t, "", Step{Pass: &msg, Fail: &msg}.Kind())
}
