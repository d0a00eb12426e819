package suite

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

// Error codes for LoadError.
const (
	ErrCodeRead        = "E_READ"
	ErrCodeUnsupported = "E_UNSUPPORTED"
	ErrCodeParse       = "E_PARSE"
	ErrCodeSchema      = "E_SCHEMA"
	ErrCodeInvalid     = "E_INVALID"
)

//go:embed schema.cue
var schemaSource string

// LoadError describes a suite file that could not be loaded.
type LoadError struct {
	Path    string
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLoadError reports whether err is a LoadError with the given code.
func IsLoadError(err error, code string) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Code == code
}

// Load reads a suite from a .yaml, .yml, .json or .cue file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Code: ErrCodeRead, Message: err.Error()}
	}

	var s *Suite
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		s, err = decodeStrict(data)
	case ".cue":
		s, err = decodeCUE(path, data)
	default:
		return nil, &LoadError{Path: path, Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported suite file extension %q", filepath.Ext(path))}
	}
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
			return nil, le
		}
		return nil, &LoadError{Path: path, Code: ErrCodeParse, Message: err.Error()}
	}

	if err := Validate(s); err != nil {
		return nil, &LoadError{Path: path, Code: ErrCodeInvalid, Message: err.Error()}
	}
	s.Path = path
	return s, nil
}

// decodeStrict decodes YAML (or JSON) and rejects unknown fields.
func decodeStrict(data []byte) (*Suite, error) {
	var s Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Code: ErrCodeParse, Message: "empty suite file"}
		}
		return nil, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("failed to parse suite: %v", err)}
	}
	annotateYAML(data, &s)
	return &s, nil
}

// decodeCUE compiles a CUE suite, checks it against the suite schema and
// decodes the concrete result with the same strict decoder as YAML.
func decodeCUE(path string, data []byte) (*Suite, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling suite schema: %w", err)
	}

	source := ctx.CompileBytes(data, cue.Filename(path))
	if err := source.Err(); err != nil {
		return nil, cueLoadError(ErrCodeParse, err)
	}

	v := schema.LookupPath(cue.ParsePath("#Suite")).Unify(source)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeSchema, err)
	}

	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, cueLoadError(ErrCodeSchema, err)
	}
	s, err := decodeStrict(raw)
	if err != nil {
		return nil, err
	}
	// positions from the exported JSON are meaningless; take the CUE ones
	annotateCUE(source, s)
	return s, nil
}

// cueLoadError keeps the position of the first CUE error.
func cueLoadError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: err.Error()}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return le
	}
	le.Message = errs[0].Error()
	if positions := cueerrors.Positions(errs[0]); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

// Validate checks the structure a suite needs before it can run.
func Validate(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Tests) == 0 {
		return fmt.Errorf("tests list is required and must be non-empty")
	}
	for i, def := range s.Tests {
		if err := validateTest(def); err != nil {
			return fmt.Errorf("tests[%d]: %w", i, err)
		}
	}
	return nil
}

func validateTest(def TestDef) error {
	switch def.Style {
	case "", StyleClassic, StyleInverted:
	default:
		return fmt.Errorf("style %q must be %q or %q", def.Style, StyleClassic, StyleInverted)
	}
	if _, err := def.timeout(); err != nil {
		return fmt.Errorf("timeout %q: %w", def.Timeout, err)
	}
	for i, step := range def.Steps {
		kind := step.Kind()
		if kind == "" {
			return fmt.Errorf("steps[%d]: exactly one action is required", i)
		}
		switch kind {
		case "panic":
			if def.style() == StyleInverted {
				return fmt.Errorf("steps[%d]: panic is only supported in %s tests", i, StyleClassic)
			}
		case "sleep":
			if _, err := parseSleep(step.Sleep); err != nil {
				return fmt.Errorf("steps[%d]: sleep %q: %w", i, step.Sleep, err)
			}
		case "test":
			if err := validateTest(*step.Test); err != nil {
				return fmt.Errorf("steps[%d].test: %w", i, err)
			}
		}
	}
	return nil
}
