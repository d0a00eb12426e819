package harness

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/roach88/brittle/internal/tap"
)

const maxStackDepth = 64

// harnessPrefix is the qualified-name prefix shared by every function in
// this package, e.g. "github.com/roach88/brittle/internal/harness.".
var harnessPrefix = reflect.TypeOf(Status(0)).PkgPath() + "."

// captureDiagnostics records the call site and stack of a failure. It must
// run on the failing goroutine before the stack unwinds.
//
// Leading harness frames are skipped. The first harness frame after a user
// frame is the scheduler boundary and ends the stack. method is the name
// of the harness method the user called; it locates the column.
func captureDiagnostics(method string) *Diagnostics {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var (
		lines      []string
		at         *tap.Location
		collecting bool
	)
	for {
		f, more := frames.Next()
		if isHarnessFrame(f) {
			if collecting {
				break
			}
		} else {
			collecting = true
			file := displayPath(f.File)
			if at == nil && !isRuntimeFrame(f) {
				at = &tap.Location{File: file, Line: f.Line, Column: column(f.File, f.Line, method)}
			}
			lines = append(lines, fmt.Sprintf("%s (%s:%d)", f.Function, file, f.Line))
		}
		if !more {
			break
		}
	}

	d := &Diagnostics{Stack: strings.Join(lines, "\n")}
	if at != nil {
		d.At = *at
	}
	return d
}

// diagnose captures the diagnostics of a failure on t, preferring the
// declared source when one is set.
func (t *T) diagnose(method string) *Diagnostics {
	t.mu.Lock()
	src := t.source
	t.mu.Unlock()
	if src != nil {
		return &Diagnostics{At: src.At, Stack: src.Stack}
	}
	return captureDiagnostics(method)
}

func isHarnessFrame(f runtime.Frame) bool {
	return strings.HasPrefix(f.Function, harnessPrefix) && !strings.HasSuffix(f.File, "_test.go")
}

func isRuntimeFrame(f runtime.Frame) bool {
	return strings.HasPrefix(f.Function, "runtime.")
}

// displayPath shortens paths below the working directory.
func displayPath(file string) string {
	wd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(file)
	}
	rel, err := filepath.Rel(wd, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(file)
	}
	return filepath.ToSlash(rel)
}

// column returns the 1-based column of method's name on the given line,
// falling back to the first non-blank column, or 1 if the source is
// unreadable.
func column(file string, line int, method string) int {
	text, ok := sourceLine(file, line)
	if !ok {
		return 1
	}
	if method != "" {
		if idx := strings.Index(text, "."+method+"("); idx >= 0 {
			return idx + 2
		}
		if idx := strings.Index(text, method+"("); idx >= 0 {
			return idx + 1
		}
	}
	if idx := strings.IndexFunc(text, func(r rune) bool { return r != ' ' && r != '\t' }); idx >= 0 {
		return idx + 1
	}
	return 1
}

func sourceLine(file string, line int) (string, bool) {
	f, err := os.Open(file)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for n := 1; scanner.Scan(); n++ {
		if n == line {
			return scanner.Text(), true
		}
	}
	return "", false
}
