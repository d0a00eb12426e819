package harness

import "github.com/roach88/brittle/internal/tap"

// Process exit codes for a run.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// ResolveExit returns ExitSuccess when every node of every tree is ok and
// ExitFailure otherwise.
func ResolveExit(tests []*tap.Test) int {
	code := ExitSuccess
	for _, t := range tests {
		t.Walk(func(n *tap.Test) {
			if !n.Ok {
				code = ExitFailure
			}
		})
	}
	return code
}
