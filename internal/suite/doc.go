// Package suite loads declarative test suites from YAML, JSON or CUE files
// and runs them through a harness.
//
// A suite lists tests; each test is a sequence of steps, one action per
// step:
//
//	name: arithmetic
//	tests:
//	  - name: plan must be positive
//	    steps:
//	      - plan: -1
//	      - pass: passed
//	      - end: true
//
// YAML and JSON are decoded strictly; unknown fields are rejected. CUE files
// are checked against the embedded schema.cue before decoding.
package suite
