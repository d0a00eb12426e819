// Package tap renders test results as TAP version 13.
//
// Each top-level test is written as a block: a "# name" header, its
// entries indented four spaces per nesting level, its plan line, the
// blocks of its children, and finally the rollup line at the parent's
// indentation:
//
//	# plan must be positive
//	    not ok 1 - plan takes a positive whole number only
//	      ---
//	      operator: plan
//	      at:
//	        line: 12
//	        column: 5
//	        file: plan_test.go
//	      ...
//	    ok 2 - passed
//	    1..2
//	not ok 1 - plan must be positive # time = 0.412000ms
//
// Failing assertions carry a YAML diagnostic block rendered with
// gopkg.in/yaml.v3. Descriptions are normalised to NFC and folded onto a
// single line.
//
// Rendering is pure: the same Test always produces the same text, so a
// report can be streamed by WriteTest as tests finish and rebuilt later by
// Document from stored results.
package tap
