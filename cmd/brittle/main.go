// Command brittle runs declarative test suites and prints TAP.
package main

import (
	"os"

	"github.com/roach88/brittle/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
