// Command recalc plans derived attribute recomputation.
//
// Usage:
//
//	recalc validate ./schema
//	recalc apply --db ./recalc.db --data ./data.yaml ./schema
//	recalc cascade --db ./recalc.db --collection C4 --attribute a4 --ids d4
package main

import (
	"fmt"
	"os"

	"github.com/roach88/recalc/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
