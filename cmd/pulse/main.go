// Command pulse drives fixed-rate timing engines and inspects their telemetry.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pulse/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pulse:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
