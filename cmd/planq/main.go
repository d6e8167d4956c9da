// Command planq validates and executes semantic query plans.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/planq/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "planq:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
