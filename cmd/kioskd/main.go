// Command kioskd runs a site attendance terminal.
package main

import (
	"fmt"
	"os"

	"github.com/sitepulse/kioskd/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
