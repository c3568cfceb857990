// Command evpatch patches compiled event scripts from a declarative
// configuration.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/evpatch/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
