// Command relaykv stores key-value histories on relays.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/relaykv/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "relaykv: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
