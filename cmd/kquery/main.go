// Command kquery checks and evaluates queries over a versioned object store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/kquery/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "kquery: %v\n", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
