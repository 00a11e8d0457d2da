// Command gitflow automates a git-flow branching model on top of git and GitHub.
package main

import (
	"context"
	"os"
	"os/signal"

	"gitflow/internal/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := commands.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
