package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aura-studio/hotqueue/internal/cli"
)

func main() {
	root := cli.NewRootCommand(os.Stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
