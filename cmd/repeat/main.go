package main

import (
	"context"
	"fmt"
	"os"

	"repeat/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "repeat: error:", err)
		os.Exit(1)
	}
}
