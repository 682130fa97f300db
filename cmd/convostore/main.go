package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lewisedginton/conversation_store/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.NewApp(version).RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
