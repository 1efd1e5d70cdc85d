package main

import (
	"fmt"
	"os"

	"github.com/yungbote/alohomora/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "alohomora: %v\n", err)
		os.Exit(1)
	}
}
