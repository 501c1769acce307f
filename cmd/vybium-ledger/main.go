package main

import (
	"fmt"
	"os"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
