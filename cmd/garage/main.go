package main

import (
	"fmt"
	"os"

	"garage-backend-go/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand(nil)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
