package main

import (
	"fmt"
	"os"

	"blobsync/cmd/bsync/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌ Error:", err)
		os.Exit(commands.ExitCode(err))
	}
}
