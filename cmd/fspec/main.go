package main

import (
	"os"

	"github.com/Iron-Ham/fspec/internal/cmd"
)

func main() {
	os.Exit(cmd.Report(os.Stderr, cmd.Execute()))
}
