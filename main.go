// ./main.go
package main

import (
	"github.com/xkilldash9x/quill-cli/cmd"
)

// main is the entry point for the Quill CLI application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
