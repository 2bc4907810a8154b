// cmd/rsictl is the operator CLI: one-off analysis, scans, trades and
// settings against the same store and history the services use.
package main

import (
	"fmt"
	"os"
)

func main() {
	root, closeApp := newRootCmd()
	err := root.Execute()
	closeApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
