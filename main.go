// The main package for the boamp-console executable.
package main

import (
	"github.com/JakeFAU/boamp-console/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
