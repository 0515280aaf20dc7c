// The main package for the blogpipe executable.
package main

import (
	"github.com/pybitesdata/blogpipe/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
