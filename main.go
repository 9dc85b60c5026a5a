// The main package for the sourcescout executable.
package main

import (
	"github.com/refhq/sourcescout/cmd"
)

func main() {
	cmd.Execute()
}
