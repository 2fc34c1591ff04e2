// Command orrery animates orbital element sets around a central body and
// lets a mouse-driven orbit camera look around them, in a terminal, a
// browser feed or a PNG snapshot.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
