// Command journal ingests trade-event documents and produces the options
// trading journal from the command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
