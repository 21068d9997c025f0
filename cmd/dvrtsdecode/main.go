// Command dvrtsdecode decodes a proprietary encrypted DVR container file
// into a standard MPEG transport stream.
package main

import (
	"os"

	"github.com/jmylchreest/dvrtsdecode/cmd/dvrtsdecode/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
