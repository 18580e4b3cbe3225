// Command wqetl downloads Colorado River basin water-quality results from the
// Water Quality Portal, reduces them to annual summaries, and ranks
// per-site concentration trends.
//
// Usage:
//
//	wqetl init catalog.yaml
//	wqetl fetch --catalog catalog.yaml
//	wqetl run
//	wqetl serve --fetch
//	wqetl validate
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errValidationFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
