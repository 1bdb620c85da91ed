// Command storefront-smoke runs the storefront scenarios against a live or
// in-process store and exits non-zero when any scenario fails.
package main

import (
	"fmt"
	"os"

	"github.com/kuitang/storefront-e2e/internal/errs"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(errs.ExitCode(errs.CodeOf(err)))
	}
}
