// Package main provides the entry point for the labsearch CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/labsearch/cmd/labsearch/cmd"
	serrors "github.com/Aman-CERP/labsearch/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, serrors.FormatForCLI(err))
		os.Exit(1)
	}
}
