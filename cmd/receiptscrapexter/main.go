// cmd/receiptscrapexter/main.go
package main

import (
	"fmt"
	"os"

	errs "github.com/valpere/ReceiptScrapexter/internal/errors"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var errorService = errs.NewService()

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, errorService.WithVerbose(verbose).FormatErrorForCLI(err))
		os.Exit(errorService.GetExitCode(err))
	}
}
