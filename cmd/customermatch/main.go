// Command customermatch normalizes customer contact CSVs for ad-platform
// customer matching.
//
// Usage:
//
//	customermatch normalize contacts.csv -o matched.csv --hash
//	customermatch serve
//	customermatch zips load us_zips.csv
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
