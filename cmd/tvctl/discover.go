package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/tvcompanion/host/internal/discovery"
)

func runDiscover(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var timeout time.Duration
	fs.DurationVar(&timeout, "timeout", discovery.DefaultTimeout, "How long to browse")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	setupLogging("warn", stderr)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fmt.Fprintln(stdout, "Browsing for displays...")
	found, err := discovery.Browse(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if len(found) == 0 {
		fmt.Fprintln(stdout, "No displays found.")
		return 0
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS")
	for _, d := range found {
		fmt.Fprintf(w, "%s\t%s\n", d.Name, d.Address)
	}
	w.Flush()
	return 0
}
