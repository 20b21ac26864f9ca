package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/max/dupescan/internal/cache"
	"github.com/max/dupescan/internal/engine"
	"github.com/max/dupescan/internal/progress"
	"github.com/max/dupescan/internal/store"
	"github.com/spf13/cobra"
)

// errScanCancelled maps a cancelled session to exit code 130 in main.
var errScanCancelled = errors.New("scan cancelled")

// errScanFailed reports a session that ended in the failed state.
var errScanFailed = errors.New("scan failed")

// scanOptions holds CLI flags for the scan command.
type scanOptions struct {
	noProgress bool
	quiet      bool
	staged     bool
	stagingDB  string
	cacheFile  string
}

// newScanCmd creates the scan subcommand.
func newScanCmd() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a directory tree for duplicate files",
		Long: `Scans a directory tree and reports groups of byte-identical files.

Files are grouped by size first; only files sharing a size with at least one
other file are hashed (SHA-256). Interrupt with Ctrl-C to cancel; a second
interrupt exits immediately.

For very large trees, --staged keeps bookkeeping in an indexed on-disk
staging database instead of memory. The staging file is removed when the
scan ends.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return runScan(args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress per-file log lines (errors are still shown)")
	cmd.Flags().BoolVar(&opts.staged, "staged", false, "Stage records in an on-disk database instead of memory")
	cmd.Flags().StringVar(&opts.stagingDB, "staging-db", "", "Path for the staging database (implies --staged)")
	cmd.Flags().StringVar(&opts.cacheFile, "cache-file", "", "Path to digest cache file (enables caching)")

	return cmd
}

// openStore selects the record store: in-memory by default, sqlite staging
// when requested.
func openStore(opts *scanOptions) (store.Records, error) {
	if !opts.staged && opts.stagingDB == "" {
		return store.NewMemory(), nil
	}
	path := opts.stagingDB
	if path == "" {
		f, err := os.CreateTemp("", "dupescan-staging-*.db")
		if err != nil {
			return nil, fmt.Errorf("create staging file: %w", err)
		}
		path = f.Name()
		_ = f.Close()
	}
	return store.OpenSQLite(path)
}

// runScan executes one scan session and renders its event stream.
func runScan(path string, opts *scanOptions) error {
	root, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if info, err := os.Stat(root); err != nil {
		return err
	} else if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	records, err := openStore(opts)
	if err != nil {
		return err
	}
	defer func() { _ = records.Close() }()

	digestCache, err := cache.Open(opts.cacheFile)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() { _ = digestCache.Close() }()

	session := engine.New(root, engine.WithStore(records), engine.WithCache(digestCache))
	events := session.Start()

	// First interrupt cancels cooperatively, second one force-exits
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		session.Cancel()
		<-sigCh
		os.Exit(130)
	}()

	bar := progress.New(!opts.noProgress, os.Stderr)
	var final engine.Done
	for ev := range events {
		switch e := ev.(type) {
		case engine.Output:
			if opts.quiet && (e.Tag == engine.TagScanning || e.Tag == engine.TagHashing) {
				continue
			}
			bar.Clear()
			fmt.Fprintf(os.Stderr, "[%s] %s\n", e.Tag, e.Message)
		case engine.Progress:
			bar.Update(int64(e.Scanned), int64(e.Total))
		case engine.Done:
			final = e
		}
	}
	bar.Finish()

	switch final.State {
	case engine.StateCompleted:
		printReport(os.Stdout, final.Duplicates)
		return nil
	case engine.StateCancelled:
		return errScanCancelled
	default:
		return errScanFailed
	}
}
