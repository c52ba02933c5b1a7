package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"scrubthumbs/internal/quota"
	"scrubthumbs/internal/startup"
)

func runEvict(args []string, stdout io.Writer) error {
	fs, configFile := newFlagSet("evict")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	if err := ledger.Refresh(ctx); err != nil {
		return err
	}
	before, err := ledger.Stats(ctx)
	if err != nil {
		return err
	}
	removed, err := ledger.Evict(ctx)
	if err != nil {
		return err
	}
	after, err := ledger.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "evicted %d files: %s -> %s (budget %s)\n", removed,
		startup.FormatBytes(int64(before.SizeBytes)),
		startup.FormatBytes(int64(after.SizeBytes)),
		startup.FormatBytes(int64(cfg.MaxBytes())))
	return nil
}

func runStats(args []string, stdout io.Writer) error {
	fs, configFile := newFlagSet("stats")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	if err := ledger.Refresh(ctx); err != nil {
		return err
	}
	stats, err := ledger.Stats(ctx)
	if err != nil {
		return err
	}
	printStats(stdout, cfg.Cache.Dir, cfg.MaxBytes(), stats)
	return nil
}

func printStats(w io.Writer, dir string, budget uint64, stats quota.Stats) {
	row := func(label, value string) {
		fmt.Fprintf(w, "%s  %s\n", labelStyle.Render(fmt.Sprintf("%-10s", label)), value)
	}
	row("cache:", dir)
	row("files:", fmt.Sprintf("%d", stats.Entries))
	if budget == 0 {
		row("size:", startup.FormatBytes(int64(stats.SizeBytes))+" (caching disabled)")
	} else {
		row("size:", fmt.Sprintf("%s of %s (%.0f%%)",
			startup.FormatBytes(int64(stats.SizeBytes)),
			startup.FormatBytes(int64(budget)),
			float64(stats.SizeBytes)/float64(budget)*100))
	}
	if stats.Entries > 0 {
		row("oldest:", stats.Oldest.Format(time.RFC3339))
		row("newest:", stats.Newest.Format(time.RFC3339))
	}
}
