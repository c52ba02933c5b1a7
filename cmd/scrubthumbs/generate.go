package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"scrubthumbs/internal/media"
	"scrubthumbs/internal/session"
)

func runGenerate(args []string, stdout io.Writer) error {
	fs, configFile := newFlagSet("generate")
	at := fs.String("at", "", "comma-separated playback positions in seconds to export, e.g. 0,12.5,60")
	outDir := fs.String("out", ".", "directory for exported thumbnails")
	asJSON := fs.Bool("json", false, "print the session summary as JSON")
	plain := fs.Bool("plain", false, "log progress instead of drawing a progress bar")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: scrubthumbs generate [flags] <video>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: generate takes exactly one video path", errUsage)
	}

	positions, err := parsePositions(*at)
	if err != nil {
		return err
	}
	path, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}
	if !media.IsVideoFile(path) {
		return fmt.Errorf("%s does not look like a video file", path)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := openPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	var s *session.Session
	if !*plain && isTerminal(os.Stderr) {
		s, err = runWithProgressBar(ctx, p.manager, path)
	} else {
		s, err = runWithLog(ctx, p.manager, path)
	}
	if err != nil {
		return err
	}

	if err := printSummary(stdout, s, p.store.Path(s.Key()), *asJSON); err != nil {
		return err
	}
	if err := s.Err(); err != nil {
		return fmt.Errorf("generate %s: %w", path, err)
	}

	written, err := exportThumbnails(s, positions, *outDir)
	for _, name := range written {
		fmt.Fprintln(stdout, name)
	}
	return err
}

// runWithLog starts a session and blocks until it ends, logging progress.
func runWithLog(ctx context.Context, mgr *session.Manager, path string) (*session.Session, error) {
	s, err := mgr.Start(ctx, path, newLogReporter(filepath.Base(path)))
	if err != nil {
		return nil, err
	}
	if err := s.Wait(ctx); err != nil && ctx.Err() != nil {
		s.Cancel()
		<-s.Done()
	}
	return s, nil
}

// parsePositions parses a comma-separated list of seconds.
func parsePositions(list string) ([]float64, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var out []float64
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid position %q: want seconds", field)
		}
		out = append(out, v)
	}
	return out, nil
}

// exportThumbnails writes the thumbnail shown at each position to dir and
// returns the files written.
func exportThumbnails(s *session.Session, positions []float64, dir string) ([]string, error) {
	if len(positions) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	var written []string
	for _, t := range positions {
		rec, ok := s.Lookup(t)
		if !ok {
			return written, errors.New("session has no thumbnails to export")
		}
		name := filepath.Join(dir, "thumb_"+strconv.FormatFloat(rec.Timestamp, 'f', 3, 64)+".jpg")
		if err := os.WriteFile(name, rec.Image, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}

func printSummary(w io.Writer, s *session.Session, cachePath string, asJSON bool) error {
	info := s.Info()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Fprintf(w, "%s  %s\n", labelStyle.Render("state:     "), stateStyle(s.State()).Render(info.State))
	fmt.Fprintf(w, "%s  %d of %d at %dpx\n", labelStyle.Render("thumbnails:"), info.Count, info.Expected, info.Width)
	if info.Rotation != 0 {
		fmt.Fprintf(w, "%s  %d degrees\n", labelStyle.Render("rotation:  "), info.Rotation)
	}
	if s.State().Ready() {
		fmt.Fprintf(w, "%s  %s\n", labelStyle.Render("cache file:"), cachePath)
	}
	if info.Error != "" {
		fmt.Fprintf(w, "%s  %s\n", labelStyle.Render("error:     "), info.Error)
	}
	return nil
}
