package main

import (
	"context"
	"fmt"
	"sync"

	"scrubthumbs/internal/config"
	"scrubthumbs/internal/logging"
	"scrubthumbs/internal/media"
	"scrubthumbs/internal/quota"
	"scrubthumbs/internal/session"
	"scrubthumbs/internal/thumbcache"
)

// pipeline wires the cache, ledger and session manager together.
type pipeline struct {
	ledger  *quota.Ledger
	store   *thumbcache.Store
	manager *session.Manager

	closeOnce sync.Once
}

func openLedger(ctx context.Context, cfg *config.Config) (*quota.Ledger, error) {
	ledger, err := quota.Open(ctx, cfg.Cache.LedgerPath, cfg.Cache.Dir, cfg.MaxBytes(), cfg.Cache.LowWaterRatio)
	if err != nil {
		return nil, fmt.Errorf("open cache ledger: %w", err)
	}
	return ledger, nil
}

func openPipeline(ctx context.Context, cfg *config.Config) (*pipeline, error) {
	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, rotating with imaging: %v", err)
	}

	codec := media.NewImageCodec(cfg.Thumbnails.JPEGQuality)
	store := thumbcache.NewStore(cfg.Cache.Dir, cfg.MaxBytes(), ledger, codec)
	prober := media.NewProber(cfg.FFmpeg.FFprobePath)
	extractor := media.NewFFmpegExtractor(cfg.FFmpeg.FFmpegPath,
		cfg.Thumbnails.Count, cfg.Thumbnails.BatchSize, cfg.FFmpeg.Threads)

	return &pipeline{
		ledger:  ledger,
		store:   store,
		manager: session.NewManager(store, prober, extractor, codec, cfg.SessionOptions()),
	}, nil
}

// Close cancels running sessions before releasing the ledger and libvips.
// It is safe to call more than once.
func (p *pipeline) Close() {
	p.closeOnce.Do(func() {
		p.manager.Close()
		if err := p.ledger.Close(); err != nil {
			logging.Warn("Failed to close cache ledger: %v", err)
		}
		media.ShutdownVips()
	})
}
