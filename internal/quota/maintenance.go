package quota

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Maintain reconciles the ledger and evicts when the cache is over budget.
func (l *Ledger) Maintain(ctx context.Context) error {
	if err := l.Refresh(ctx); err != nil {
		return err
	}
	if l.maxBytes == 0 || l.cachedSize.Load() <= l.maxBytes {
		return nil
	}
	_, err := l.Evict(ctx)
	return err
}

// Schedule registers a maintenance job on c. spec accepts any expression
// understood by c's parser, e.g. "@every 30m".
func (l *Ledger) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		if err := l.Maintain(ctx); err != nil {
			log.Warn("Scheduled cache maintenance failed: %v", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("schedule cache maintenance %q: %w", spec, err)
	}
	log.Info("Cache maintenance scheduled: %s", spec)
	return id, nil
}
