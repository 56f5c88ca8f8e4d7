package main

import (
	"context"
	"log/slog"
	"time"

	"intranet/internal/app"
)

const janitorInterval = time.Hour

// runJanitor purges expired revocation entries until ctx is cancelled.
func runJanitor(ctx context.Context, purger app.Purger, every time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purger.PurgeExpired(ctx)
			if err != nil {
				log.WarnContext(ctx, "purge expired revocations failed", "error", err)
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "purged expired revocations", "count", n)
			}
		}
	}
}
