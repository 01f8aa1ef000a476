package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/faultline/internal/core/domain"
)

// NotifyChannel is the LISTEN channel the insert trigger publishes ids on.
const NotifyChannel = "faultline_occurrences"

// Tail streams newly appended occurrences to fn until ctx is done. It uses a
// dedicated lib/pq listener connection.
func (r *OccurrenceRepo) Tail(ctx context.Context, fn func(domain.Occurrence)) error {
	if r.db.url == "" {
		return fmt.Errorf("tail requires a connection url")
	}

	logger := slog.Default().With("component", "tail")
	listener := pq.NewListener(r.db.url, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("Listener event", "event", ev, "error", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(NotifyChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}
	logger.Info("Tailing occurrences", "channel", NotifyChannel)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			// nil after a reconnect; anything sent meanwhile is lost
			if n == nil {
				continue
			}
			occ, err := r.Get(ctx, n.Extra)
			if err != nil {
				logger.Warn("Failed to load notified occurrence", "id", n.Extra, "error", err)
				continue
			}
			fn(occ)
		case <-ping.C:
			if err := listener.Ping(); err != nil {
				logger.Warn("Listener ping failed", "error", err)
			}
		}
	}
}
