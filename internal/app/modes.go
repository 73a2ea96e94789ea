package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jfilipcz/netfolio/internal/server"
	"github.com/jfilipcz/netfolio/internal/server/handler"
	"github.com/jfilipcz/netfolio/internal/server/ws"
)

// snapshotChannel is the signal bus channel periodic snapshot events are
// published to. The WebSocket hub forwards it to connected clients.
const snapshotChannel = "snapshots"

// ServeMode starts the long-running service: the HTTP + WebSocket API and,
// when a snapshot interval is configured, a background loop that persists a
// snapshot at that cadence.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           a.cfg.Main.Mode,
		Currency:       deps.Aggregator.Currency(),
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		Balances: handler.NewBalanceHandler(deps.Aggregator, deps.Scheduler, a.logger),
		History:  handler.NewHistoryHandler(deps.SnapshotStore, a.logger),
		Fiat:     handler.NewFiatHandler(deps.FiatStore, a.logger),
		Sources:  handler.NewSourceHandler(deps.FetchCache, a.logger),
	}
	if deps.Exporter != nil {
		handlers.Export = handler.NewExportHandler(deps.Aggregator, deps.Exporter, deps.BlobDeleter, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if interval := a.cfg.Main.SnapshotInterval.Duration; interval > 0 {
		g.Go(func() error {
			return a.snapshotLoop(ctx, deps, interval)
		})
	}

	return g.Wait()
}

// snapshotLoop persists a snapshot every interval and announces each success
// on the signal bus. Failed runs are logged and retried at the next tick.
func (a *App) snapshotLoop(ctx context.Context, deps *Dependencies, interval time.Duration) error {
	a.logger.InfoContext(ctx, "periodic snapshots enabled",
		slog.Duration("interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			snap, err := deps.Aggregator.Run(ctx, now.UTC(), true)
			if err != nil {
				a.logger.ErrorContext(ctx, "periodic snapshot failed",
					slog.String("error", err.Error()),
				)
				_ = deps.Notifier.Notify(ctx, "snapshot_failed",
					"Snapshot failed",
					fmt.Sprintf("Periodic snapshot failed: %v", err),
				)
				continue
			}

			a.logger.InfoContext(ctx, "periodic snapshot saved",
				slog.Time("time", snap.Timestamp),
				slog.String("net_usd", snap.NetValue.String()),
			)
			_ = deps.Notifier.Notify(ctx, "snapshot_saved",
				"Snapshot saved",
				fmt.Sprintf("Net worth: %s %s", snap.NetValue.String(), deps.Aggregator.Currency()),
			)

			event, err := json.Marshal(map[string]string{
				"event":   "snapshot_saved",
				"time":    snap.Timestamp.Format(time.RFC3339),
				"net_usd": snap.NetValue.String(),
			})
			if err != nil {
				continue
			}
			if err := deps.SignalBus.Publish(ctx, snapshotChannel, event); err != nil {
				a.logger.WarnContext(ctx, "publish snapshot event failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// OnceMode runs a single persisted aggregation pass, prints the snapshot as
// indented JSON on stdout, and exits.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting once mode")

	snap, err := deps.Aggregator.Run(ctx, time.Now().UTC(), true)
	if err != nil {
		return fmt.Errorf("once mode: %w", err)
	}

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("once mode: marshal snapshot: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))

	a.logger.InfoContext(ctx, "snapshot saved",
		slog.Time("time", snap.Timestamp),
		slog.String("net_usd", snap.NetValue.String()),
	)
	return nil
}
