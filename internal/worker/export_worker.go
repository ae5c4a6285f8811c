// Package worker rebuilds the weekly CSV export. It reacts to
// entry-committed events and also rebuilds on a timer, so a lost event
// costs freshness, never correctness.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"piecework/internal/amqp"
	"piecework/internal/core"
	"piecework/internal/storage"
)

type ExportWorker struct {
	storage *storage.SQLiteRepository
	dir     string
	loc     *time.Location

	now func() time.Time // test hook
}

func NewExportWorker(st *storage.SQLiteRepository, dir string, loc *time.Location) *ExportWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportWorker{
		storage: st,
		dir:     dir,
		loc:     loc,
		now:     time.Now,
	}
}

// WriteWeekExport rebuilds the current week's CSV from scratch and swaps
// it into place atomically, so a reader never sees a half-written file.
// Rebuilding the whole file per event is deliberate: weekly volume is
// small and a full rebuild is idempotent, which makes redelivered events
// harmless.
func (w *ExportWorker) WriteWeekExport(ctx context.Context) (string, error) {
	from, to := core.WeekWindow(w.now().In(w.loc))
	rows, err := w.storage.WeekTotals(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("week totals: %w", err)
	}
	data, err := core.RenderWeekCSV(rows)
	if err != nil {
		return "", fmt.Errorf("render export: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	target := filepath.Join(w.dir, core.ExportFilename(from, to))
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("replace export: %w", err)
	}

	slog.InfoContext(ctx, "Weekly export written",
		"path", target,
		"rows", len(rows),
		"from", from,
		"to", to)
	return target, nil
}

// HandleEntryCommitted is the AMQP consumer callback. The event tells us
// something changed; the rebuild reads the authoritative totals itself.
func (w *ExportWorker) HandleEntryCommitted(ctx context.Context, msg *amqp.EntryCommittedMessage) error {
	slog.InfoContext(ctx, "Entry-committed event received",
		"entry_id", msg.ID,
		"user_id", msg.UserID,
		"work_date", msg.WorkDate)
	_, err := w.WriteWeekExport(ctx)
	return err
}

// Run consumes events and rebuilds periodically until the context is
// cancelled. Either loop failing stops the worker; process supervision
// restarts it.
func (w *ExportWorker) Run(ctx context.Context, events *amqp.Client, interval time.Duration) error {
	// An export produced at startup means a fresh deploy is never
	// missing the file until the first event arrives.
	if _, err := w.WriteWeekExport(ctx); err != nil {
		return fmt.Errorf("initial export: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return events.ConsumeEntryCommitted(ctx, w.HandleEntryCommitted)
	})

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if _, err := w.WriteWeekExport(ctx); err != nil {
					slog.ErrorContext(ctx, "Periodic export failed", "error", err)
				}
			}
		}
	})

	return g.Wait()
}
