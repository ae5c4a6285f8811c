// Package services wires the rate table, ledger, workflow and
// authorization into the operations the chat gateway calls.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"piecework/internal/amqp"
	"piecework/internal/auth"
	"piecework/internal/core"
	"piecework/internal/storage"
	"piecework/internal/workflow"
)

// EntryEventPublisher is the slice of the AMQP client the service needs.
// A nil publisher disables events; commits never fail because of it.
type EntryEventPublisher interface {
	PublishEntryCommitted(ctx context.Context, msg *amqp.EntryCommittedMessage) error
}

type PieceworkService struct {
	storage  *storage.SQLiteRepository
	sessions *workflow.Sessions
	auth     *auth.Authorizer
	events   EntryEventPublisher
	loc      *time.Location

	now func() time.Time // test hook
}

func NewPieceworkService(st *storage.SQLiteRepository, az *auth.Authorizer, events EntryEventPublisher, loc *time.Location) *PieceworkService {
	if loc == nil {
		loc = time.UTC
	}
	return &PieceworkService{
		storage:  st,
		sessions: workflow.NewSessions(),
		auth:     az,
		events:   events,
		loc:      loc,
		now:      time.Now,
	}
}

// StartEntry opens (or restarts) the user's entry session and returns
// the selectable rates. The session snapshots the rate table now; a rate
// change while the user is choosing does not move their price.
func (s *PieceworkService) StartEntry(ctx context.Context, user core.User) ([]core.Rate, error) {
	rates, err := s.storage.ListRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rates: %w", err)
	}
	if len(rates) == 0 {
		return nil, core.ErrNoRates
	}

	snapshot := make(map[string]decimal.Decimal, len(rates))
	for _, r := range rates {
		snapshot[r.Product] = r.PerUnit
	}
	s.sessions.Begin(user.ID, snapshot)

	slog.InfoContext(ctx, "Entry session started", "user_id", user.ID, "products", len(rates))
	return rates, nil
}

// SelectProduct advances the user's session past product choice. The
// cancel sentinel terminates and evicts the session.
func (s *PieceworkService) SelectProduct(ctx context.Context, userID int64, nameOrCancel string) error {
	sess, ok := s.sessions.Get(userID)
	if !ok {
		return core.ErrNoSession
	}
	if err := sess.SelectProduct(nameOrCancel); err != nil {
		return err
	}
	if sess.State.Terminal() {
		s.sessions.Evict(userID)
		slog.InfoContext(ctx, "Entry session cancelled", "user_id", userID)
	}
	return nil
}

// SubmitQuantity completes the workflow: parses the quantity, prices it
// against the session snapshot, appends one immutable ledger entry and
// evicts the session. Invalid text returns ErrInvalidQuantity and keeps
// the session open so the gateway re-prompts. A failed append also keeps
// the session open: nothing was written, the user may retry.
func (s *PieceworkService) SubmitQuantity(ctx context.Context, user core.User, rawText string) (*core.Entry, error) {
	sess, ok := s.sessions.Get(user.ID)
	if !ok {
		return nil, core.ErrNoSession
	}

	commit, err := sess.SubmitQuantity(rawText)
	if err != nil {
		return nil, err
	}

	entry := core.NewEntry(user, commit.Product, commit.Qty, commit.Rate, s.now().In(s.loc))
	id, err := s.storage.AppendEntry(ctx, entry)
	if err != nil {
		// The transition reached Committed but nothing was persisted;
		// reopen quantity input so a retry is possible.
		sess.State = workflow.StateAwaitingQuantity
		return nil, fmt.Errorf("append entry: %w", err)
	}
	entry.ID = id
	s.sessions.Evict(user.ID)

	s.publishCommitted(ctx, &entry)
	return &entry, nil
}

// Cancel terminates the user's session, if one is open. Cancelling when
// nothing is open is a no-op: the outcome the user wanted already holds.
func (s *PieceworkService) Cancel(ctx context.Context, userID int64) {
	if sess, ok := s.sessions.Get(userID); ok {
		sess.Cancel()
		s.sessions.Evict(userID)
		slog.InfoContext(ctx, "Entry session cancelled", "user_id", userID)
	}
}

// Rates lists the current rate table, ordered by product.
func (s *PieceworkService) Rates(ctx context.Context) ([]core.Rate, error) {
	return s.storage.ListRates(ctx)
}

// SetRate upserts a product's unit rate. Admin only. The raw rate text
// accepts both decimal separators.
func (s *PieceworkService) SetRate(ctx context.Context, requester core.User, product, rawRate string) (decimal.Decimal, error) {
	if !s.auth.IsAdmin(requester.ID, requester.Username) {
		return decimal.Zero, core.ErrNotAdmin
	}
	product = strings.TrimSpace(product)
	if product == "" {
		return decimal.Zero, core.ErrEmptyProduct
	}
	rate, err := core.ParseRate(rawRate)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.storage.SetRate(ctx, product, rate); err != nil {
		return decimal.Zero, fmt.Errorf("set rate: %w", err)
	}

	slog.InfoContext(ctx, "Rate updated",
		"user_id", requester.ID,
		"product", product,
		"rate", rate.String())
	return rate, nil
}

// DayTotal sums one user's earnings for a single work date. An empty
// date means today in the configured zone.
func (s *PieceworkService) DayTotal(ctx context.Context, userID int64, date string) (decimal.Decimal, error) {
	if date == "" {
		date = core.DayKey(s.now().In(s.loc))
	}
	return s.storage.SumForUser(ctx, userID, date, date)
}

// WeekTotal sums one user's earnings from the most recent Monday through
// today.
func (s *PieceworkService) WeekTotal(ctx context.Context, userID int64) (decimal.Decimal, string, string, error) {
	from, to := core.WeekWindow(s.now().In(s.loc))
	total, err := s.storage.SumForUser(ctx, userID, from, to)
	return total, from, to, err
}

// WeekExportCSV renders this week's per-user totals as a CSV document.
func (s *PieceworkService) WeekExportCSV(ctx context.Context) (string, []byte, error) {
	from, to := core.WeekWindow(s.now().In(s.loc))
	rows, err := s.storage.WeekTotals(ctx, from, to)
	if err != nil {
		return "", nil, fmt.Errorf("week totals: %w", err)
	}
	data, err := core.RenderWeekCSV(rows)
	if err != nil {
		return "", nil, fmt.Errorf("render export: %w", err)
	}
	return core.ExportFilename(from, to), data, nil
}

// BackupSnapshot returns a consistent dump of the whole store. Admin
// only: the dump contains every user's entries.
func (s *PieceworkService) BackupSnapshot(ctx context.Context, requester core.User) ([]byte, error) {
	if !s.auth.IsAdmin(requester.ID, requester.Username) {
		return nil, core.ErrNotAdmin
	}
	return s.storage.Snapshot(ctx)
}

// OpenSessions reports how many entry sessions are in flight.
func (s *PieceworkService) OpenSessions() int {
	return s.sessions.Len()
}

func (s *PieceworkService) publishCommitted(ctx context.Context, e *core.Entry) {
	if s.events == nil {
		return
	}
	msg := amqp.NewEntryCommittedMessage(e.ID, e.User.ID, e.WorkDate)
	if err := s.events.PublishEntryCommitted(ctx, msg); err != nil {
		// The entry is already durable; a lost event only delays the
		// worker's export until its periodic rebuild.
		slog.ErrorContext(ctx, "Failed to publish entry-committed event",
			"entry_id", e.ID, "error", err)
	}
}

// Close releases the service's long-lived resources.
func (s *PieceworkService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if closer, ok := s.events.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close piecework service: %v", errs)
	}
	return nil
}
