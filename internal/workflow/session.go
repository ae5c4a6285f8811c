// Package workflow implements the interactive entry protocol as an
// explicit state machine: product selection, quantity input, commit.
// Transitions are pure, touching no storage and no transport, so the
// protocol is testable without any harness. The caller persists the
// ledger entry described by a Commit and then evicts the session.
package workflow

import (
	"strings"

	"github.com/shopspring/decimal"

	"piecework/internal/core"
)

type State int

const (
	StateAwaitingProduct State = iota
	StateAwaitingQuantity
	StateCommitted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateAwaitingProduct:
		return "awaiting_product"
	case StateAwaitingQuantity:
		return "awaiting_quantity"
	case StateCommitted:
		return "committed"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether the session is finished and must be evicted.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateCancelled
}

// CancelSentinel is the product selection that aborts the workflow.
const CancelSentinel = "cancel"

// Session is one user's in-flight entry. The rate snapshot is taken when
// the session begins: an admin changing a rate mid-session does not move
// the price this user was shown. Sessions live only in memory; losing one
// loses nothing durable, the user simply starts over.
type Session struct {
	UserID   int64
	State    State
	Product  string
	Snapshot map[string]decimal.Decimal
}

// Commit describes the priced entry a finished session asks the caller
// to persist.
type Commit struct {
	Product string
	Qty     int64
	Rate    decimal.Decimal
}

// SelectProduct handles the first interaction. The cancel sentinel moves
// straight to Cancelled; anything else fixes the product and advances to
// quantity input.
func (s *Session) SelectProduct(name string) error {
	if s.State != StateAwaitingProduct {
		return core.ErrSessionState
	}
	name = strings.TrimSpace(name)
	if name == CancelSentinel {
		s.State = StateCancelled
		return nil
	}
	if name == "" {
		return core.ErrEmptyProduct
	}
	s.Product = name
	s.State = StateAwaitingQuantity
	return nil
}

// SubmitQuantity handles the second interaction. Invalid text leaves the
// session in StateAwaitingQuantity and returns ErrInvalidQuantity so the
// caller re-prompts; there is no retry limit. Valid text prices the
// quantity against the snapshot and moves to Committed. A product missing
// from the snapshot prices at zero rather than failing.
func (s *Session) SubmitQuantity(text string) (Commit, error) {
	if s.State != StateAwaitingQuantity {
		return Commit{}, core.ErrSessionState
	}
	qty, err := core.ParseQuantity(text)
	if err != nil {
		return Commit{}, err
	}
	rate, ok := s.Snapshot[s.Product]
	if !ok {
		rate = decimal.Zero
	}
	s.State = StateCommitted
	return Commit{Product: s.Product, Qty: qty, Rate: rate}, nil
}

// Cancel moves any non-terminal session to Cancelled. Cancelling a
// terminal session is a no-op.
func (s *Session) Cancel() {
	if !s.State.Terminal() {
		s.State = StateCancelled
	}
}
