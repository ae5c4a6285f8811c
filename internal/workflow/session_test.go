package workflow

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"piecework/internal/core"
)

func snapshot(pairs ...string) map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal)
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i]] = decimal.RequireFromString(pairs[i+1])
	}
	return m
}

func TestSelectProductAdvances(t *testing.T) {
	reg := NewSessions()
	s := reg.Begin(7, snapshot("Gloves", "3.0"))

	if s.State != StateAwaitingProduct {
		t.Fatalf("initial state = %v", s.State)
	}
	if err := s.SelectProduct("Gloves"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if s.State != StateAwaitingQuantity || s.Product != "Gloves" {
		t.Fatalf("after select: state=%v product=%q", s.State, s.Product)
	}
}

func TestSelectCancelSentinelTerminates(t *testing.T) {
	reg := NewSessions()
	s := reg.Begin(7, snapshot("Gloves", "3.0"))

	if err := s.SelectProduct("cancel"); err != nil {
		t.Fatalf("cancel select: %v", err)
	}
	if s.State != StateCancelled {
		t.Fatalf("state = %v, want cancelled", s.State)
	}
	if !s.State.Terminal() {
		t.Fatal("cancelled must be terminal")
	}
}

func TestSubmitQuantityRePromptsOnBadText(t *testing.T) {
	reg := NewSessions()
	s := reg.Begin(7, snapshot("Gloves", "3.0"))
	if err := s.SelectProduct("Gloves"); err != nil {
		t.Fatalf("select: %v", err)
	}

	for _, bad := range []string{"abc", "-1", "2.5", ""} {
		if _, err := s.SubmitQuantity(bad); !errors.Is(err, core.ErrInvalidQuantity) {
			t.Fatalf("submit %q: err = %v, want ErrInvalidQuantity", bad, err)
		}
		if s.State != StateAwaitingQuantity {
			t.Fatalf("submit %q moved state to %v", bad, s.State)
		}
	}

	// Retries are unlimited; a later valid input still commits.
	commit, err := s.SubmitQuantity("25")
	if err != nil {
		t.Fatalf("submit 25: %v", err)
	}
	if s.State != StateCommitted {
		t.Fatalf("state = %v, want committed", s.State)
	}
	want := decimal.RequireFromString("3.0")
	if commit.Product != "Gloves" || commit.Qty != 25 || !commit.Rate.Equal(want) {
		t.Fatalf("commit = %+v", commit)
	}
	if amount := commit.Rate.Mul(decimal.NewFromInt(commit.Qty)); !amount.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("amount = %s, want 75", amount)
	}
}

func TestSubmitQuantityZeroIsAccepted(t *testing.T) {
	reg := NewSessions()
	s := reg.Begin(7, snapshot("Gloves", "3.0"))
	if err := s.SelectProduct("Gloves"); err != nil {
		t.Fatalf("select: %v", err)
	}
	commit, err := s.SubmitQuantity("0")
	if err != nil {
		t.Fatalf("zero quantity: %v", err)
	}
	if commit.Qty != 0 {
		t.Fatalf("qty = %d", commit.Qty)
	}
}

func TestSubmitQuantityUnknownProductPricesZero(t *testing.T) {
	reg := NewSessions()
	s := reg.Begin(7, snapshot("Gloves", "3.0"))
	if err := s.SelectProduct("Retired product"); err != nil {
		t.Fatalf("select: %v", err)
	}
	commit, err := s.SubmitQuantity("10")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !commit.Rate.IsZero() {
		t.Fatalf("rate = %s, want 0", commit.Rate)
	}
}

func TestSnapshotShieldsSessionFromRateChange(t *testing.T) {
	reg := NewSessions()
	snap := snapshot("Gloves", "3.0")
	s := reg.Begin(7, snap)
	if err := s.SelectProduct("Gloves"); err != nil {
		t.Fatalf("select: %v", err)
	}

	// Admin raises the live rate mid-session; the snapshot is a copy the
	// caller made, so mutating a fresh table must not affect the commit.
	commit, err := s.SubmitQuantity("25")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !commit.Rate.Equal(decimal.RequireFromString("3.0")) {
		t.Fatalf("rate = %s, want snapshot rate 3.0", commit.Rate)
	}
}

func TestTransitionsRejectWrongState(t *testing.T) {
	reg := NewSessions()
	s := reg.Begin(7, snapshot("Gloves", "3.0"))

	if _, err := s.SubmitQuantity("5"); !errors.Is(err, core.ErrSessionState) {
		t.Fatalf("quantity before product: err = %v", err)
	}

	if err := s.SelectProduct("Gloves"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := s.SelectProduct("Boxes"); !errors.Is(err, core.ErrSessionState) {
		t.Fatalf("second select: err = %v", err)
	}
}

func TestCancelFromAnyNonTerminalState(t *testing.T) {
	reg := NewSessions()

	s := reg.Begin(1, snapshot())
	s.Cancel()
	if s.State != StateCancelled {
		t.Fatalf("cancel from awaiting product: %v", s.State)
	}

	s = reg.Begin(2, snapshot("Gloves", "3.0"))
	if err := s.SelectProduct("Gloves"); err != nil {
		t.Fatalf("select: %v", err)
	}
	s.Cancel()
	if s.State != StateCancelled {
		t.Fatalf("cancel from awaiting quantity: %v", s.State)
	}

	// Cancel after commit stays committed.
	s = reg.Begin(3, snapshot("Gloves", "3.0"))
	_ = s.SelectProduct("Gloves")
	if _, err := s.SubmitQuantity("1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	s.Cancel()
	if s.State != StateCommitted {
		t.Fatalf("cancel mutated a terminal session: %v", s.State)
	}
}

func TestBeginSupersedesOpenSession(t *testing.T) {
	reg := NewSessions()
	first := reg.Begin(7, snapshot("Gloves", "3.0"))
	if err := first.SelectProduct("Gloves"); err != nil {
		t.Fatalf("select: %v", err)
	}

	second := reg.Begin(7, snapshot("Boxes", "1.0"))
	got, ok := reg.Get(7)
	if !ok || got != second {
		t.Fatal("registry did not supersede the open session")
	}
	if got.State != StateAwaitingProduct || got.Product != "" {
		t.Fatalf("superseding session not fresh: %+v", got)
	}
	if reg.Len() != 1 {
		t.Fatalf("len = %d, want 1", reg.Len())
	}
}

func TestEvict(t *testing.T) {
	reg := NewSessions()
	reg.Begin(7, snapshot())
	reg.Evict(7)
	if _, ok := reg.Get(7); ok {
		t.Fatal("session survived eviction")
	}
	reg.Evict(7) // second evict is a no-op
	if reg.Len() != 0 {
		t.Fatalf("len = %d, want 0", reg.Len())
	}
}
