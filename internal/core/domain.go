package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Rate is the current unit price for one item of a product.
	Rate struct {
		Product string
		PerUnit decimal.Decimal
	}

	// User identifies the worker reporting an entry. Username is the
	// optional chat handle; FullName is what exports display.
	User struct {
		ID       int64
		Username string
		FullName string
	}

	// Entry is one immutable ledger record: a quantity priced at the
	// rate in effect when the entry was made. Rate and Amount are copies,
	// not live references into the rate table.
	Entry struct {
		ID       int64
		TS       time.Time
		User     User
		Product  string
		Qty      int64
		Rate     decimal.Decimal
		Amount   decimal.Decimal
		WorkDate string
	}

	// UserTotal is one row of a grouped earnings report.
	UserTotal struct {
		UserID   int64
		FullName string
		Total    decimal.Decimal
	}
)

var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidRate     = errors.New("invalid rate")
	ErrEmptyProduct    = errors.New("empty product")
	ErrNoRates         = errors.New("no rates configured")
	ErrNotAdmin        = errors.New("insufficient privilege")
	ErrNoSession       = errors.New("no open entry session")
	ErrSessionState    = errors.New("unexpected session state")
)

// NewEntry prices qty at rate and stamps the entry with ts and its
// calendar date. Amount is computed here, exactly, and never recomputed.
func NewEntry(u User, product string, qty int64, rate decimal.Decimal, ts time.Time) Entry {
	return Entry{
		TS:       ts,
		User:     u,
		Product:  product,
		Qty:      qty,
		Rate:     rate,
		Amount:   rate.Mul(decimal.NewFromInt(qty)),
		WorkDate: DayKey(ts),
	}
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.Product) == "" {
		return ErrEmptyProduct
	}
	if e.Qty < 0 {
		return ErrInvalidQuantity
	}
	if e.Rate.IsNegative() {
		return ErrInvalidRate
	}
	if !e.Amount.Equal(e.Rate.Mul(decimal.NewFromInt(e.Qty))) {
		return errors.New("amount does not equal qty times rate")
	}
	return nil
}
