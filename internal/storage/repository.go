// Package storage persists rates and ledger entries in an embedded SQLite
// database. Every exported method is a single atomic statement; nothing
// here holds a transaction open across calls, so the workflow can pause
// for human input without pinning any database resource.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"piecework/internal/core"
)

type SQLiteRepository struct {
	db   *sql.DB
	path string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, path: dbPath}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListRates returns the whole rate table ordered by product name. An
// empty table is a valid result, not an error.
func (r *SQLiteRepository) ListRates(ctx context.Context) ([]core.Rate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT product, rate FROM rates ORDER BY product`)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	defer rows.Close()

	var rates []core.Rate
	for rows.Next() {
		var product string
		var rate float64
		if err := rows.Scan(&product, &rate); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		rates = append(rates, core.Rate{Product: product, PerUnit: decimal.NewFromFloat(rate)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rates: %w", err)
	}
	return rates, nil
}

// SetRate upserts the rate for a product in a single statement. The
// ON CONFLICT clause is what makes concurrent SetRate calls safe: the
// store serializes the test-and-set, so no update is lost.
func (r *SQLiteRepository) SetRate(ctx context.Context, product string, rate decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rates(product, rate) VALUES(?, ?)
		 ON CONFLICT(product) DO UPDATE SET rate = excluded.rate`,
		product, rate.InexactFloat64())
	if err != nil {
		return fmt.Errorf("set rate: %w", err)
	}
	return nil
}

// SeedDefaults bulk-upserts a baseline rate table. It behaves exactly
// like repeated SetRate calls: seeding AFTER an admin has edited a seeded
// product silently reverts that product to the seed value. Callers must
// seed once, at startup, before any admin traffic.
func (r *SQLiteRepository) SeedDefaults(ctx context.Context, defaults map[string]decimal.Decimal) error {
	for product, rate := range defaults {
		if err := r.SetRate(ctx, product, rate); err != nil {
			return fmt.Errorf("seed %q: %w", product, err)
		}
	}
	return nil
}

// AppendEntry persists one immutable ledger entry and returns its id.
// The product is deliberately not checked against the rate table; pricing
// was resolved by the caller and the recorded rate is a snapshot.
func (r *SQLiteRepository) AppendEntry(ctx context.Context, e core.Entry) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO logs(ts, user_id, username, full_name, product, qty, rate, amount, work_date)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TS.Format(time.RFC3339), e.User.ID, e.User.Username, e.User.FullName,
		e.Product, e.Qty, e.Rate.InexactFloat64(), e.Amount.InexactFloat64(), e.WorkDate)
	if err != nil {
		return 0, fmt.Errorf("append entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("entry id: %w", err)
	}

	slog.InfoContext(ctx, "Ledger entry saved",
		"id", id,
		"user_id", e.User.ID,
		"product", e.Product,
		"qty", e.Qty,
		"amount", e.Amount.String(),
		"work_date", e.WorkDate)

	return id, nil
}

// SumForUser sums entry amounts for one user over an inclusive work-date
// window. Zero matching rows sum to zero; that is a result, not an error.
func (r *SQLiteRepository) SumForUser(ctx context.Context, userID int64, from, to string) (decimal.Decimal, error) {
	var total float64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM logs
		 WHERE work_date BETWEEN ? AND ? AND user_id = ?`,
		from, to, userID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum for user: %w", err)
	}
	return decimal.NewFromFloat(total), nil
}

// WeekTotals groups entry amounts by user over an inclusive work-date
// window, largest earners first. Ties break on user_id so repeated calls
// over unchanged data return identical row order.
func (r *SQLiteRepository) WeekTotals(ctx context.Context, from, to string) ([]core.UserTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, full_name, SUM(amount) AS total FROM logs
		 WHERE work_date BETWEEN ? AND ?
		 GROUP BY user_id, full_name
		 ORDER BY total DESC, user_id ASC`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("week totals: %w", err)
	}
	defer rows.Close()

	var totals []core.UserTotal
	for rows.Next() {
		var t core.UserTotal
		var total float64
		if err := rows.Scan(&t.UserID, &t.FullName, &total); err != nil {
			return nil, fmt.Errorf("scan week total: %w", err)
		}
		t.Total = decimal.NewFromFloat(total)
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate week totals: %w", err)
	}
	return totals, nil
}

// Snapshot returns a consistent copy of the whole database file, built
// with VACUUM INTO so in-flight writers never tear the dump.
func (r *SQLiteRepository) Snapshot(ctx context.Context) ([]byte, error) {
	tmp := filepath.Join(os.TempDir(), fmt.Sprintf("piecework-snapshot-%d.db", time.Now().UnixNano()))
	defer os.Remove(tmp)

	if _, err := r.db.ExecContext(ctx, `VACUUM INTO ?`, tmp); err != nil {
		return nil, fmt.Errorf("vacuum into snapshot: %w", err)
	}
	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Database snapshot produced", "bytes", len(data))
	return data, nil
}
