package core

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewEntryPricesExactly(t *testing.T) {
	u := User{ID: 7, Username: "w", FullName: "Worker Seven"}
	ts := time.Date(2024, time.June, 12, 9, 30, 0, 0, time.UTC)

	cases := []struct {
		qty    int64
		rate   string
		amount string
	}{
		{25, "3.0", "75"},
		{25, "3", "75"},
		{10, "3.5", "35"},
		{3, "0.10", "0.3"},
		{7, "1.01", "7.07"},
		{0, "9.99", "0"}, // zero quantity yields a zero-amount entry
		{1, "0", "0"},
	}
	for _, tc := range cases {
		rate := decimal.RequireFromString(tc.rate)
		e := NewEntry(u, "Gloves", tc.qty, rate, ts)
		if !e.Amount.Equal(decimal.RequireFromString(tc.amount)) {
			t.Fatalf("qty=%d rate=%s: amount = %s, want %s", tc.qty, tc.rate, e.Amount, tc.amount)
		}
		if e.WorkDate != "2024-06-12" {
			t.Fatalf("work date = %q, want 2024-06-12", e.WorkDate)
		}
		if err := e.Validate(); err != nil {
			t.Fatalf("valid entry rejected: %v", err)
		}
	}
}

func TestEntryValidate(t *testing.T) {
	ts := time.Now()
	u := User{ID: 1}

	e := NewEntry(u, "", 1, decimal.NewFromInt(1), ts)
	if err := e.Validate(); err != ErrEmptyProduct {
		t.Fatalf("empty product: got %v", err)
	}

	e = NewEntry(u, "Gloves", 2, decimal.NewFromInt(3), ts)
	e.Amount = decimal.NewFromInt(7) // tampered
	if err := e.Validate(); err == nil {
		t.Fatal("tampered amount should not validate")
	}
}

func TestRenderWeekCSV(t *testing.T) {
	rows := []UserTotal{
		{UserID: 42, FullName: "Anna B", Total: decimal.RequireFromString("120.5")},
		{UserID: 7, FullName: "Pete; Jr", Total: decimal.RequireFromString("75")},
	}
	data, err := RenderWeekCSV(rows)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %q", len(lines), lines)
	}
	if lines[0] != "user_id;full_name;total_amount" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "42;Anna B;120.50" {
		t.Fatalf("row = %q", lines[1])
	}
	// Field containing the delimiter must be quoted.
	if lines[2] != `7;"Pete; Jr";75.00` {
		t.Fatalf("quoted row = %q", lines[2])
	}
}

func TestExportFilename(t *testing.T) {
	got := ExportFilename("2024-06-10", "2024-06-12")
	if got != "export_2024-06-10_2024-06-12.csv" {
		t.Fatalf("filename = %q", got)
	}
}
