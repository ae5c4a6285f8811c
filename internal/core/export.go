package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// RenderWeekCSV renders grouped user totals as a semicolon-separated CSV
// document, totals fixed to two decimals. Row order is the caller's;
// the store already sorts by total descending.
func RenderWeekCSV(rows []UserTotal) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.Write([]string{"user_id", "full_name", "total_amount"}); err != nil {
		return nil, fmt.Errorf("write export header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			fmt.Sprintf("%d", r.UserID),
			r.FullName,
			r.Total.StringFixed(2),
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush export: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilename names a weekly export by its inclusive date window.
func ExportFilename(from, to string) string {
	return fmt.Sprintf("export_%s_%s.csv", from, to)
}
