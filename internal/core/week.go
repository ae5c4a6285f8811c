package core

import "time"

// dayKeyLayout is the work-date key format. ISO dates sort correctly as
// strings, which is what the store's BETWEEN comparisons rely on.
const dayKeyLayout = "2006-01-02"

// DayKey returns the calendar-date bucket for t in t's own location.
func DayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

// WeekWindow returns the reporting window for "today": the most recent
// Monday at or before today, through today itself. A Monday is its own
// window start. The window deliberately never extends past today; the
// week is partial until Sunday.
func WeekWindow(today time.Time) (from, to string) {
	// time.Weekday numbers Sunday as 0, the week here starts on Monday.
	offset := (int(today.Weekday()) + 6) % 7
	monday := today.AddDate(0, 0, -offset)
	return DayKey(monday), DayKey(today)
}
