package warehouse

import (
	"fmt"
	"time"
)

// EarliestYear is the oldest last-modified year in the blog's history;
// windows reaching further back are operator typos.
const EarliestYear = 2021

// Window is a contiguous [Start, End] time range scoping a re-runnable
// backfill. Start is the first instant of the start month; End is the last
// second of the last day of the end month.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates the year/month bounds and materializes the window.
// All validation happens here, before any delete is issued, so an invalid
// window has no side effects.
func NewWindow(startYear, startMonth, endYear, endMonth int, now time.Time) (Window, error) {
	if startMonth < 1 || startMonth > 12 {
		return Window{}, fmt.Errorf("invalid start month %d: valid range [1-12]", startMonth)
	}
	if endMonth < 1 || endMonth > 12 {
		return Window{}, fmt.Errorf("invalid end month %d: valid range [1-12]", endMonth)
	}
	if startYear < EarliestYear {
		return Window{}, fmt.Errorf("invalid start year %d: the oldest last-modified date is %d", startYear, EarliestYear)
	}
	if endYear*12+endMonth > now.Year()*12+int(now.Month()) {
		return Window{}, fmt.Errorf("invalid end %d-%02d: cannot be in the future", endYear, endMonth)
	}
	if startYear*12+startMonth > endYear*12+endMonth {
		return Window{}, fmt.Errorf("start %d-%02d cannot be after end %d-%02d", startYear, startMonth, endYear, endMonth)
	}
	start := time.Date(startYear, time.Month(startMonth), 1, 0, 0, 0, 0, time.UTC)
	// Day 0 of the following month normalizes to the last day of endMonth.
	end := time.Date(endYear, time.Month(endMonth)+1, 0, 23, 59, 59, 0, time.UTC)
	return Window{Start: start, End: end}, nil
}

// Months enumerates the (year, month) pairs the window spans, in order.
func (w Window) Months() [][2]int {
	var months [][2]int
	cursor := time.Date(w.Start.Year(), w.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(w.End) {
		months = append(months, [2]int{cursor.Year(), int(cursor.Month())})
		cursor = cursor.AddDate(0, 1, 0)
	}
	return months
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start.Format("2006-01-02 15:04:05"), w.End.Format("2006-01-02 15:04:05"))
}
