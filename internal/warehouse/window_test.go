package warehouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewWindowBounds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC)

	win, err := NewWindow(2024, 2, 2024, 2, now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), win.Start)
	// 2024 is a leap year.
	require.Equal(t, time.Date(2024, time.February, 29, 23, 59, 59, 0, time.UTC), win.End)
}

func TestNewWindowSpansMonths(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC)

	win, err := NewWindow(2023, 11, 2024, 2, now)
	require.NoError(t, err)
	require.Equal(t, [][2]int{{2023, 11}, {2023, 12}, {2024, 1}, {2024, 2}}, win.Months())
}

func TestNewWindowValidation(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		startYear  int
		startMonth int
		endYear    int
		endMonth   int
		wantErr    string
	}{
		{"start month too low", 2024, 0, 2024, 1, "invalid start month"},
		{"start month too high", 2024, 13, 2024, 12, "invalid start month"},
		{"end month invalid", 2024, 1, 2024, 0, "invalid end month"},
		{"start year too old", 2019, 1, 2024, 1, "invalid start year"},
		{"end in future", 2026, 1, 2026, 9, "cannot be in the future"},
		{"end in future year", 2026, 1, 2027, 1, "cannot be in the future"},
		{"start after end", 2024, 6, 2024, 1, "cannot be after end"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewWindow(tc.startYear, tc.startMonth, tc.endYear, tc.endMonth, now)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewWindowCurrentMonthAllowed(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC)

	win, err := NewWindow(2026, 8, 2026, 8, now)
	require.NoError(t, err)
	// End of the current month may be in the future; only whole future
	// months are rejected.
	require.Equal(t, time.Date(2026, time.August, 31, 23, 59, 59, 0, time.UTC), win.End)
}
