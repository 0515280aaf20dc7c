package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pybitesdata/blogpipe/internal/warehouse"
)

// windowFlags holds the year/month window shared by the backfill commands.
type windowFlags struct {
	startYear  int
	startMonth int
	endYear    int
	endMonth   int
}

// addWindowFlags registers the window flags. All four default to the
// current month, so a bare invocation backfills just the month in flight.
func addWindowFlags(cmd *cobra.Command) *windowFlags {
	now := time.Now().UTC()
	f := &windowFlags{}
	cmd.Flags().IntVar(&f.startYear, "start-year", now.Year(), "first year of the backfill window")
	cmd.Flags().IntVar(&f.startMonth, "start-month", int(now.Month()), "first month of the backfill window (1-12)")
	cmd.Flags().IntVar(&f.endYear, "end-year", now.Year(), "last year of the backfill window")
	cmd.Flags().IntVar(&f.endMonth, "end-month", int(now.Month()), "last month of the backfill window (1-12)")
	return f
}

// window validates the flags and materializes the window. Validation
// errors propagate to RunE, which exits non-zero before any stage work.
func (f *windowFlags) window() (warehouse.Window, error) {
	return warehouse.NewWindow(f.startYear, f.startMonth, f.endYear, f.endMonth, time.Now().UTC())
}
