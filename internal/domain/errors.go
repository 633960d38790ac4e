package domain

import (
	"fmt"
	"time"
)

// InsufficientRangeError aborts a run whose date range yields fewer
// than two rebalance dates, so no period could be simulated.
type InsufficientRangeError struct {
	Start time.Time
	End   time.Time
	Have  int
	Need  int
}

func (e InsufficientRangeError) Error() string {
	return fmt.Sprintf(
		"insufficient date range %s to %s: found %d rebalance dates, need %d",
		e.Start.Format(time.DateOnly), e.End.Format(time.DateOnly), e.Have, e.Need,
	)
}
