package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"rotation/internal/domain"
	"rotation/internal/util"
)

func weekdaysBetween(start, end time.Time) []time.Time {
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}

func TestMonthEnds(t *testing.T) {
	t.Run("picks the last trading day of each month", func(t *testing.T) {
		days := weekdaysBetween(util.NewDate(2023, 1, 2), util.NewDate(2023, 4, 14))

		ends, err := MonthEnds(days, util.NewDate(2023, 1, 1))
		require.NoError(t, err)

		want := []time.Time{
			util.NewDate(2023, 1, 31),
			util.NewDate(2023, 2, 28),
			util.NewDate(2023, 3, 31),
			util.NewDate(2023, 4, 14), // end of index counts as that month's last day
		}
		require.Equal(t, "", cmp.Diff(want, ends))
	})

	t.Run("month ending on a weekend resolves to the friday", func(t *testing.T) {
		// September 2023 ends on a Saturday.
		days := weekdaysBetween(util.NewDate(2023, 8, 1), util.NewDate(2023, 10, 31))

		ends, err := MonthEnds(days, util.NewDate(2023, 8, 1))
		require.NoError(t, err)
		require.Contains(t, ends, util.NewDate(2023, 9, 29))
	})

	t.Run("filters dates before start", func(t *testing.T) {
		days := weekdaysBetween(util.NewDate(2023, 1, 2), util.NewDate(2023, 6, 30))

		ends, err := MonthEnds(days, util.NewDate(2023, 4, 1))
		require.NoError(t, err)
		require.Equal(t, util.NewDate(2023, 4, 28), ends[0])
	})

	t.Run("deterministic on identical inputs", func(t *testing.T) {
		days := weekdaysBetween(util.NewDate(2022, 1, 3), util.NewDate(2022, 12, 30))
		first, err := MonthEnds(days, util.NewDate(2022, 1, 1))
		require.NoError(t, err)
		second, err := MonthEnds(days, util.NewDate(2022, 1, 1))
		require.NoError(t, err)
		require.Equal(t, "", cmp.Diff(first, second))
	})

	t.Run("fewer than two dates is an InsufficientRangeError", func(t *testing.T) {
		days := weekdaysBetween(util.NewDate(2023, 1, 2), util.NewDate(2023, 1, 20))

		_, err := MonthEnds(days, util.NewDate(2023, 1, 1))
		require.Error(t, err)

		var rangeErr domain.InsufficientRangeError
		require.True(t, errors.As(err, &rangeErr))
		require.Equal(t, 1, rangeErr.Have)
		require.Equal(t, 2, rangeErr.Need)
	})

	t.Run("empty index is an InsufficientRangeError", func(t *testing.T) {
		_, err := MonthEnds(nil, util.NewDate(2023, 1, 1))
		var rangeErr domain.InsufficientRangeError
		require.True(t, errors.As(err, &rangeErr))
		require.Equal(t, 0, rangeErr.Have)
	})
}
