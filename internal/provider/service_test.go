package provider

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"rotation/internal/domain"
	"rotation/internal/provider/mocks"
	"rotation/internal/util"
)

func TestFetcher_DailyBars(t *testing.T) {
	ctx := context.Background()
	start := util.NewDate(2023, 1, 1)
	end := util.NewDate(2023, 2, 1)

	bars := []domain.Bar{
		{Symbol: "AAPL", Date: util.NewDate(2023, 1, 3), Close: 125.07},
	}

	t.Run("primary source answers", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		primary := mocks.NewMockSource(ctrl)
		primary.EXPECT().Name().Return("primary").AnyTimes()
		primary.EXPECT().DailyBars(gomock.Any(), "AAPL", start, end).Return(bars, nil)

		fetcher := NewFetcher(6000, primary)
		got, err := fetcher.DailyBars(ctx, "AAPL", start, end)
		require.NoError(t, err)
		require.Equal(t, bars, got)
	})

	t.Run("falls back when the primary fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		primary := mocks.NewMockSource(ctrl)
		primary.EXPECT().Name().Return("primary").AnyTimes()
		primary.EXPECT().DailyBars(gomock.Any(), "AAPL", start, end).
			Return(nil, fmt.Errorf("rate limited"))

		fallback := mocks.NewMockSource(ctrl)
		fallback.EXPECT().Name().Return("fallback").AnyTimes()
		fallback.EXPECT().DailyBars(gomock.Any(), "AAPL", start, end).Return(bars, nil)

		fetcher := NewFetcher(6000, primary, fallback)
		got, err := fetcher.DailyBars(ctx, "AAPL", start, end)
		require.NoError(t, err)
		require.Equal(t, bars, got)
	})

	t.Run("every source failing surfaces an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		only := mocks.NewMockSource(ctrl)
		only.EXPECT().Name().Return("only").AnyTimes()
		only.EXPECT().DailyBars(gomock.Any(), "GONE", start, end).
			Return(nil, fmt.Errorf("no such symbol"))

		fetcher := NewFetcher(6000, only)
		_, err := fetcher.DailyBars(ctx, "GONE", start, end)
		require.Error(t, err)
		require.Contains(t, err.Error(), "GONE")
	})

	t.Run("breaker trips after consecutive failures", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		flaky := mocks.NewMockSource(ctrl)
		flaky.EXPECT().Name().Return("flaky").AnyTimes()
		flaky.EXPECT().DailyBars(gomock.Any(), gomock.Any(), start, end).
			Return(nil, fmt.Errorf("down")).
			Times(breakerConsecutiveFailures)

		fetcher := NewFetcher(6000, flaky)
		for i := 0; i < breakerConsecutiveFailures; i++ {
			_, err := fetcher.DailyBars(ctx, "AAPL", start, end)
			require.Error(t, err)
		}

		// Breaker is open; the source must not be called again.
		_, err := fetcher.DailyBars(ctx, "AAPL", start, end)
		require.Error(t, err)
	})
}

func TestFetcher_DailyMultiBars(t *testing.T) {
	ctx := context.Background()
	start := util.NewDate(2023, 1, 1)
	end := util.NewDate(2023, 2, 1)

	t.Run("per-symbol failures are skipped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		source := mocks.NewMockSource(ctrl)
		source.EXPECT().Name().Return("source").AnyTimes()
		source.EXPECT().DailyBars(gomock.Any(), "AAPL", start, end).
			Return([]domain.Bar{{Symbol: "AAPL", Date: start, Close: 125}}, nil)
		source.EXPECT().DailyBars(gomock.Any(), "GONE", start, end).
			Return(nil, fmt.Errorf("no such symbol"))

		fetcher := NewFetcher(6000, source)
		got, err := fetcher.DailyMultiBars(ctx, []string{"AAPL", "GONE"}, start, end)
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Contains(t, got, "AAPL")
	})
}
