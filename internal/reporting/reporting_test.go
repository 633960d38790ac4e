package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"

	"rotation/internal/domain"
	"rotation/internal/screen"
	"rotation/internal/util"
)

func sampleResult() *domain.RunResult {
	return &domain.RunResult{
		Summary: domain.RunSummary{
			RunID:       uuid.New(),
			Universe:    "test",
			Benchmark:   "SPY",
			TopN:        2,
			StartDate:   util.NewDate(2023, 1, 31),
			EndDate:     util.NewDate(2023, 3, 31),
			NPeriods:    2,
			TotalReturn: 0.03,
		},
		Periods: []domain.PeriodRecord{
			{
				Start:           util.NewDate(2023, 1, 31),
				End:             util.NewDate(2023, 2, 28),
				Holdings:        domain.NewHoldingSet([]string{"AAPL", "MSFT"}),
				NSelected:       2,
				PortfolioReturn: 0.02,
				BenchmarkReturn: 0.01,
				Turnover:        1,
				PortfolioValue:  102,
				BenchmarkValue:  101,
			},
			{
				Start:           util.NewDate(2023, 2, 28),
				End:             util.NewDate(2023, 3, 31),
				InCash:          true,
				PortfolioReturn: 0,
				BenchmarkReturn: -0.01,
				Turnover:        1,
				PortfolioValue:  102,
				BenchmarkValue:  99.99,
			},
		},
	}
}

func TestWriteBacktestOutputs(t *testing.T) {
	service := NewService(t.TempDir())
	result := sampleResult()

	paths, err := service.WriteBacktestOutputs(result)
	require.NoError(t, err)
	require.Len(t, paths, 4)
	for _, path := range paths {
		require.FileExists(t, path)
		require.Contains(t, filepath.Base(path), result.Summary.RunID.String())
	}

	t.Run("periods csv round trips", func(t *testing.T) {
		f, err := os.Open(paths[0])
		require.NoError(t, err)
		defer f.Close()

		rows := []periodRow{}
		require.NoError(t, gocsv.UnmarshalFile(f, &rows))
		require.Len(t, rows, 2)
		require.Equal(t, "AAPL|MSFT", rows[0].Symbols)
		require.Equal(t, "2023-02-28", rows[0].End)
		require.True(t, rows[1].InCash)
	})

	t.Run("summary json holds the run id", func(t *testing.T) {
		data, err := os.ReadFile(paths[1])
		require.NoError(t, err)

		decoded := domain.RunSummary{}
		require.NoError(t, json.Unmarshal(data, &decoded))
		require.Equal(t, result.Summary.RunID, decoded.RunID)
		require.Equal(t, result.Summary.TotalReturn, decoded.TotalReturn)
	})

	t.Run("equity curve tracks period ends", func(t *testing.T) {
		f, err := os.Open(paths[2])
		require.NoError(t, err)
		defer f.Close()

		rows := []equityRow{}
		require.NoError(t, gocsv.UnmarshalFile(f, &rows))
		require.Len(t, rows, 2)
		require.Equal(t, 102.0, rows[0].PortfolioValue)
	})

	t.Run("parquet export reads back", func(t *testing.T) {
		rows, err := parquet.ReadFile[periodParquetRow](paths[3])
		require.NoError(t, err)
		require.Len(t, rows, 2)
		require.Equal(t, "AAPL|MSFT", rows[0].Symbols)
	})
}

func TestWriteScreenOutputs(t *testing.T) {
	service := NewService(t.TempDir())
	runID := uuid.New()

	result := &screen.Result{
		AsOf: util.NewDate(2023, 3, 31),
		Rows: []screen.Row{
			{Rank: 1, Score: domain.CandidateScore{Symbol: "AAPL", Composite: 0.9}},
			{Rank: 2, Score: domain.CandidateScore{Symbol: "MSFT", Composite: 0.8}},
		},
		BuyList: domain.NewHoldingSet([]string{"AAPL", "MSFT"}),
	}

	paths, err := service.WriteScreenOutputs(result, runID)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	f, err := os.Open(paths[1])
	require.NoError(t, err)
	defer f.Close()

	rows := []portfolioRow{}
	require.NoError(t, gocsv.UnmarshalFile(f, &rows))
	require.Len(t, rows, 2)
	require.InDelta(t, 0.5, rows[0].Weight, 1e-9)
}

func TestConsoleSummary(t *testing.T) {
	out := ConsoleSummary(sampleResult().Summary)
	require.Contains(t, out, "total return")
	require.Contains(t, out, "sharpe")
	require.Contains(t, out, "3.00%")
}

func TestConsoleScreen(t *testing.T) {
	result := &screen.Result{
		AsOf: util.NewDate(2023, 3, 31),
		Rows: []screen.Row{
			{Rank: 1, Score: domain.CandidateScore{Symbol: "AAPL", Composite: 0.9}},
		},
		BuyList: domain.NewHoldingSet([]string{"AAPL"}),
	}
	out := ConsoleScreen(result)
	require.Contains(t, out, "AAPL")
	require.Contains(t, out, "buy list")
	require.True(t, strings.Contains(out, "risk-off") || strings.Contains(out, "risk-on"))
}
