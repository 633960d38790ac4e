package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"rotation/internal/domain"
	"rotation/internal/screen"
)

// Service writes run outputs under OutDir, stamping filenames with
// the run ID so repeated runs never clobber each other.
type Service struct {
	OutDir string
}

func NewService(outDir string) Service {
	return Service{OutDir: outDir}
}

type periodRow struct {
	Start           string  `csv:"start"`
	End             string  `csv:"end"`
	InCash          bool    `csv:"in_cash"`
	NSelected       int     `csv:"n_selected"`
	Symbols         string  `csv:"symbols"`
	PortfolioReturn float64 `csv:"portfolio_return"`
	BenchmarkReturn float64 `csv:"benchmark_return"`
	Turnover        float64 `csv:"turnover"`
	TxCost          float64 `csv:"tx_cost"`
	PortfolioValue  float64 `csv:"portfolio_value"`
	BenchmarkValue  float64 `csv:"benchmark_value"`
}

type equityRow struct {
	Date           string  `csv:"date"`
	PortfolioValue float64 `csv:"portfolio_value"`
	BenchmarkValue float64 `csv:"benchmark_value"`
}

type rankingRow struct {
	Rank             int     `csv:"rank"`
	Symbol           string  `csv:"symbol"`
	Composite        float64 `csv:"composite"`
	Momentum6M       float64 `csv:"momentum_6m"`
	Momentum12M      float64 `csv:"momentum_12m"`
	AboveLongMA      bool    `csv:"above_ma200"`
	Volatility       float64 `csv:"volatility"`
	RelativeStrength float64 `csv:"relative_strength"`
	Price            float64 `csv:"price"`
}

type portfolioRow struct {
	Symbol string  `csv:"symbol"`
	Weight float64 `csv:"weight"`
}

// periodParquetRow is the Parquet schema for period records, for
// downstream notebook analysis.
type periodParquetRow struct {
	Start           int64   `parquet:"start,timestamp(millisecond)"`
	End             int64   `parquet:"end,timestamp(millisecond)"`
	InCash          bool    `parquet:"in_cash"`
	NSelected       int32   `parquet:"n_selected"`
	Symbols         string  `parquet:"symbols"`
	PortfolioReturn float64 `parquet:"portfolio_return"`
	BenchmarkReturn float64 `parquet:"benchmark_return"`
	Turnover        float64 `parquet:"turnover"`
	TxCost          float64 `parquet:"tx_cost"`
	PortfolioValue  float64 `parquet:"portfolio_value"`
	BenchmarkValue  float64 `parquet:"benchmark_value"`
}

func (s Service) path(name string) string {
	return filepath.Join(s.OutDir, name)
}

func (s Service) ensureOutDir() error {
	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", s.OutDir, err)
	}
	return nil
}

// WriteBacktestOutputs writes the periods CSV, summary JSON, equity
// curve CSV, and Parquet export for one finished run, returning the
// paths written.
func (s Service) WriteBacktestOutputs(result *domain.RunResult) ([]string, error) {
	if err := s.ensureOutDir(); err != nil {
		return nil, err
	}
	stamp := fmt.Sprintf("backtest_%s", result.Summary.RunID)

	periodsPath := s.path(stamp + "_periods.csv")
	if err := writeCSV(periodsPath, periodRows(result.Periods)); err != nil {
		return nil, err
	}

	summaryPath := s.path(stamp + "_summary.json")
	if err := writeJSON(summaryPath, result.Summary); err != nil {
		return nil, err
	}

	equityPath := s.path(stamp + "_equity.csv")
	if err := writeCSV(equityPath, equityRows(result.Periods)); err != nil {
		return nil, err
	}

	parquetPath := s.path(stamp + "_periods.parquet")
	if err := parquet.WriteFile(parquetPath, parquetRows(result.Periods)); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", parquetPath, err)
	}

	return []string{periodsPath, summaryPath, equityPath, parquetPath}, nil
}

// WriteScreenOutputs writes the ranking and buy-list CSVs for one
// screen run.
func (s Service) WriteScreenOutputs(result *screen.Result, runID uuid.UUID) ([]string, error) {
	if err := s.ensureOutDir(); err != nil {
		return nil, err
	}
	stamp := fmt.Sprintf("screen_%s", runID)

	rankingPath := s.path(stamp + "_ranking.csv")
	if err := writeCSV(rankingPath, rankingRows(result.Rows)); err != nil {
		return nil, err
	}

	portfolioPath := s.path(stamp + "_portfolio.csv")
	rows := make([]portfolioRow, 0, len(result.BuyList.Symbols))
	for _, symbol := range result.BuyList.Symbols {
		rows = append(rows, portfolioRow{Symbol: symbol, Weight: result.BuyList.Weight(symbol)})
	}
	if err := writeCSV(portfolioPath, rows); err != nil {
		return nil, err
	}

	return []string{rankingPath, portfolioPath}, nil
}

func periodRows(periods []domain.PeriodRecord) []periodRow {
	rows := make([]periodRow, 0, len(periods))
	for _, period := range periods {
		rows = append(rows, periodRow{
			Start:           period.Start.Format(time.DateOnly),
			End:             period.End.Format(time.DateOnly),
			InCash:          period.InCash,
			NSelected:       period.NSelected,
			Symbols:         strings.Join(period.Holdings.Symbols, "|"),
			PortfolioReturn: period.PortfolioReturn,
			BenchmarkReturn: period.BenchmarkReturn,
			Turnover:        period.Turnover,
			TxCost:          period.TxCost,
			PortfolioValue:  period.PortfolioValue,
			BenchmarkValue:  period.BenchmarkValue,
		})
	}
	return rows
}

func equityRows(periods []domain.PeriodRecord) []equityRow {
	rows := make([]equityRow, 0, len(periods))
	for _, period := range periods {
		rows = append(rows, equityRow{
			Date:           period.End.Format(time.DateOnly),
			PortfolioValue: period.PortfolioValue,
			BenchmarkValue: period.BenchmarkValue,
		})
	}
	return rows
}

func rankingRows(screenRows []screen.Row) []rankingRow {
	rows := make([]rankingRow, 0, len(screenRows))
	for _, row := range screenRows {
		rows = append(rows, rankingRow{
			Rank:             row.Rank,
			Symbol:           row.Score.Symbol,
			Composite:        row.Score.Composite,
			Momentum6M:       row.Score.Snapshot.Momentum6M,
			Momentum12M:      row.Score.Snapshot.Momentum12M,
			AboveLongMA:      row.Score.Snapshot.AboveLongMA,
			Volatility:       row.Score.Snapshot.Volatility,
			RelativeStrength: row.RelativeStrength,
			Price:            row.Score.Snapshot.Price,
		})
	}
	return rows
}

func parquetRows(periods []domain.PeriodRecord) []periodParquetRow {
	rows := make([]periodParquetRow, 0, len(periods))
	for _, period := range periods {
		rows = append(rows, periodParquetRow{
			Start:           period.Start.UnixMilli(),
			End:             period.End.UnixMilli(),
			InCash:          period.InCash,
			NSelected:       int32(period.NSelected),
			Symbols:         strings.Join(period.Holdings.Symbols, "|"),
			PortfolioReturn: period.PortfolioReturn,
			BenchmarkReturn: period.BenchmarkReturn,
			Turnover:        period.Turnover,
			TxCost:          period.TxCost,
			PortfolioValue:  period.PortfolioValue,
			BenchmarkValue:  period.BenchmarkValue,
		})
	}
	return rows
}

func writeCSV[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ConsoleSummary renders the block the CLI prints after a backtest.
func ConsoleSummary(summary domain.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backtest %s\n", summary.RunID)
	fmt.Fprintf(&b, "  universe %s, top %d, benchmark %s, cost %.0f bps\n",
		summary.Universe, summary.TopN, summary.Benchmark, summary.TxCostBps)
	fmt.Fprintf(&b, "  %s to %s (%d periods)\n",
		summary.StartDate.Format(time.DateOnly), summary.EndDate.Format(time.DateOnly), summary.NPeriods)
	fmt.Fprintf(&b, "\n")
	fmt.Fprintf(&b, "  %-22s %10s %10s\n", "", "portfolio", "benchmark")
	fmt.Fprintf(&b, "  %-22s %9.2f%% %9.2f%%\n", "total return", summary.TotalReturn*100, summary.BenchmarkTotalReturn*100)
	fmt.Fprintf(&b, "  %-22s %9.2f%% %9.2f%%\n", "cagr", summary.CAGR*100, summary.BenchmarkCAGR*100)
	fmt.Fprintf(&b, "  %-22s %9.2f%% %9.2f%%\n", "max drawdown", summary.MaxDrawdown*100, summary.BenchmarkMaxDrawdown*100)
	fmt.Fprintf(&b, "  %-22s %9.2f%%\n", "annualized vol", summary.AnnualizedVol*100)
	fmt.Fprintf(&b, "  %-22s %10.2f\n", "sharpe", summary.Sharpe)
	fmt.Fprintf(&b, "  %-22s %9.2f%%\n", "win rate", summary.WinRate*100)
	fmt.Fprintf(&b, "  %-22s %9.2f%%\n", "months in cash", summary.PctInCash*100)
	fmt.Fprintf(&b, "  %-22s %9.2f%%\n", "best month", summary.BestPeriod*100)
	fmt.Fprintf(&b, "  %-22s %9.2f%%\n", "worst month", summary.WorstPeriod*100)
	fmt.Fprintf(&b, "  %-22s %9.2f%%\n", "outperformance", summary.Outperformance*100)
	return b.String()
}

// ConsoleScreen renders the screen-mode table.
func ConsoleScreen(result *screen.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Screen as of %s\n", result.AsOf.Format(time.DateOnly))
	regimeLabel := "risk-on"
	if !result.Summary.Regime.RiskOn {
		regimeLabel = "risk-off (cash)"
	}
	fmt.Fprintf(&b, "  regime: %s, median 6m momentum %.2f%%, %.0f%% above long MA\n\n",
		regimeLabel, result.Summary.MedianMomentum6M*100, result.Summary.PctAboveLongMA*100)

	fmt.Fprintf(&b, "  %4s %-8s %9s %8s %8s %8s %6s\n",
		"rank", "symbol", "composite", "mom 6m", "mom 12m", "vol", "ma200")
	for _, row := range result.Rows {
		above := " "
		if row.Score.Snapshot.AboveLongMA {
			above = "*"
		}
		fmt.Fprintf(&b, "  %4d %-8s %9.4f %7.2f%% %7.2f%% %7.2f%% %6s\n",
			row.Rank,
			row.Score.Symbol,
			row.Score.Composite,
			row.Score.Snapshot.Momentum6M*100,
			row.Score.Snapshot.Momentum12M*100,
			row.Score.Snapshot.Volatility*100,
			above,
		)
	}

	fmt.Fprintf(&b, "\n  buy list:")
	for _, symbol := range result.BuyList.Symbols {
		fmt.Fprintf(&b, " %s", symbol)
	}
	fmt.Fprintf(&b, "\n")
	return b.String()
}
