package universe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"rotation/internal/domain"
	"rotation/internal/logger"
)

// Built-in universe names. Anything else passed to Load is treated
// as a path to a CSV file.
const (
	SP500    = "sp500"
	Midcap   = "midcap"
	Combined = "combined"
)

// ConstituentsClient fetches the current S&P 500 member list.
type ConstituentsClient interface {
	FetchConstituents(ctx context.Context) ([]string, error)
}

type symbolRow struct {
	Symbol string `csv:"symbol"`
}

// holdingRow matches the ETF holdings files used to rebuild the
// midcap universe. Issuer files carry a preamble before the header,
// which loadHoldingsCSV skips.
type holdingRow struct {
	Ticker string `csv:"Ticker"`
	Name   string `csv:"Name"`
	Weight string `csv:"Weight"`
}

type Service struct {
	DataDir      string
	Constituents ConstituentsClient
}

func NewService(dataDir string, constituents ConstituentsClient) Service {
	return Service{DataDir: dataDir, Constituents: constituents}
}

func (s Service) universePath(name string) string {
	return filepath.Join(s.DataDir, "universes", name+".csv")
}

// Load resolves a built-in universe name or a CSV path to a
// normalized Universe. An empty result is an error: a run over zero
// candidates is a configuration problem, not a degraded result.
func (s Service) Load(nameOrPath string) (domain.Universe, error) {
	name := nameOrPath
	path := nameOrPath
	switch nameOrPath {
	case SP500, Midcap, Combined:
		path = s.universePath(nameOrPath)
	default:
		name = strings.TrimSuffix(filepath.Base(nameOrPath), ".csv")
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.Universe{}, fmt.Errorf("failed to open universe %s: %w", nameOrPath, err)
	}
	defer f.Close()

	rows := []symbolRow{}
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return domain.Universe{}, fmt.Errorf("failed to parse universe %s: %w", nameOrPath, err)
	}

	symbols := make([]string, 0, len(rows))
	for _, row := range rows {
		symbols = append(symbols, row.Symbol)
	}

	universe := domain.NewUniverse(name, symbols)
	if universe.Size() == 0 {
		return domain.Universe{}, fmt.Errorf("universe %s is empty", nameOrPath)
	}
	return universe, nil
}

func (s Service) save(universe domain.Universe) error {
	path := s.universePath(universe.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create universe dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create universe file %s: %w", path, err)
	}
	defer f.Close()

	rows := make([]symbolRow, 0, universe.Size())
	for _, symbol := range universe.Symbols {
		rows = append(rows, symbolRow{Symbol: symbol})
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("failed to write universe %s: %w", path, err)
	}
	return nil
}

// Update rebuilds the built-in universe files: sp500 from the
// fetched constituent list, midcap from an ETF holdings file placed
// under <data>/holdings, and combined as their union. A missing
// holdings file keeps the previous midcap universe.
func (s Service) Update(ctx context.Context) error {
	log := logger.FromContext(ctx)

	sp500Symbols, err := s.Constituents.FetchConstituents(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch sp500 constituents: %w", err)
	}
	sp500 := domain.NewUniverse(SP500, sp500Symbols)
	if err := s.save(sp500); err != nil {
		return err
	}
	log.Infow("universe updated", "universe", SP500, "symbols", sp500.Size())

	midcap, err := s.loadMidcapHoldings()
	if err != nil {
		log.Warnw("midcap holdings unavailable, keeping existing universe", "error", err)
		midcap, err = s.Load(Midcap)
		if err != nil {
			midcap = domain.NewUniverse(Midcap, nil)
		}
	} else {
		if err := s.save(midcap); err != nil {
			return err
		}
		log.Infow("universe updated", "universe", Midcap, "symbols", midcap.Size())
	}

	combined := domain.NewUniverse(Combined, append(sp500.Symbols, midcap.Symbols...))
	if err := s.save(combined); err != nil {
		return err
	}
	log.Infow("universe updated", "universe", Combined, "symbols", combined.Size())

	return nil
}

func (s Service) loadMidcapHoldings() (domain.Universe, error) {
	path := filepath.Join(s.DataDir, "holdings", "midcap_holdings.csv")
	rows, err := loadHoldingsCSV(path)
	if err != nil {
		return domain.Universe{}, err
	}

	symbols := make([]string, 0, len(rows))
	for _, row := range rows {
		symbols = append(symbols, row.Ticker)
	}
	universe := domain.NewUniverse(Midcap, symbols)
	if universe.Size() == 0 {
		return domain.Universe{}, fmt.Errorf("holdings file %s contained no tickers", path)
	}
	return universe, nil
}

// loadHoldingsCSV reads an issuer holdings file, skipping the report
// preamble above the Ticker header row.
func loadHoldingsCSV(path string) ([]holdingRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open holdings file %s: %w", path, err)
	}
	defer f.Close()

	var body strings.Builder
	foundHeader := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !foundHeader {
			if !strings.HasPrefix(strings.TrimSpace(line), "Ticker") {
				continue
			}
			foundHeader = true
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read holdings file %s: %w", path, err)
	}
	if !foundHeader {
		return nil, fmt.Errorf("holdings file %s has no Ticker header", path)
	}

	rows := []holdingRow{}
	if err := gocsv.UnmarshalString(body.String(), &rows); err != nil {
		return nil, fmt.Errorf("failed to parse holdings file %s: %w", path, err)
	}
	return rows, nil
}
