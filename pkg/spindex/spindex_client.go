package spindex_client

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultURL serves the current S&P 500 constituent list as CSV with
// a Symbol column.
const DefaultURL = "https://raw.githubusercontent.com/datasets/s-and-p-500-companies/main/data/constituents.csv"

type Client struct {
	HTTPClient *http.Client
	URL        string
}

func NewClient() *Client {
	return &Client{
		HTTPClient: http.DefaultClient,
		URL:        DefaultURL,
	}
}

// FetchConstituents downloads the constituent list and returns the
// ticker symbols, normalized to the dotted-share-class convention
// price providers use (BRK.B -> BRK-B).
func (c *Client) FetchConstituents(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}
	response, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch constituents: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(response.Body)
		return nil, fmt.Errorf("constituents fetch failed with status %d: %s", response.StatusCode, string(body))
	}

	return parseConstituents(response.Body)
}

func parseConstituents(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read constituents header: %w", err)
	}

	symbolIdx := -1
	for i, column := range header {
		if strings.EqualFold(strings.TrimSpace(column), "symbol") {
			symbolIdx = i
			break
		}
	}
	if symbolIdx == -1 {
		return nil, fmt.Errorf("constituents csv has no symbol column: %v", header)
	}

	symbols := []string{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read constituents row: %w", err)
		}
		if symbolIdx >= len(record) {
			continue
		}
		symbol := NormalizeSymbol(record[symbolIdx])
		if symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("constituents csv contained no symbols")
	}
	return symbols, nil
}

// NormalizeSymbol maps share-class tickers to the hyphenated form
// (BRK.B -> BRK-B) and upper-cases.
func NormalizeSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return strings.ReplaceAll(symbol, ".", "-")
}
