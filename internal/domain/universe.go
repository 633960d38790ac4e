package domain

import (
	"sort"
	"strings"
)

type Universe struct {
	Name    string
	Symbols []string
}

// NewUniverse normalizes raw symbols: upper-cased, trimmed, deduped,
// sorted.
func NewUniverse(name string, symbols []string) Universe {
	seen := map[string]struct{}{}
	cleaned := []string{}
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		cleaned = append(cleaned, symbol)
	}
	sort.Strings(cleaned)
	return Universe{Name: name, Symbols: cleaned}
}

func (u Universe) Size() int {
	return len(u.Symbols)
}
