package ingest

import "strings"

// ResolveSymbols derives the trading pairs to fetch from a set of currency
// codes. Stablecoins are skipped (their quote rate is definitionally 1.0) and
// so are currencies the exchange does not list. Output order follows the
// input order, which the ledger reader sorts ascending.
func ResolveSymbols(currencies []string, quoteAsset string, exclude, stablecoins map[string]struct{}) []string {
	symbols := make([]string, 0, len(currencies))
	for _, currency := range currencies {
		code := strings.ToUpper(strings.TrimSpace(currency))
		if code == "" {
			continue
		}
		if _, ok := stablecoins[code]; ok {
			continue
		}
		if _, ok := exclude[code]; ok {
			continue
		}
		symbols = append(symbols, code+quoteAsset)
	}
	return symbols
}

// CurrencySet normalizes a configured currency list into a lookup set.
func CurrencySet(currencies []string) map[string]struct{} {
	set := make(map[string]struct{}, len(currencies))
	for _, c := range currencies {
		code := strings.ToUpper(strings.TrimSpace(c))
		if code != "" {
			set[code] = struct{}{}
		}
	}
	return set
}
