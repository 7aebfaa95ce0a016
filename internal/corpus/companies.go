// Package corpus describes the on-disk earnings call transcript collection:
// which companies are covered, how transcript filenames encode dates, and
// how the data directory is laid out.
package corpus

import (
	"sort"
	"strings"
)

// SupportedCompanies maps ticker symbols to company names for the
// 2016-2020 earnings call transcript corpus.
var SupportedCompanies = map[string]string{
	"AAPL":  "Apple Inc.",
	"AMD":   "Advanced Micro Devices Inc.",
	"AMZN":  "Amazon.com Inc.",
	"ASML":  "ASML Holding N.V.",
	"CSCO":  "Cisco Systems Inc.",
	"GOOGL": "Alphabet Inc.",
	"INTC":  "Intel Corporation",
	"MSFT":  "Microsoft Corporation",
	"MU":    "Micron Technology Inc.",
	"NVDA":  "NVIDIA Corporation",
}

// IsSupported reports whether the given ticker symbol is part of the corpus.
func IsSupported(symbol string) bool {
	_, ok := SupportedCompanies[strings.ToUpper(symbol)]
	return ok
}

// CompanyName returns the full company name for a ticker symbol, or the
// symbol itself when unknown.
func CompanyName(symbol string) string {
	if name, ok := SupportedCompanies[strings.ToUpper(symbol)]; ok {
		return name
	}
	return symbol
}

// Symbols returns all supported ticker symbols in sorted order.
func Symbols() []string {
	symbols := make([]string, 0, len(SupportedCompanies))
	for symbol := range SupportedCompanies {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// CollectionName returns the vector store collection for a company,
// one collection per ticker symbol.
func CollectionName(symbol string) string {
	return "transcripts_" + strings.ToLower(symbol)
}

// DocumentID builds the stable document identifier for a transcript file:
// lowercase symbol plus the filename without its extension.
func DocumentID(symbol, filename string) string {
	stem := filename
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		stem = filename[:idx]
	}
	return strings.ToLower(symbol) + "_" + stem
}
