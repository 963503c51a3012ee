package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"gpu-price-monitor/internal/models"
)

// Cleaner normalizes raw extracted records into product candidates.
// Pure: never mutates its input and has no side effects.
type Cleaner struct{}

var numericTokenRe = regexp.MustCompile(`\d[\d.,]*`)

// Clean produces a product candidate from a raw record. Returns a
// *CleaningError when the price field has no extractable numeric value.
func (Cleaner) Clean(raw models.RawRecord) (models.Product, error) {
	price, err := ParsePrice(raw.PriceRaw)
	if err != nil {
		return models.Product{}, err
	}

	scrapedAt := raw.ExtractedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now()
	}

	return models.Product{
		Title:     normalizeText(raw.Title),
		PriceRaw:  normalizeText(raw.PriceRaw),
		Price:     price,
		URL:       strings.TrimSpace(raw.URL),
		Store:     raw.Store,
		Available: raw.Available,
		ScrapedAt: scrapedAt,
	}, nil
}

// ParsePrice converts a Brazilian-formatted price string to its decimal
// value: "R$ 10.000,00" -> 10000.00. Dots are thousands separators and
// the comma is the decimal separator.
func ParsePrice(s string) (float64, error) {
	cleaned := normalizeText(s)
	cleaned = strings.ReplaceAll(cleaned, "R$", "")

	token := numericTokenRe.FindString(cleaned)
	if token == "" {
		return 0, &CleaningError{Field: "price", Value: s}
	}

	token = strings.ReplaceAll(token, ".", "")
	token = strings.ReplaceAll(token, ",", ".")

	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, &CleaningError{Field: "price", Value: s}
	}
	return value, nil
}

// normalizeText trims the string, replaces non-breaking space variants
// left over from HTML extraction, and collapses runs of whitespace.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}
