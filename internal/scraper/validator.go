package scraper

import (
	"fmt"
	"net/url"
	"unicode/utf8"

	"gpu-price-monitor/internal/models"
)

const minTitleLength = 5

// Validator checks product candidates against the integrity rules.
// Rules run in a fixed order and the first failure wins, so the
// reported reason is deterministic.
type Validator struct {
	minPrice float64
	maxPrice float64
	stores   map[models.Store]struct{}
}

// NewValidator builds a validator with exclusive price bounds and the
// set of accepted stores.
func NewValidator(minPrice, maxPrice float64, stores []models.Store) *Validator {
	set := make(map[models.Store]struct{}, len(stores))
	for _, s := range stores {
		set[s] = struct{}{}
	}
	return &Validator{minPrice: minPrice, maxPrice: maxPrice, stores: set}
}

// Validate returns nil for an acceptable candidate or a
// *ValidationError naming the first failed rule.
func (v *Validator) Validate(p models.Product) error {
	if p.Price <= v.minPrice || p.Price >= v.maxPrice {
		return &ValidationError{
			Reason: ReasonPriceOutOfRange,
			Detail: fmt.Sprintf("price %.2f outside (%.2f, %.2f)", p.Price, v.minPrice, v.maxPrice),
		}
	}

	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Reason: ReasonInvalidURL, Detail: p.URL}
	}

	if utf8.RuneCountInString(p.Title) < minTitleLength {
		return &ValidationError{Reason: ReasonTitleTooShort, Detail: p.Title}
	}

	if _, ok := v.stores[p.Store]; !ok {
		return &ValidationError{Reason: ReasonUnknownStore, Detail: string(p.Store)}
	}

	return nil
}
