package stores

import (
	"fmt"

	"gpu-price-monitor/internal/config"
	"gpu-price-monitor/internal/models"
	"gpu-price-monitor/internal/scraper"
)

// Factory returns the extractor factory for the configured timeout.
// Adding a store means adding a constructor here and implementing the
// scraper.Extractor interface; shared logic never branches on store
// names.
func Factory(cfg *config.Config) scraper.ExtractorFactory {
	constructors := map[models.Store]func() scraper.Extractor{
		models.StoreKabum:    func() scraper.Extractor { return NewKabum(cfg.FetchTimeout) },
		models.StorePichau:   func() scraper.Extractor { return NewPichau(cfg.FetchTimeout) },
		models.StoreTerabyte: func() scraper.Extractor { return NewTerabyte(cfg.FetchTimeout) },
	}

	return func(store models.Store) (scraper.Extractor, error) {
		ctor, ok := constructors[store]
		if !ok {
			return nil, fmt.Errorf("no extractor registered for store %q", store)
		}
		return ctor(), nil
	}
}
