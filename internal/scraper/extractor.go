package scraper

import (
	"context"
	"time"

	"gpu-price-monitor/internal/models"

	"github.com/PuerkitoBio/goquery"
)

// Extractor is the capability set one retailer implementation
// supplies: fetching a listing page, parsing it into raw records, and
// deciding whether more pages follow. Concrete extractors own
// selectors and URL building only; retries and pacing belong to the
// job runner.
type Extractor interface {
	Store() models.Store

	// Open acquires the fetch session. The runner guarantees Close is
	// called on every exit path.
	Open(ctx context.Context, headless bool) error
	Close() error

	// FetchPage loads listing page n (1-based). Returns *FetchError on
	// network/timeout/status failures.
	FetchPage(ctx context.Context, page int) (*goquery.Document, error)

	// ParseListing extracts raw records from a fetched page.
	ParseListing(doc *goquery.Document) []models.RawRecord

	// HasNextPage reports whether a page after n exists.
	HasNextPage(doc *goquery.Document, page int) bool
}

// ExtractorFactory builds the extractor for a store. Injected into the
// orchestrator so this package stays independent of concrete stores.
type ExtractorFactory func(store models.Store) (Extractor, error)

// Catalog is the persistence collaborator the reconciler writes to.
// Upsert must be atomic with respect to the product URL.
type Catalog interface {
	FindByURL(url string) (*models.Product, error)
	Upsert(p *models.Product) (*models.Product, error)
	AppendHistory(productID uint, price float64, recordedAt time.Time) error
	RecordRun(run *models.ScraperRun) error
}
