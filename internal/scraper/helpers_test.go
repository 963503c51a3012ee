package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gpu-price-monitor/internal/config"
	"gpu-price-monitor/internal/models"

	"github.com/PuerkitoBio/goquery"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxConcurrent: 3,
		MaxPages:      5,
		MaxRetries:    2,
		BackoffBase:   time.Millisecond,
		BackoffCap:    4 * time.Millisecond,
		MinDelay:      time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		SkipPacing:    true,
		FetchTimeout:  time.Second,
		JobTimeout:    5 * time.Second,
		PriceMin:      0,
		PriceMax:      100000,
	}
}

func emptyDoc() *goquery.Document {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	return doc
}

func rawRecord(store models.Store, title, price, url string) models.RawRecord {
	return models.RawRecord{
		Store:       store,
		Title:       title,
		PriceRaw:    price,
		URL:         url,
		Available:   true,
		ExtractedAt: time.Now(),
	}
}

// fakeExtractor serves pre-baked records page by page. failFetches > 0
// fails that many fetches before succeeding; -1 fails every fetch.
type fakeExtractor struct {
	store       models.Store
	pages       [][]models.RawRecord
	failFetches int
	openErr     error
	openBlock   chan struct{}

	mu       sync.Mutex
	opened   bool
	closed   bool
	fetches  int
	lastPage int
}

func (f *fakeExtractor) Store() models.Store { return f.store }

func (f *fakeExtractor) Open(ctx context.Context, _ bool) error {
	if f.openBlock != nil {
		select {
		case <-f.openBlock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.openErr != nil {
		return f.openErr
	}
	f.mu.Lock()
	f.opened = true
	f.mu.Unlock()
	return nil
}

func (f *fakeExtractor) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeExtractor) FetchPage(ctx context.Context, page int) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.failFetches == -1 || f.fetches <= f.failFetches {
		return nil, &FetchError{URL: fmt.Sprintf("https://example.com/page/%d", page), Err: fmt.Errorf("connection reset")}
	}
	f.lastPage = page
	return emptyDoc(), nil
}

func (f *fakeExtractor) ParseListing(*goquery.Document) []models.RawRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lastPage < 1 || f.lastPage > len(f.pages) {
		return nil
	}
	return f.pages[f.lastPage-1]
}

func (f *fakeExtractor) HasNextPage(_ *goquery.Document, page int) bool {
	return page < len(f.pages)
}

func (f *fakeExtractor) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeExtractor) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeCatalog is an in-memory Catalog keyed by URL.
type fakeCatalog struct {
	mu         sync.Mutex
	products   map[string]*models.Product
	history    map[uint][]models.PriceHistory
	runs       []*models.ScraperRun
	nextID     uint
	upsertErr  error
	findErr    error
	historyErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: make(map[string]*models.Product),
		history:  make(map[uint][]models.PriceHistory),
	}
}

func (c *fakeCatalog) FindByURL(url string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.findErr != nil {
		return nil, c.findErr
	}
	p, ok := c.products[url]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (c *fakeCatalog) Upsert(p *models.Product) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.upsertErr != nil {
		return nil, c.upsertErr
	}
	existing, ok := c.products[p.URL]
	if ok {
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	} else {
		c.nextID++
		p.ID = c.nextID
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = time.Now()
	cp := *p
	c.products[p.URL] = &cp
	out := cp
	return &out, nil
}

func (c *fakeCatalog) AppendHistory(productID uint, price float64, recordedAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.historyErr != nil {
		return c.historyErr
	}
	c.history[productID] = append(c.history[productID], models.PriceHistory{
		ProductID:  productID,
		Price:      price,
		RecordedAt: recordedAt,
	})
	return nil
}

func (c *fakeCatalog) RecordRun(run *models.ScraperRun) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs = append(c.runs, run)
	return nil
}

func (c *fakeCatalog) productCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.products)
}

func (c *fakeCatalog) historyFor(url string) []models.PriceHistory {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[url]
	if !ok {
		return nil
	}
	return append([]models.PriceHistory(nil), c.history[p.ID]...)
}

func (c *fakeCatalog) recordedRuns() []*models.ScraperRun {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*models.ScraperRun(nil), c.runs...)
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	name    string
	payload map[string]any
}

func (p *recordingPublisher) Publish(event string, payload map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{name: event, payload: payload})
}

func (p *recordingPublisher) named(name string) []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []recordedEvent
	for _, e := range p.events {
		if e.name == name {
			out = append(out, e)
		}
	}
	return out
}
