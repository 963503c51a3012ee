package stores

import (
	"context"
	"fmt"
	"time"

	"gpu-price-monitor/internal/models"
	"gpu-price-monitor/internal/scraper"

	"github.com/PuerkitoBio/goquery"
)

const terabyteBaseURL = "https://www.terabyteshop.com.br"

// Terabyte extracts the TerabyteShop GPU listing.
type Terabyte struct {
	session *Session
	timeout time.Duration
}

func NewTerabyte(timeout time.Duration) *Terabyte {
	return &Terabyte{timeout: timeout}
}

func (t *Terabyte) Store() models.Store { return models.StoreTerabyte }

func (t *Terabyte) Open(_ context.Context, _ bool) error {
	session, err := NewSession(t.timeout)
	if err != nil {
		return err
	}
	t.session = session
	return nil
}

func (t *Terabyte) Close() error {
	if t.session == nil {
		return nil
	}
	return t.session.Close()
}

func (t *Terabyte) pageURL(page int) string {
	if page == 1 {
		return terabyteBaseURL + "/hardware/placas-de-video"
	}
	return fmt.Sprintf("%s/hardware/placas-de-video?pagina=%d", terabyteBaseURL, page)
}

func (t *Terabyte) FetchPage(ctx context.Context, page int) (*goquery.Document, error) {
	url := t.pageURL(page)
	doc, err := t.session.GetDocument(ctx, url)
	if err != nil {
		return nil, err
	}
	if looksLikeCaptcha(doc) {
		return nil, &scraper.ParseError{URL: url, Msg: "verification page served"}
	}
	return doc, nil
}

func (t *Terabyte) ParseListing(doc *goquery.Document) []models.RawRecord {
	var records []models.RawRecord
	doc.Find("div.product-item, div.pbox").Each(func(_ int, card *goquery.Selection) {
		title := firstText(card, "a.prod-name", "div.product-item__name", "h2")
		price := firstText(card,
			"div.product-item__new-price", "div.prod-new-price", "span.prod-new-price", "div[class*='new-price']")
		url := firstHref(card, terabyteBaseURL, "a.prod-name", "a.product-item__name", "a[href*='produto']")
		if title == "" && url == "" {
			return
		}
		records = append(records, models.RawRecord{
			Store:       models.StoreTerabyte,
			Title:       title,
			PriceRaw:    price,
			URL:         url,
			Available:   isAvailable(card),
			ExtractedAt: time.Now(),
		})
	})
	return records
}

func (t *Terabyte) HasNextPage(doc *goquery.Document, page int) bool {
	// Terabyte renders the pagination bar with one anchor per page.
	next := fmt.Sprintf("a[href*='pagina=%d']", page+1)
	return doc.Find(next).Length() > 0
}
