package stores

import (
	"context"
	"fmt"
	"time"

	"gpu-price-monitor/internal/models"
	"gpu-price-monitor/internal/scraper"

	"github.com/PuerkitoBio/goquery"
)

const kabumBaseURL = "https://www.kabum.com.br"

// Kabum extracts the Kabum GPU listing.
type Kabum struct {
	session *Session
	timeout time.Duration
}

func NewKabum(timeout time.Duration) *Kabum {
	return &Kabum{timeout: timeout}
}

func (k *Kabum) Store() models.Store { return models.StoreKabum }

func (k *Kabum) Open(_ context.Context, _ bool) error {
	session, err := NewSession(k.timeout)
	if err != nil {
		return err
	}
	k.session = session
	return nil
}

func (k *Kabum) Close() error {
	if k.session == nil {
		return nil
	}
	return k.session.Close()
}

func (k *Kabum) pageURL(page int) string {
	if page == 1 {
		return kabumBaseURL + "/hardware/placa-de-video-vga"
	}
	return fmt.Sprintf("%s/hardware/placa-de-video-vga?page_number=%d&page_size=20&sort=most_searched", kabumBaseURL, page)
}

func (k *Kabum) FetchPage(ctx context.Context, page int) (*goquery.Document, error) {
	url := k.pageURL(page)
	doc, err := k.session.GetDocument(ctx, url)
	if err != nil {
		return nil, err
	}
	if looksLikeCaptcha(doc) {
		return nil, &scraper.ParseError{URL: url, Msg: "verification page served"}
	}
	return doc, nil
}

func (k *Kabum) ParseListing(doc *goquery.Document) []models.RawRecord {
	var records []models.RawRecord
	doc.Find("article.productCard, div[class*='productCard']").Each(func(_ int, card *goquery.Selection) {
		title := firstText(card, "span.nameCard", "h2", "span[class*='name']")
		price := firstText(card, "span.priceCard", "span[class*='finalPrice']", "div[class*='price']")
		url := firstHref(card, kabumBaseURL, "a")
		if title == "" && url == "" {
			return
		}
		records = append(records, models.RawRecord{
			Store:       models.StoreKabum,
			Title:       title,
			PriceRaw:    price,
			URL:         url,
			Available:   isAvailable(card),
			ExtractedAt: time.Now(),
		})
	})
	return records
}

func (k *Kabum) HasNextPage(doc *goquery.Document, _ int) bool {
	next := doc.Find("a.nextLink, li.next > a").First()
	if next.Length() == 0 {
		return false
	}
	return !next.HasClass("disabled")
}
