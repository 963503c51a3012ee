package stores

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"gpu-price-monitor/internal/models"
	"gpu-price-monitor/internal/scraper"

	"github.com/PuerkitoBio/goquery"
)

const pichauBaseURL = "https://www.pichau.com.br"

// Pichau extracts the Pichau GPU listing. Cards list several prices
// (list, installment, pix); the lowest tagged one is the real offer.
type Pichau struct {
	session *Session
	timeout time.Duration
}

var (
	pichauPriceRe = regexp.MustCompile(`R\$\s*[\d.]+,\d{2}`)
	// "12x de R$ 749,92" is an installment amount, not an offer.
	pichauInstallmentRe = regexp.MustCompile(`\d+\s*x\s*(?:de\s*)?R\$\s*[\d.]+,\d{2}`)
)

func NewPichau(timeout time.Duration) *Pichau {
	return &Pichau{timeout: timeout}
}

func (p *Pichau) Store() models.Store { return models.StorePichau }

func (p *Pichau) Open(_ context.Context, _ bool) error {
	session, err := NewSession(p.timeout)
	if err != nil {
		return err
	}
	p.session = session
	return nil
}

func (p *Pichau) Close() error {
	if p.session == nil {
		return nil
	}
	return p.session.Close()
}

func (p *Pichau) pageURL(page int) string {
	if page == 1 {
		return pichauBaseURL + "/hardware/placa-de-video"
	}
	return fmt.Sprintf("%s/hardware/placa-de-video?page=%d", pichauBaseURL, page)
}

func (p *Pichau) FetchPage(ctx context.Context, page int) (*goquery.Document, error) {
	url := p.pageURL(page)
	doc, err := p.session.GetDocument(ctx, url)
	if err != nil {
		return nil, err
	}
	if looksLikeCaptcha(doc) {
		return nil, &scraper.ParseError{URL: url, Msg: "verification page served"}
	}
	return doc, nil
}

func (p *Pichau) ParseListing(doc *goquery.Document) []models.RawRecord {
	var records []models.RawRecord
	doc.Find("div.MuiCard-root, article[data-cy*='product'], a[class*='product-card']").Each(func(_ int, card *goquery.Selection) {
		title := firstText(card, "h2", "a[data-cy*='product-name']", "div[class*='name']")
		url := firstHref(card, pichauBaseURL,
			"a[data-cy*='product-link']", "a[data-cy*='product-name']", "a[href*='/hardware/']", "a")

		// Take the pix price: the lowest of the R$ amounts on the
		// card, installments excluded.
		price := ""
		text := pichauInstallmentRe.ReplaceAllString(card.Text(), "")
		if matches := pichauPriceRe.FindAllString(text, -1); len(matches) > 0 {
			price = matches[0]
			for _, m := range matches[1:] {
				pv, err1 := scraper.ParsePrice(m)
				cv, err2 := scraper.ParsePrice(price)
				if err1 == nil && err2 == nil && pv < cv {
					price = m
				}
			}
		}

		if title == "" && url == "" {
			return
		}
		records = append(records, models.RawRecord{
			Store:       models.StorePichau,
			Title:       title,
			PriceRaw:    price,
			URL:         url,
			Available:   isAvailable(card),
			ExtractedAt: time.Now(),
		})
	})
	return records
}

func (p *Pichau) HasNextPage(doc *goquery.Document, _ int) bool {
	return doc.Find("button[aria-label='next page']:not([disabled]), a[rel='next']").Length() > 0
}
