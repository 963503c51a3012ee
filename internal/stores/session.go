package stores

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"time"

	"gpu-price-monitor/internal/scraper"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	browser "github.com/EDDYCJY/fake-useragent"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// Session is the fetch resource a job runner acquires for one run.
// Exclusively owned by one runner at a time; never shared across
// stores.
type Session struct {
	client *resty.Client
}

// NewSession builds an HTTP client dressed up as a regular browser:
// cookie jar, rotated user agent, Brazilian locale headers, and the
// Cloudflare bypass transport.
func NewSession(timeout time.Duration) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", browser.Computer())
	client.SetHeader("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")
	client.SetHeader("Referer", "https://www.google.com/")
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	return &Session{client: client}, nil
}

// GetDocument fetches a URL and parses the response body. Network and
// status failures come back as *scraper.FetchError, malformed bodies
// as *scraper.ParseError.
func (s *Session) GetDocument(ctx context.Context, url string) (*goquery.Document, error) {
	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, &scraper.FetchError{URL: url, Err: err}
	}
	if resp.StatusCode() != 200 {
		return nil, &scraper.FetchError{URL: url, Err: fmt.Errorf("status %d", resp.StatusCode())}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, &scraper.ParseError{URL: url, Msg: err.Error()}
	}
	return doc, nil
}

// Close releases the session. Idle connections are dropped so a
// finished run leaves nothing open.
func (s *Session) Close() error {
	if s.client != nil {
		s.client.GetClient().CloseIdleConnections()
	}
	return nil
}
