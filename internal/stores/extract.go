package stores

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Keywords that mark a listing as out of stock on the Brazilian
// storefronts.
var unavailableKeywords = []string{
	"indisponível", "esgotado", "avise-me", "out of stock",
}

// firstText returns the trimmed text of the first selector that
// matches with non-empty content. Selector lists are ordered by
// preference, newest layout first.
func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if text := strings.TrimSpace(sel.Find(s).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// firstHref returns the first matching href, made absolute against
// the store base URL when relative.
func firstHref(sel *goquery.Selection, baseURL string, selectors ...string) string {
	for _, s := range selectors {
		if href, ok := sel.Find(s).First().Attr("href"); ok && href != "" {
			if strings.HasPrefix(href, "http") {
				return href
			}
			return baseURL + href
		}
	}
	// The card itself may be the anchor.
	if href, ok := sel.Attr("href"); ok && href != "" {
		if strings.HasPrefix(href, "http") {
			return href
		}
		return baseURL + href
	}
	return ""
}

// isAvailable checks the card text for unavailability keywords.
func isAvailable(sel *goquery.Selection) bool {
	text := strings.ToLower(sel.Text())
	for _, k := range unavailableKeywords {
		if strings.Contains(text, k) {
			return false
		}
	}
	return true
}

// looksLikeCaptcha detects interstitial verification pages by title.
func looksLikeCaptcha(doc *goquery.Document) bool {
	title := strings.ToLower(doc.Find("title").Text())
	for _, k := range []string{"captcha", "cloudflare", "just a moment", "verify"} {
		if strings.Contains(title, k) {
			return true
		}
	}
	return false
}
