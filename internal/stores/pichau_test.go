package stores

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pichauListingHTML = `<html><body>
<div class="MuiCard-root">
  <a href="/hardware/placa-de-video-sapphire-radeon-rx-7900-xtx">
    <h2>Placa de Video Sapphire Radeon RX 7900 XTX Nitro+ 24GB</h2>
  </a>
  <div class="price-box">
    <span>R$ 8.999,00</span>
    <span>à vista R$ 8.499,90 no pix</span>
    <span>12x de R$ 749,92</span>
  </div>
</div>
<div class="MuiCard-root">
  <a href="/hardware/placa-de-video-asus-dual-rtx-4060">
    <h2>Placa de Video ASUS Dual RTX 4060 OC 8GB</h2>
  </a>
  <div class="price-box">
    <span>R$ 2.099,99</span>
  </div>
</div>
<button aria-label="next page">›</button>
</body></html>`

func TestPichauParseListing(t *testing.T) {
	doc := docFromHTML(t, pichauListingHTML)
	p := NewPichau(0)

	records := p.ParseListing(doc)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "Placa de Video Sapphire Radeon RX 7900 XTX Nitro+ 24GB", first.Title)
	// The lowest amount on the card is the pix price.
	assert.Equal(t, "R$ 8.499,90", first.PriceRaw)
	assert.Equal(t, "https://www.pichau.com.br/hardware/placa-de-video-sapphire-radeon-rx-7900-xtx", first.URL)
	assert.True(t, first.Available)

	assert.Equal(t, "R$ 2.099,99", records[1].PriceRaw)
}

func TestPichauHasNextPage(t *testing.T) {
	p := NewPichau(0)

	assert.True(t, p.HasNextPage(docFromHTML(t, pichauListingHTML), 1))
	assert.False(t, p.HasNextPage(docFromHTML(t, `<html><body><button aria-label="next page" disabled>›</button></body></html>`), 1))
	assert.False(t, p.HasNextPage(docFromHTML(t, `<html><body></body></html>`), 1))
}

func TestPichauPageURL(t *testing.T) {
	p := NewPichau(0)
	assert.Equal(t, "https://www.pichau.com.br/hardware/placa-de-video", p.pageURL(1))
	assert.Equal(t, "https://www.pichau.com.br/hardware/placa-de-video?page=2", p.pageURL(2))
}
