package scraper

import (
	"regexp"
	"strings"

	"gpu-price-monitor/internal/models"
)

// Enricher derives chip brand, manufacturer and model from a product
// title via ordered keyword tables. Total: never fails, misses yield
// the Unknown values.
type Enricher struct{}

var (
	nvidiaKeywords = []string{"GEFORCE", "RTX", "GTX", "NVIDIA"}
	amdKeywords    = []string{"RADEON", "RX ", "AMD"}
	intelKeywords  = []string{"ARC ", "INTEL"}

	knownManufacturers = []string{
		"ASUS", "MSI", "GIGABYTE", "GALAX", "XFX", "ASROCK", "ZOTAC",
		"PNY", "POWERCOLOR", "SAPPHIRE", "COLORFUL", "INNO3D", "PALIT",
		"EVGA", "PCYES", "MANCER", "GAINWARD", "AFOX", "BIOSTAR",
		"MANLI", "MAXSUN", "LEADTEK", "SPARKLE", "SUPERFRAME", "DUEX",
	}

	// XTX must come before XT in the suffix alternation.
	nvidiaModelRe = regexp.MustCompile(`(RTX|GTX)\s*(\d{3,4})\s*(TI|SUPER)?`)
	amdModelRe    = regexp.MustCompile(`(RX)\s*(\d{3,4})\s*(XTX|XT|GRE)?`)
	intelModelRe  = regexp.MustCompile(`(ARC)\s*(A\d{3})`)
)

// Enrich returns a copy of the candidate with classification fields
// filled in.
func (Enricher) Enrich(p models.Product) models.Product {
	p.ChipBrand = DetectChipBrand(p.Title)
	p.Manufacturer = DetectManufacturer(p.Title, p.URL)
	p.Model = ExtractModel(p.Title)
	return p
}

// DetectChipBrand matches the prioritized keyword table against the
// title, case-insensitively. NVIDIA wins over AMD wins over Intel.
func DetectChipBrand(title string) models.ChipBrand {
	upper := strings.ToUpper(title)
	if containsAny(upper, nvidiaKeywords) {
		return models.ChipNVIDIA
	}
	if containsAny(upper, amdKeywords) {
		return models.ChipAMD
	}
	if containsAny(upper, intelKeywords) {
		return models.ChipIntel
	}
	return models.ChipUnknown
}

// DetectManufacturer looks the known board-partner list up in the
// title first, then in the URL path.
func DetectManufacturer(title, productURL string) string {
	upper := strings.ToUpper(title)
	for _, m := range knownManufacturers {
		if strings.Contains(upper, m) {
			return m
		}
	}

	lowerURL := strings.ToLower(productURL)
	for _, m := range knownManufacturers {
		lm := strings.ToLower(m)
		if strings.Contains(lowerURL, "-"+lm+"-") || strings.Contains(lowerURL, "/"+lm+"-") {
			return m
		}
	}

	return models.ManufacturerUnknown
}

// ExtractModel pulls the GPU model out of the title, e.g. "RTX 4090"
// or "RX 7900 XT". First matching pattern wins.
func ExtractModel(title string) string {
	upper := strings.ToUpper(title)

	for _, re := range []*regexp.Regexp{nvidiaModelRe, amdModelRe, intelModelRe} {
		m := re.FindStringSubmatch(upper)
		if m == nil {
			continue
		}
		model := m[1] + " " + m[2]
		if len(m) > 3 && m[3] != "" {
			model += " " + m[3]
		}
		return model
	}

	return models.ModelUnknown
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
