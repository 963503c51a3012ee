package models

import (
	"strings"
	"time"
)

// Store identifies one of the monitored retailers.
type Store string

const (
	StoreKabum    Store = "Kabum"
	StorePichau   Store = "Pichau"
	StoreTerabyte Store = "Terabyte"
)

// AllStores returns every supported store in a fixed order.
func AllStores() []Store {
	return []Store{StoreKabum, StorePichau, StoreTerabyte}
}

// ParseStore resolves a store name case-insensitively.
func ParseStore(name string) (Store, bool) {
	for _, s := range AllStores() {
		if strings.EqualFold(string(s), name) {
			return s, true
		}
	}
	return "", false
}

// ChipBrand is the GPU chip vendor detected from a product title.
type ChipBrand string

const (
	ChipNVIDIA  ChipBrand = "NVIDIA"
	ChipAMD     ChipBrand = "AMD"
	ChipIntel   ChipBrand = "INTEL"
	ChipUnknown ChipBrand = "Unknown"
)

const (
	ManufacturerUnknown = "Unknown"
	ModelUnknown        = "Unknown"
)

// RawRecord is one product listing as extracted from a store page,
// before any cleaning. It is never persisted.
type RawRecord struct {
	Store       Store     `json:"store"`
	Title       string    `json:"title"`
	PriceRaw    string    `json:"price_raw"`
	URL         string    `json:"url"`
	Available   bool      `json:"available"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Product is the canonical catalog entry for one listing, keyed by URL.
type Product struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Title        string         `json:"title" gorm:"size:500;not null"`
	PriceRaw     string         `json:"price_raw" gorm:"size:50"`
	Price        float64        `json:"price" gorm:"not null;index"`
	ChipBrand    ChipBrand      `json:"chip_brand" gorm:"size:20;index"`
	Manufacturer string         `json:"manufacturer" gorm:"size:100;index"`
	Model        string         `json:"model" gorm:"size:100;index"`
	URL          string         `json:"url" gorm:"size:500;uniqueIndex;not null"`
	Store        Store          `json:"store" gorm:"size:20;index;not null"`
	Available    bool           `json:"available"`
	ScrapedAt    time.Time      `json:"scraped_at" gorm:"index"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	History      []PriceHistory `json:"-" gorm:"foreignKey:ProductID"`
}

// PriceHistory is one observed price point for a product. Rows are
// append-only; a retention sweep may purge old entries.
type PriceHistory struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ProductID  uint      `json:"product_id" gorm:"not null;index"`
	Price      float64   `json:"price" gorm:"not null"`
	RecordedAt time.Time `json:"recorded_at" gorm:"index;not null"`
}

// ScraperRun records one job runner execution for one store.
// Immutable once completed.
type ScraperRun struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	Store            Store      `json:"store" gorm:"size:20;index;not null"`
	PagesScraped     int        `json:"pages_scraped"`
	ProductsFound    int        `json:"products_found"`
	ProductsNew      int        `json:"products_new"`
	ProductsUpdated  int        `json:"products_updated"`
	ProductsRejected int        `json:"products_rejected"`
	Success          bool       `json:"success" gorm:"index"`
	ErrorMessage     string     `json:"error_message" gorm:"size:1000"`
	StartedAt        time.Time  `json:"started_at" gorm:"index;not null"`
	CompletedAt      *time.Time `json:"completed_at"`
}
