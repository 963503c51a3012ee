package repository

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gpu-price-monitor/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SearchQuery holds catalog search filters.
type SearchQuery struct {
	Text         string
	ChipBrand    models.ChipBrand
	Manufacturer string
	Store        models.Store
	MinPrice     *float64
	MaxPrice     *float64
	SortBy       string // price | date | title
	SortOrder    string // asc | desc
	Limit        int
	Offset       int
}

// CatalogStats summarizes the current catalog.
type CatalogStats struct {
	TotalProducts int64                      `json:"total_products"`
	ByStore       map[models.Store]int64     `json:"by_store"`
	ByChipBrand   map[models.ChipBrand]int64 `json:"by_chip_brand"`
	AveragePrice  float64                    `json:"average_price"`
	MinPrice      float64                    `json:"min_price"`
	MaxPrice      float64                    `json:"max_price"`
	LatestScrape  *time.Time                 `json:"latest_scrape"`
}

// RunStats summarizes scraper runs over a window.
type RunStats struct {
	TotalRuns     int64   `json:"total_runs"`
	Successful    int64   `json:"successful_runs"`
	TotalProducts int64   `json:"total_products_found"`
	SuccessRate   float64 `json:"success_rate"`
}

// ProductRepository is the persistence collaborator for the product
// catalog, price history and run records.
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindByURL returns the product with the given URL, or nil when absent.
func (r *ProductRepository) FindByURL(url string) (*models.Product, error) {
	var p models.Product
	err := r.db.Where("url = ?", url).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by url: %w", err)
	}
	return &p, nil
}

// Upsert inserts the product or, when a row with the same URL exists,
// updates it in place. The insert-or-update is a single statement so
// concurrent reconcilers racing on the same URL cannot duplicate rows.
// Returns the persisted row.
func (r *ProductRepository) Upsert(p *models.Product) (*models.Product, error) {
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "price_raw", "price", "chip_brand", "manufacturer",
			"model", "available", "scraped_at", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return nil, fmt.Errorf("upsert product: %w", err)
	}

	// Re-read: on the update path the driver's last-insert id does not
	// identify the existing row.
	var saved models.Product
	if err := r.db.Where("url = ?", p.URL).First(&saved).Error; err != nil {
		return nil, fmt.Errorf("reload upserted product: %w", err)
	}
	return &saved, nil
}

// AppendHistory records one price observation for a product.
func (r *ProductRepository) AppendHistory(productID uint, price float64, recordedAt time.Time) error {
	entry := models.PriceHistory{
		ProductID:  productID,
		Price:      price,
		RecordedAt: recordedAt,
	}
	if err := r.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("append price history: %w", err)
	}
	return nil
}

// History returns a product's price history ordered oldest first.
func (r *ProductRepository) History(productID uint, limit int) ([]models.PriceHistory, error) {
	var entries []models.PriceHistory
	q := r.db.Where("product_id = ?", productID).Order("recorded_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load price history: %w", err)
	}
	return entries, nil
}

// PurgeHistory deletes history entries older than the cutoff. Current
// product state is untouched.
func (r *ProductRepository) PurgeHistory(olderThan time.Time) (int64, error) {
	res := r.db.Where("recorded_at < ?", olderThan).Delete(&models.PriceHistory{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge price history: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("[repository] purged %d price history entries older than %s", res.RowsAffected, olderThan.Format("2006-01-02"))
	}
	return res.RowsAffected, nil
}

func (r *ProductRepository) GetByID(id uint) (*models.Product, error) {
	var p models.Product
	err := r.db.First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// Search returns products matching the query filters.
func (r *ProductRepository) Search(query SearchQuery) ([]models.Product, error) {
	q := r.db.Model(&models.Product{})

	if query.Text != "" {
		like := "%" + query.Text + "%"
		q = q.Where("title LIKE ? OR model LIKE ? OR manufacturer LIKE ?", like, like, like)
	}
	if query.ChipBrand != "" {
		q = q.Where("chip_brand = ?", query.ChipBrand)
	}
	if query.Manufacturer != "" {
		q = q.Where("manufacturer LIKE ?", "%"+query.Manufacturer+"%")
	}
	if query.Store != "" {
		q = q.Where("store = ?", query.Store)
	}
	if query.MinPrice != nil {
		q = q.Where("price >= ?", *query.MinPrice)
	}
	if query.MaxPrice != nil {
		q = q.Where("price <= ?", *query.MaxPrice)
	}

	order := "price"
	switch query.SortBy {
	case "date":
		order = "scraped_at"
	case "title":
		order = "title"
	}
	if query.SortOrder == "desc" {
		order += " desc"
	}
	q = q.Order(order)

	limit := query.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	q = q.Limit(limit).Offset(query.Offset)

	var products []models.Product
	if err := q.Find(&products).Error; err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

// BestDeals returns the cheapest available products, optionally
// filtered by chip brand.
func (r *ProductRepository) BestDeals(limit int, chipBrand models.ChipBrand) ([]models.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	q := r.db.Where("price > 0 AND available = ?", true)
	if chipBrand != "" {
		q = q.Where("chip_brand = ?", chipBrand)
	}
	var products []models.Product
	if err := q.Order("price asc").Limit(limit).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("best deals: %w", err)
	}
	return products, nil
}

// AllProducts returns the full catalog ordered by store then price,
// used by the export endpoint.
func (r *ProductRepository) AllProducts() ([]models.Product, error) {
	var products []models.Product
	if err := r.db.Order("store asc, price asc").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) Stats() (*CatalogStats, error) {
	stats := &CatalogStats{
		ByStore:     make(map[models.Store]int64),
		ByChipBrand: make(map[models.ChipBrand]int64),
	}

	if err := r.db.Model(&models.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	type storeCount struct {
		Store models.Store
		N     int64
	}
	var byStore []storeCount
	if err := r.db.Model(&models.Product{}).
		Select("store, count(*) as n").Group("store").Scan(&byStore).Error; err != nil {
		return nil, fmt.Errorf("count by store: %w", err)
	}
	for _, c := range byStore {
		stats.ByStore[c.Store] = c.N
	}

	type brandCount struct {
		ChipBrand models.ChipBrand
		N         int64
	}
	var byBrand []brandCount
	if err := r.db.Model(&models.Product{}).
		Select("chip_brand, count(*) as n").Group("chip_brand").Scan(&byBrand).Error; err != nil {
		return nil, fmt.Errorf("count by chip brand: %w", err)
	}
	for _, c := range byBrand {
		stats.ByChipBrand[c.ChipBrand] = c.N
	}

	type priceAgg struct {
		Avg float64
		Min float64
		Max float64
	}
	var agg priceAgg
	if err := r.db.Model(&models.Product{}).Where("price > 0").
		Select("avg(price) as avg, min(price) as min, max(price) as max").
		Scan(&agg).Error; err != nil {
		return nil, fmt.Errorf("price aggregates: %w", err)
	}
	stats.AveragePrice = agg.Avg
	stats.MinPrice = agg.Min
	stats.MaxPrice = agg.Max

	var latest *time.Time
	if err := r.db.Model(&models.Product{}).
		Select("max(scraped_at)").Scan(&latest).Error; err != nil {
		return nil, fmt.Errorf("latest scrape: %w", err)
	}
	stats.LatestScrape = latest

	return stats, nil
}

// DailyPricePoint is one day of aggregated price history, feeding the
// dashboard line charts.
type DailyPricePoint struct {
	Day      string  `json:"day"`
	AvgPrice float64 `json:"avg_price"`
	MinPrice float64 `json:"min_price"`
	Samples  int64   `json:"samples"`
}

// StoreComparison aggregates current catalog prices per store.
type StoreComparison struct {
	Store     models.Store `json:"store"`
	Products  int64        `json:"products"`
	Available int64        `json:"available"`
	AvgPrice  float64      `json:"avg_price"`
	MinPrice  float64      `json:"min_price"`
	MaxPrice  float64      `json:"max_price"`
}

// PriceHistoryDaily aggregates price history per day over the window,
// optionally narrowed to one store or chip brand. Days without
// observations produce no point.
func (r *ProductRepository) PriceHistoryDaily(days int, store models.Store, chipBrand models.ChipBrand) ([]DailyPricePoint, error) {
	if days <= 0 || days > 365 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	q := r.db.Model(&models.PriceHistory{}).
		Joins("JOIN products ON products.id = price_histories.product_id").
		Where("price_histories.recorded_at >= ?", cutoff)
	if store != "" {
		q = q.Where("products.store = ?", store)
	}
	if chipBrand != "" {
		q = q.Where("products.chip_brand = ?", chipBrand)
	}

	var points []DailyPricePoint
	err := q.Select("DATE(price_histories.recorded_at) as day, " +
		"avg(price_histories.price) as avg_price, " +
		"min(price_histories.price) as min_price, " +
		"count(*) as samples").
		Group("DATE(price_histories.recorded_at)").
		Order("day asc").
		Scan(&points).Error
	if err != nil {
		return nil, fmt.Errorf("daily price history: %w", err)
	}
	return points, nil
}

// CompareStores aggregates the current catalog per store for the
// store-comparison chart.
func (r *ProductRepository) CompareStores() ([]StoreComparison, error) {
	var rows []StoreComparison
	err := r.db.Model(&models.Product{}).
		Where("price > 0").
		Select("store, count(*) as products, " +
			"sum(CASE WHEN available THEN 1 ELSE 0 END) as available, " +
			"avg(price) as avg_price, min(price) as min_price, max(price) as max_price").
		Group("store").
		Order("store asc").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("compare stores: %w", err)
	}
	return rows, nil
}

// RecordRun persists a finalized scraper run record.
func (r *ProductRepository) RecordRun(run *models.ScraperRun) error {
	if err := r.db.Create(run).Error; err != nil {
		return fmt.Errorf("record scraper run: %w", err)
	}
	return nil
}

func (r *ProductRepository) RecentRuns(limit int) ([]models.ScraperRun, error) {
	if limit <= 0 {
		limit = 10
	}
	var runs []models.ScraperRun
	if err := r.db.Order("started_at desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}
	return runs, nil
}

func (r *ProductRepository) RunStats(days int) (*RunStats, error) {
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	stats := &RunStats{}
	base := r.db.Model(&models.ScraperRun{}).Where("started_at >= ?", cutoff)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalRuns).Error; err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Where("success = ?", true).Count(&stats.Successful).Error; err != nil {
		return nil, fmt.Errorf("count successful runs: %w", err)
	}
	var total *int64
	if err := base.Session(&gorm.Session{}).Select("sum(products_found)").Scan(&total).Error; err != nil {
		return nil, fmt.Errorf("sum products found: %w", err)
	}
	if total != nil {
		stats.TotalProducts = *total
	}
	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(stats.Successful) / float64(stats.TotalRuns) * 100
	}
	return stats, nil
}
