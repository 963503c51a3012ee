package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"gpu-price-monitor/internal/config"
	"gpu-price-monitor/internal/models"
	"gpu-price-monitor/internal/repository"
	"gpu-price-monitor/internal/scraper"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Handler wires the HTTP surface to the catalog and the orchestrator.
type Handler struct {
	repo *repository.ProductRepository
	orch *scraper.Orchestrator
	cfg  *config.Config
}

func SetupRoutes(r *gin.RouterGroup, db *gorm.DB, orch *scraper.Orchestrator, cfg *config.Config) *Handler {
	h := &Handler{
		repo: repository.NewProductRepository(db),
		orch: orch,
		cfg:  cfg,
	}

	products := r.Group("/products")
	{
		products.GET("", h.listProducts)
		products.GET("/deals", h.bestDeals)
		products.GET("/stats", h.catalogStats)
		products.GET("/export", h.exportProducts)
		products.GET("/:id", h.getProduct)
		products.GET("/:id/history", h.priceHistory)
	}

	analytics := r.Group("/analytics")
	{
		analytics.GET("/history", h.analyticsHistory)
		analytics.GET("/comparison", h.storeComparison)
	}

	scrapers := r.Group("/scrapers")
	{
		scrapers.POST("/run", h.startRun)
		scrapers.POST("/cancel", h.cancelRun)
		scrapers.GET("/status", h.runStatus)
		scrapers.GET("/runs", h.recentRuns)
		scrapers.GET("/stats", h.runStats)
	}

	return h
}

func (h *Handler) listProducts(c *gin.Context) {
	query := repository.SearchQuery{
		Text:         c.Query("q"),
		Manufacturer: c.Query("manufacturer"),
		SortBy:       c.DefaultQuery("sort_by", "price"),
		SortOrder:    c.DefaultQuery("sort_order", "asc"),
	}

	if brand := c.Query("chip_brand"); brand != "" {
		query.ChipBrand = models.ChipBrand(brand)
	}
	if storeName := c.Query("store"); storeName != "" {
		store, ok := models.ParseStore(storeName)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown store %q", storeName)})
			return
		}
		query.Store = store
	}
	if v, err := strconv.ParseFloat(c.Query("min_price"), 64); err == nil {
		query.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(c.Query("max_price"), 64); err == nil {
		query.MaxPrice = &v
	}
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	query.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	result, err := h.repo.Search(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": result, "count": len(result)})
}

func (h *Handler) getProduct(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	product, err := h.repo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) priceHistory(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	product, err := h.repo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}

	history, err := h.repo.History(uint(id), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product, "history": history})
}

func (h *Handler) bestDeals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	deals, err := h.repo.BestDeals(limit, models.ChipBrand(c.Query("chip_brand")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deals": deals})
}

func (h *Handler) catalogStats(c *gin.Context) {
	stats, err := h.repo.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// analyticsHistory serves the daily price aggregation behind the
// dashboard line charts.
func (h *Handler) analyticsHistory(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))

	var store models.Store
	if storeName := c.Query("store"); storeName != "" {
		s, ok := models.ParseStore(storeName)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown store %q", storeName)})
			return
		}
		store = s
	}

	points, err := h.repo.PriceHistoryDaily(days, store, models.ChipBrand(c.Query("chip_brand")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "points": points})
}

func (h *Handler) storeComparison(c *gin.Context) {
	comparison, err := h.repo.CompareStores()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": comparison})
}

// exportProducts streams the catalog as an xlsx workbook.
func (h *Handler) exportProducts(c *gin.Context) {
	products, err := h.repo.AllProducts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Products"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Title", "Price", "Chip Brand", "Manufacturer", "Model", "Store", "Available", "URL", "Scraped At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, p := range products {
		values := []any{
			p.ID, p.Title, p.Price, string(p.ChipBrand), p.Manufacturer,
			p.Model, string(p.Store), p.Available, p.URL,
			p.ScrapedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("gpu-prices-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type runRequestBody struct {
	Stores   []string `json:"stores"`
	Headless *bool    `json:"headless"`
	MaxPages int      `json:"max_pages"`
}

// startRun launches an asynchronous scraper run and returns its id.
// The summary arrives over the websocket sink and the run records.
func (h *Handler) startRun(c *gin.Context) {
	var body runRequestBody
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := scraper.RunRequest{
		Headless: h.cfg.Headless,
		MaxPages: body.MaxPages,
	}
	if body.Headless != nil {
		req.Headless = *body.Headless
	}
	for _, name := range body.Stores {
		store, ok := models.ParseStore(name)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown store %q", name)})
			return
		}
		req.Stores = append(req.Stores, store)
	}

	runID, err := h.orch.Start(req)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "message": "scraper run started"})
}

func (h *Handler) cancelRun(c *gin.Context) {
	if !h.orch.Running() {
		c.JSON(http.StatusConflict, gin.H{"error": "no scraper run in progress"})
		return
	}
	h.orch.Cancel()
	c.JSON(http.StatusOK, gin.H{"message": "cancellation requested"})
}

func (h *Handler) runStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"running": h.orch.Running()})
}

func (h *Handler) recentRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	runs, err := h.repo.RecentRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *Handler) runStats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	stats, err := h.repo.RunStats(days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
