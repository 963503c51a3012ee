package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gpu-price-monitor/internal/config"
	"gpu-price-monitor/internal/models"

	"github.com/google/uuid"
)

// ErrRunInProgress is returned when a run is requested while another
// is still executing.
var ErrRunInProgress = errors.New("a scraper run is already in progress")

// RunRequest selects which stores to scrape and with what limits.
type RunRequest struct {
	Stores   []models.Store `json:"stores"`
	Headless bool           `json:"headless"`
	MaxPages int            `json:"max_pages"`
}

// StoreResult is one store's outcome within a run.
type StoreResult struct {
	Store            models.Store `json:"store"`
	Success          bool         `json:"success"`
	Pages            int          `json:"pages"`
	ProductsFound    int          `json:"products_found"`
	ProductsNew      int          `json:"products_new"`
	ProductsUpdated  int          `json:"products_updated"`
	ProductsRejected int          `json:"products_rejected"`
	Error            string       `json:"error,omitempty"`
	Duration         float64      `json:"duration"`
}

// RunSummary aggregates a whole run across stores.
type RunSummary struct {
	RunID         string        `json:"run_id"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   time.Time     `json:"completed_at"`
	Stores        []StoreResult `json:"stores"`
	TotalFound    int           `json:"total_found"`
	TotalNew      int           `json:"total_new"`
	TotalUpdated  int           `json:"total_updated"`
	TotalRejected int           `json:"total_rejected"`
}

// Orchestrator fans scraper jobs out across stores under a
// concurrency cap. Store jobs are isolated: one failing never cancels
// its siblings, and per-store outcomes are message-passed back rather
// than accumulated in shared counters.
type Orchestrator struct {
	cfg      *config.Config
	catalog  Catalog
	pub      Publisher
	factory  ExtractorFactory
	pipeline *Pipeline

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
}

func NewOrchestrator(cfg *config.Config, catalog Catalog, pub Publisher, factory ExtractorFactory) *Orchestrator {
	if pub == nil {
		pub = NopPublisher{}
	}
	validator := NewValidator(cfg.PriceMin, cfg.PriceMax, models.AllStores())
	return &Orchestrator{
		cfg:      cfg,
		catalog:  catalog,
		pub:      pub,
		factory:  factory,
		pipeline: NewPipeline(validator),
	}
}

// Running reports whether a run is currently executing.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Start launches a run in the background and returns its identifier
// immediately. The summary is delivered asynchronously over the event
// sink and through the persisted run records.
func (o *Orchestrator) Start(req RunRequest) (string, error) {
	if !o.running.CompareAndSwap(false, true) {
		return "", ErrRunInProgress
	}

	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	go func() {
		defer o.running.Store(false)
		defer cancel()
		o.execute(ctx, runID, req)
	}()

	return runID, nil
}

// Run executes a run synchronously.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunSummary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	return o.execute(ctx, uuid.NewString(), req), nil
}

// Cancel signals the in-flight run, if any, to stop before its next
// page fetch or delay.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

func (o *Orchestrator) execute(ctx context.Context, runID string, req RunRequest) *RunSummary {
	stores := req.Stores
	if len(stores) == 0 {
		stores = models.AllStores()
	}

	summary := &RunSummary{RunID: runID, StartedAt: time.Now()}
	o.pub.Publish(EventRunStarted, map[string]any{
		"run_id": runID,
		"stores": stores,
	})
	log.Printf("[orchestrator] run %s started: %d stores, concurrency %d", runID, len(stores), o.cfg.MaxConcurrent)

	sem := make(chan struct{}, o.cfg.MaxConcurrent)
	results := make(chan StoreResult, len(stores))

	var wg sync.WaitGroup
	for _, store := range stores {
		wg.Add(1)
		go func(store models.Store) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- o.runStore(ctx, store, req)
		}(store)
	}
	wg.Wait()
	close(results)

	for res := range results {
		summary.Stores = append(summary.Stores, res)
		summary.TotalFound += res.ProductsFound
		summary.TotalNew += res.ProductsNew
		summary.TotalUpdated += res.ProductsUpdated
		summary.TotalRejected += res.ProductsRejected
	}
	sort.Slice(summary.Stores, func(i, j int) bool {
		return summary.Stores[i].Store < summary.Stores[j].Store
	})
	summary.CompletedAt = time.Now()

	o.pub.Publish(EventRunCompleted, map[string]any{
		"run_id":        runID,
		"stores":        summary.Stores,
		"total_found":   summary.TotalFound,
		"total_new":     summary.TotalNew,
		"total_updated": summary.TotalUpdated,
		"duration":      summary.CompletedAt.Sub(summary.StartedAt).Seconds(),
	})
	log.Printf("[orchestrator] run %s completed: found %d, new %d, updated %d",
		runID, summary.TotalFound, summary.TotalNew, summary.TotalUpdated)

	return summary
}

// runStore drives one store through runner -> pipeline -> reconciler
// and records the run. All failures, panics included, stay inside this
// store's result.
func (o *Orchestrator) runStore(ctx context.Context, store models.Store, req RunRequest) (result StoreResult) {
	result = StoreResult{Store: store}
	startedAt := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", r)
			log.Printf("[orchestrator] store %s panicked: %v", store, r)
		}
		result.Duration = time.Since(startedAt).Seconds()
		o.recordRun(store, startedAt, result)
	}()

	extractor, err := o.factory(store)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	runner := NewJobRunner(extractor, o.cfg, o.pub, req.MaxPages, req.Headless)
	job := runner.Run(ctx)
	result.Pages = job.Pages
	if job.Err != nil {
		result.Error = job.Err.Error()
		return result
	}

	accepted, rejected := o.pipeline.Process(job.Records)
	result.ProductsFound = len(accepted)
	result.ProductsRejected = len(rejected)

	rec, err := NewReconciler(o.catalog, o.pub).Reconcile(ctx, accepted)
	result.ProductsNew = rec.New
	result.ProductsUpdated = rec.Updated
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true
	return result
}

func (o *Orchestrator) recordRun(store models.Store, startedAt time.Time, res StoreResult) {
	completedAt := time.Now()
	run := &models.ScraperRun{
		Store:            store,
		PagesScraped:     res.Pages,
		ProductsFound:    res.ProductsFound,
		ProductsNew:      res.ProductsNew,
		ProductsUpdated:  res.ProductsUpdated,
		ProductsRejected: res.ProductsRejected,
		Success:          res.Success,
		ErrorMessage:     res.Error,
		StartedAt:        startedAt,
		CompletedAt:      &completedAt,
	}
	if err := o.catalog.RecordRun(run); err != nil {
		log.Printf("[orchestrator] record run for %s: %v", store, err)
	}
}
