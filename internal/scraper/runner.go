package scraper

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"gpu-price-monitor/internal/config"
	"gpu-price-monitor/internal/models"

	"github.com/PuerkitoBio/goquery"
)

// RunState is the job runner's lifecycle state.
type RunState int

const (
	StateIdle RunState = iota
	StateStarting
	StatePaginating
	StateCollecting
	StateCompleted
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StatePaginating:
		return "paginating"
	case StateCollecting:
		return "collecting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var validTransitions = map[RunState][]RunState{
	StateIdle:       {StateStarting},
	StateStarting:   {StatePaginating, StateFailed},
	StatePaginating: {StateCollecting, StateCompleted, StateFailed},
	StateCollecting: {StatePaginating, StateCompleted, StateFailed},
}

// CanTransition reports whether moving from s to next is legal.
// Completed and Failed are terminal.
func (s RunState) CanTransition(next RunState) bool {
	for _, t := range validTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// JobResult is what one extraction run produced.
type JobResult struct {
	Store       models.Store
	Records     []models.RawRecord
	Pages       int
	StartedAt   time.Time
	CompletedAt time.Time
	Err         error
}

// JobRunner owns the lifecycle of one extraction run for one store:
// session acquisition, pagination, retry with backoff, pacing delays
// and progress events. Each runner is used for a single Run call.
type JobRunner struct {
	extractor Extractor
	cfg       *config.Config
	pub       Publisher
	maxPages  int
	headless  bool

	mu    sync.Mutex
	state RunState

	rng *rand.Rand
}

func NewJobRunner(extractor Extractor, cfg *config.Config, pub Publisher, maxPages int, headless bool) *JobRunner {
	if pub == nil {
		pub = NopPublisher{}
	}
	if maxPages <= 0 || maxPages > cfg.MaxPages {
		maxPages = cfg.MaxPages
	}
	return &JobRunner{
		extractor: extractor,
		cfg:       cfg,
		pub:       pub,
		maxPages:  maxPages,
		headless:  headless,
		state:     StateIdle,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// State returns the current lifecycle state.
func (r *JobRunner) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *JobRunner) setState(next RunState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.CanTransition(next) {
		log.Printf("[runner:%s] illegal state transition %s -> %s", r.extractor.Store(), r.state, next)
	}
	r.state = next
}

// Run executes the job to a terminal state. Never returns a nil
// result; failures are reported in result.Err, not panics.
func (r *JobRunner) Run(ctx context.Context) *JobResult {
	store := r.extractor.Store()
	result := &JobResult{Store: store, StartedAt: time.Now()}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
	defer cancel()

	r.setState(StateStarting)
	if err := r.extractor.Open(ctx, r.headless); err != nil {
		r.fail(result, fmt.Errorf("acquire session: %w", err))
		return result
	}
	defer func() {
		if err := r.extractor.Close(); err != nil {
			log.Printf("[runner:%s] session close: %v", store, err)
		}
	}()

	for page := 1; page <= r.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			r.fail(result, err)
			return result
		}

		r.setState(StatePaginating)
		doc, records, err := r.fetchPageWithRetry(ctx, page)
		if err != nil {
			r.fail(result, err)
			return result
		}

		r.setState(StateCollecting)
		if page > 1 && len(records) == 0 {
			// Pagination ran past the last listing page.
			break
		}
		result.Records = append(result.Records, records...)
		result.Pages = page

		r.pub.Publish(EventRunProgress, map[string]any{
			"store":          store,
			"page":           page,
			"products_found": len(result.Records),
		})
		log.Printf("[runner:%s] page %d: %d records (%d total)", store, page, len(records), len(result.Records))

		if !r.extractor.HasNextPage(doc, page) {
			break
		}
		if page < r.maxPages {
			if err := r.pace(ctx); err != nil {
				r.fail(result, err)
				return result
			}
		}
	}

	r.setState(StateCompleted)
	result.CompletedAt = time.Now()
	r.pub.Publish(EventRunCompleted, map[string]any{
		"store":          store,
		"products_found": len(result.Records),
		"pages":          result.Pages,
		"duration":       result.CompletedAt.Sub(result.StartedAt).Seconds(),
	})
	return result
}

func (r *JobRunner) fail(result *JobResult, err error) {
	r.setState(StateFailed)
	result.Err = err
	result.CompletedAt = time.Now()
	r.pub.Publish(EventRunFailed, map[string]any{
		"store":         result.Store,
		"error_message": err.Error(),
	})
	log.Printf("[runner:%s] failed: %v", result.Store, err)
}

// fetchPageWithRetry fetches and parses one page, retrying transient
// failures with capped exponential backoff. An empty first page is a
// parse failure: either the selectors broke or a bot wall is up, and
// both deserve a retry.
func (r *JobRunner) fetchPageWithRetry(ctx context.Context, page int) (doc *goquery.Document, records []models.RawRecord, err error) {
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if werr := r.backoff(ctx, attempt); werr != nil {
				return nil, nil, werr
			}
			log.Printf("[runner:%s] page %d retry %d/%d", r.extractor.Store(), page, attempt, r.cfg.MaxRetries)
		}

		fctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
		doc, err = r.extractor.FetchPage(fctx, page)
		cancel()
		if err == nil {
			records = r.extractor.ParseListing(doc)
			if len(records) == 0 && page == 1 {
				err = &ParseError{Msg: "no products in listing"}
			} else {
				return doc, records, nil
			}
		}

		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		if !IsRetriable(err) {
			return nil, nil, err
		}
	}
	return nil, nil, fmt.Errorf("page %d: max retries (%d) exceeded: %w", page, r.cfg.MaxRetries, err)
}

// backoff waits base * 2^(attempt-1), capped, or returns early on
// cancellation.
func (r *JobRunner) backoff(ctx context.Context, attempt int) error {
	delay := r.cfg.BackoffBase << uint(attempt-1)
	if delay > r.cfg.BackoffCap {
		delay = r.cfg.BackoffCap
	}
	return r.sleep(ctx, delay)
}

// pace applies the randomized human-like delay between page fetches.
// This throttle is deliberate: it keeps the scraper under bot-detection
// thresholds. Disabled via SkipPacing for tests.
func (r *JobRunner) pace(ctx context.Context) error {
	if r.cfg.SkipPacing {
		return nil
	}
	min, max := r.cfg.MinDelay, r.cfg.MaxDelay
	if max < min {
		max = min
	}
	delay := min
	if span := max - min; span > 0 {
		r.mu.Lock()
		delay += time.Duration(r.rng.Int63n(int64(span)))
		r.mu.Unlock()
	}
	return r.sleep(ctx, delay)
}

func (r *JobRunner) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
