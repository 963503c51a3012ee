package scraper

import (
	"context"
	"fmt"

	"gpu-price-monitor/internal/models"
)

// ReconcileResult counts what an upsert batch changed in the catalog.
type ReconcileResult struct {
	New     int
	Updated int
	Seen    int
}

// Reconciler upserts accepted products into the catalog and keeps the
// price history consistent: a product is keyed by URL and never
// duplicated, and a history entry is appended exactly when the stored
// price changes. First observations also insert a baseline history
// entry so the catalog price and the latest history row never
// disagree.
//
// Classification (new vs updated vs seen) relies on the read before
// the upsert, so at most one reconciler may write the catalog at a
// time. The orchestrator's single-run guard provides that; cooperating
// processes sharing one database would need to classify off the upsert
// outcome instead.
type Reconciler struct {
	catalog Catalog
	pub     Publisher
}

func NewReconciler(catalog Catalog, pub Publisher) *Reconciler {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Reconciler{catalog: catalog, pub: pub}
}

// Reconcile processes the batch in order. Persistence failures are
// fatal to the batch: they surface as the run's error rather than
// being silently dropped.
func (rc *Reconciler) Reconcile(ctx context.Context, accepted []models.Product) (ReconcileResult, error) {
	var res ReconcileResult

	for i := range accepted {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		p := accepted[i]
		existing, err := rc.catalog.FindByURL(p.URL)
		if err != nil {
			return res, fmt.Errorf("reconcile %s: %w", p.URL, err)
		}

		saved, err := rc.catalog.Upsert(&p)
		if err != nil {
			return res, fmt.Errorf("reconcile %s: %w", p.URL, err)
		}

		switch {
		case existing == nil:
			res.New++
			if err := rc.catalog.AppendHistory(saved.ID, saved.Price, saved.ScrapedAt); err != nil {
				return res, fmt.Errorf("reconcile %s: %w", p.URL, err)
			}
			rc.pub.Publish(EventProductNew, map[string]any{
				"store": saved.Store,
				"title": saved.Title,
				"price": saved.Price,
				"url":   saved.URL,
			})
		case existing.Price != p.Price:
			res.Updated++
			if err := rc.catalog.AppendHistory(saved.ID, saved.Price, saved.ScrapedAt); err != nil {
				return res, fmt.Errorf("reconcile %s: %w", p.URL, err)
			}
		default:
			// Price unchanged: the upsert refreshed scraped_at and
			// availability, no history entry.
			res.Seen++
		}
	}

	return res, nil
}
