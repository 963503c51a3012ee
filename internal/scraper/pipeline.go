package scraper

import (
	"errors"

	"gpu-price-monitor/internal/models"
)

// RejectedRecord pairs a raw record with the reason it was dropped.
// Ephemeral: reported in run metrics, never persisted.
type RejectedRecord struct {
	Raw    models.RawRecord `json:"raw"`
	Reason RejectReason     `json:"reason"`
}

// Pipeline fans raw records through Clean -> Validate -> Enrich.
// One record's failure never aborts the batch, and output order
// follows input order so results are deterministic.
type Pipeline struct {
	cleaner   Cleaner
	validator *Validator
	enricher  Enricher
}

func NewPipeline(validator *Validator) *Pipeline {
	return &Pipeline{validator: validator}
}

// Process returns the accepted canonical products and the rejected
// records with their reasons.
func (p *Pipeline) Process(raws []models.RawRecord) ([]models.Product, []RejectedRecord) {
	accepted := make([]models.Product, 0, len(raws))
	var rejected []RejectedRecord

	for _, raw := range raws {
		candidate, err := p.cleaner.Clean(raw)
		if err != nil {
			rejected = append(rejected, RejectedRecord{Raw: raw, Reason: ReasonUnparseablePrice})
			continue
		}

		if err := p.validator.Validate(candidate); err != nil {
			reason := RejectReason("invalid")
			var ve *ValidationError
			if errors.As(err, &ve) {
				reason = ve.Reason
			}
			rejected = append(rejected, RejectedRecord{Raw: raw, Reason: reason})
			continue
		}

		accepted = append(accepted, p.enricher.Enrich(candidate))
	}

	return accepted, rejected
}
