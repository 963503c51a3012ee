package scraper

// Event names published over the sink.
const (
	EventRunStarted   = "scraper.started"
	EventRunProgress  = "scraper.progress"
	EventRunCompleted = "scraper.completed"
	EventRunFailed    = "scraper.failed"
	EventProductNew   = "product.new"
)

// Publisher is the event sink the pipeline writes to. Publish is
// fire-and-forget; delivery guarantees belong to the sink. It must
// tolerate concurrent callers.
type Publisher interface {
	Publish(event string, payload map[string]any)
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(string, map[string]any) {}
