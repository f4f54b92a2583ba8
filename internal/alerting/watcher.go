package alerting

import (
	"context"
	"log"
	"time"

	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/storage"
)

// DefaultPollInterval is how often the watcher checks for new records.
const DefaultPollInterval = 10 * time.Second

// Watcher polls the record store for new data on every watched signal
// set and feeds arrivals into the registry.
type Watcher struct {
	registry *Registry
	records  storage.RecordRepository
	interval time.Duration

	lastSeen map[string]time.Time
}

// NewWatcher creates a watcher. interval <= 0 selects DefaultPollInterval.
func NewWatcher(registry *Registry, records storage.RecordRepository, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		registry: registry,
		records:  records,
		interval: interval,
		lastSeen: make(map[string]time.Time),
	}
}

// Run polls until the context is canceled. The first observation of a
// signal set only records a baseline; Init already reconciled anything
// that happened before startup.
func (w *Watcher) Run(ctx context.Context) error {
	w.prime(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) prime(ctx context.Context) {
	for _, sigSet := range w.registry.WatchedSigSets() {
		latest, err := w.records.LatestRecordTime(ctx, sigSet)
		if err != nil {
			metrics.PollErrorsTotal.Inc()
			log.Printf("watcher: prime %s: %v", sigSet, err)
			continue
		}
		w.lastSeen[sigSet] = latest
	}
}

func (w *Watcher) poll(ctx context.Context) {
	for _, sigSet := range w.registry.WatchedSigSets() {
		latest, err := w.records.LatestRecordTime(ctx, sigSet)
		if err != nil {
			metrics.PollErrorsTotal.Inc()
			log.Printf("watcher: poll %s: %v", sigSet, err)
			continue
		}

		seen, known := w.lastSeen[sigSet]
		if !known {
			// Signal set of an alert registered after startup.
			w.lastSeen[sigSet] = latest
			continue
		}
		if !latest.After(seen) {
			continue
		}

		w.lastSeen[sigSet] = latest
		metrics.RecordsSeenTotal.WithLabelValues(sigSet).Inc()
		if err := w.registry.HandleRecordInsert(ctx, sigSet); err != nil {
			log.Printf("watcher: record insert %s: %v", sigSet, err)
		}
	}
}
