package alerting

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/models"
)

// Registry owns one Alert instance per configured alert and routes
// record arrivals and configuration changes to them.
type Registry struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
	deps   Deps
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		alerts: make(map[string]*Alert),
		deps:   deps,
	}
}

// Init loads every configured alert from storage and initializes it.
// Disabled alerts are loaded too: Init on a disabled alert only logs, and
// keeping the instance lets an update re-enable it in place.
func (r *Registry) Init(ctx context.Context) error {
	configs, err := r.deps.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("load alerts: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, config := range configs {
		alert := New(config, r.deps)
		r.alerts[config.ID] = alert
		metrics.AlertsActive.WithLabelValues(string(config.State)).Inc()
		if err := alert.Init(ctx); err != nil {
			return fmt.Errorf("init alert %s: %w", config.ID, err)
		}
	}

	log.Printf("alerting: initialized %d alerts", len(r.alerts))
	return nil
}

// Get returns the alert instance for the id, or nil.
func (r *Registry) Get(id string) *Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.alerts[id]
}

// WatchedSigSets returns the distinct signal sets any registered alert
// watches.
func (r *Registry) WatchedSigSets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var sets []string
	for _, alert := range r.alerts {
		s := alert.SigSet()
		if !seen[s] {
			seen[s] = true
			sets = append(sets, s)
		}
	}
	return sets
}

// HandleRecordInsert executes every alert watching the signal set. One
// alert's failure does not stop the others; the first error is returned.
func (r *Registry) HandleRecordInsert(ctx context.Context, sigSet string) error {
	r.mu.RLock()
	var matched []*Alert
	for _, alert := range r.alerts {
		if alert.SigSet() == sigSet {
			matched = append(matched, alert)
		}
	}
	r.mu.RUnlock()

	var firstErr error
	for _, alert := range matched {
		if err := alert.Execute(ctx); err != nil {
			log.Printf("alerting: execute alert %s: %v", alert.ID(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// HandleCreate loads a newly created alert from storage and initializes it.
func (r *Registry) HandleCreate(ctx context.Context, id string) error {
	config, err := r.deps.Store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load alert %s: %w", id, err)
	}
	if config == nil {
		return fmt.Errorf("alert not found: %s", id)
	}

	alert := New(config, r.deps)

	r.mu.Lock()
	r.alerts[id] = alert
	r.mu.Unlock()

	metrics.AlertsActive.WithLabelValues(string(config.State)).Inc()
	return alert.Init(ctx)
}

// HandleUpdate reloads an alert's configuration from storage and applies
// it to the live instance. An unknown id is treated as a create.
func (r *Registry) HandleUpdate(ctx context.Context, id string) error {
	r.mu.RLock()
	alert := r.alerts[id]
	r.mu.RUnlock()

	if alert == nil {
		return r.HandleCreate(ctx, id)
	}

	config, err := r.deps.Store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load alert %s: %w", id, err)
	}
	if config == nil {
		return fmt.Errorf("alert not found: %s", id)
	}

	return alert.Update(ctx, config)
}

// HandleDelete terminates and drops the live instance. Persisted rows are
// the caller's concern.
func (r *Registry) HandleDelete(id string) {
	r.mu.Lock()
	alert := r.alerts[id]
	delete(r.alerts, id)
	r.mu.Unlock()

	if alert != nil {
		alert.Terminate()
		metrics.AlertsActive.WithLabelValues(string(alert.State())).Dec()
	}
}

// Close terminates all alert instances.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, alert := range r.alerts {
		alert.Terminate()
	}
	log.Printf("alerting: terminated %d alerts", len(r.alerts))
}

// States returns a count of registered alerts per state.
func (r *Registry) States() map[models.AlertState]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[models.AlertState]int)
	for _, alert := range r.alerts {
		counts[alert.State()]++
	}
	return counts
}
