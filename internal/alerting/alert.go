// Package alerting implements the per-alert state machine: condition
// debouncing, repeat notifications, the record-arrival watchdog, and the
// audit trail of every lifecycle event.
package alerting

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/pulseboard/pulseboard/internal/clock"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/notifier"
	"github.com/pulseboard/pulseboard/internal/storage"
)

// ConditionEvaluator evaluates an alert condition against the latest
// records of a signal set.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, condition, sigSet string) (bool, error)
}

// NotificationSink receives outbound notifications. Delivery is
// best-effort; implementations must not return errors.
type NotificationSink interface {
	Dispatch(ctx context.Context, n notifier.Notification)
}

// Deps are the collaborators an Alert needs.
type Deps struct {
	Clock     clock.Clock
	Store     storage.AlertRepository
	AuditLog  storage.AlertLogRepository
	Evaluator ConditionEvaluator
	Notifier  NotificationSink
}

// Alert is the live state machine of one configured alert. All entry
// points (Init, Execute, Update, Terminate, Test) and timer callbacks are
// serialized by the mutex; timers are cleared under the lock before any
// store write so a concurrent caller never observes a stale handle.
type Alert struct {
	mu     sync.Mutex
	config *models.Alert

	clock     clock.Clock
	store     storage.AlertRepository
	auditLog  storage.AlertLogRepository
	evaluator ConditionEvaluator
	notifier  NotificationSink

	conditionTimer clock.Timer // debounce toward bad or good
	repeatTimer    clock.Timer
	intervalTimer  clock.Timer // record-arrival watchdog
}

// New creates an Alert from its persisted configuration. Call Init once
// before anything else.
func New(config *models.Alert, deps Deps) *Alert {
	return &Alert{
		config:    config,
		clock:     deps.Clock,
		store:     deps.Store,
		auditLog:  deps.AuditLog,
		evaluator: deps.Evaluator,
		notifier:  deps.Notifier,
	}
}

// ID returns the alert id.
func (a *Alert) ID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.config.ID
}

// SigSet returns the id of the signal set the alert watches.
func (a *Alert) SigSet() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.config.SigSet
}

// State returns the current state.
func (a *Alert) State() models.AlertState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.config.State
}

// Snapshot returns a copy of the current configuration and runtime state.
func (a *Alert) Snapshot() models.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return *a.config
}

// Init reconciles in-memory timers with the time elapsed since the
// persisted state change, recovering from a process restart. A debounce
// that fully elapsed while the process was down fires immediately; a
// partial one is re-armed for the remainder. The watchdog is reconciled
// the same way against the persisted interval time.
func (a *Alert) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.audit(ctx, models.LogTypeInit)
	if !a.config.Enabled {
		return nil
	}

	if a.config.RepeatMinutes > 0 &&
		(a.config.State == models.StateBad || a.config.State == models.StateBetter) {
		// At least one repeat cycle is assumed to have elapsed while down.
		a.repeatNotification(ctx)
	}

	now := a.clock.Now()
	elapsed := now.Sub(a.config.StateChanged)

	switch a.config.State {
	case models.StateWorse:
		if elapsed >= a.config.Duration() {
			if err := a.trigger(ctx); err != nil {
				return err
			}
		} else {
			a.conditionTimer = a.clock.AfterFunc(a.config.Duration()-elapsed, a.conditionTick)
		}
	case models.StateBetter:
		if elapsed >= a.config.Delay() {
			if err := a.revoke(ctx); err != nil {
				return err
			}
		} else {
			a.conditionTimer = a.clock.AfterFunc(a.config.Delay()-elapsed, a.conditionTick)
		}
	}

	if a.config.IntervalMinutes > 0 {
		silence := now.Sub(a.config.IntervalTime)
		if silence >= a.config.Interval() {
			if err := a.intervalNotification(ctx); err != nil {
				return err
			}
		} else {
			a.intervalTimer = a.clock.AfterFunc(a.config.Interval()-silence, a.intervalTick)
		}
	}

	return nil
}

// Execute is the per-record hook: it resets the watchdog, evaluates the
// condition, and feeds the boolean into the state machine. Evaluation
// failures are audit-logged and swallowed; only persistence failures
// propagate.
func (a *Alert) Execute(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.config.Enabled {
		return nil
	}

	if err := a.resetWatchdog(ctx); err != nil {
		return err
	}

	result, err := a.evaluator.Evaluate(ctx, a.config.Condition, a.config.SigSet)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		a.audit(ctx, err.Error())
		return nil
	}
	metrics.EvaluationsTotal.WithLabelValues(strconv.FormatBool(result)).Inc()

	return a.changeState(ctx, result)
}

// Update applies a configuration change. Side effects are computed
// against the old configuration, then the new one is swapped in
// wholesale.
func (a *Alert) Update(ctx context.Context, updated *models.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	old := a.config
	armRepeat := false

	switch {
	case !updated.Enabled:
		a.stopAllTimers()
		if err := a.writeState(ctx, models.StateGood); err != nil {
			return err
		}
	case coreConfigChanged(old, updated):
		// A condition or timing change invalidates any in-flight debounce.
		a.stopTimer(&a.conditionTimer)
		a.stopTimer(&a.repeatTimer)
		if err := a.writeState(ctx, models.StateGood); err != nil {
			return err
		}
	case updated.RepeatMinutes != old.RepeatMinutes:
		a.stopTimer(&a.repeatTimer)
		armRepeat = updated.RepeatMinutes > 0 &&
			(old.State == models.StateBad || old.State == models.StateBetter)
	}

	rearmWatchdog := updated.Enabled && (!old.Enabled || updated.IntervalMinutes != old.IntervalMinutes)
	if rearmWatchdog {
		a.stopTimer(&a.intervalTimer)
		recorded, err := a.store.WriteIntervalTime(ctx, old.ID, a.clock.Now())
		if err != nil {
			return fmt.Errorf("persist interval time: %w", err)
		}
		old.IntervalTime = recorded
	}

	// writeState above mutated the old config, so carry its runtime
	// fields into the new one.
	updated.State = old.State
	updated.StateChanged = old.StateChanged
	updated.IntervalTime = old.IntervalTime
	a.config = updated

	if armRepeat {
		a.repeatTimer = a.clock.AfterFunc(updated.Repeat(), a.repeatTick)
	}
	if rearmWatchdog && updated.IntervalMinutes > 0 {
		a.intervalTimer = a.clock.AfterFunc(updated.Interval(), a.intervalTick)
	}

	a.audit(ctx, models.LogTypeUpdate)
	return nil
}

// Terminate cancels all timers. Persisted state is left untouched; the
// caller is expected to be deleting the alert or shutting down.
func (a *Alert) Terminate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopAllTimers()
}

// Test logs a "test" event and sends a test notification to all
// configured recipients.
func (a *Alert) Test(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.audit(ctx, models.LogTypeTest)
	a.notify(ctx, "test", notifier.TestNotification(a.config.Name, a.config.Emails, a.config.Phones))
}

// changeState runs one step of the transition table.
func (a *Alert) changeState(ctx context.Context, conditionTrue bool) error {
	switch a.config.State {
	case models.StateGood:
		if !conditionTrue {
			return nil
		}
		if a.config.DurationMinutes == 0 {
			return a.trigger(ctx)
		}
		if err := a.writeState(ctx, models.StateWorse); err != nil {
			return err
		}
		a.stopTimer(&a.conditionTimer)
		a.conditionTimer = a.clock.AfterFunc(a.config.Duration(), a.conditionTick)

	case models.StateWorse:
		if conditionTrue {
			return nil // debounce timer keeps running
		}
		a.stopTimer(&a.conditionTimer)
		return a.writeState(ctx, models.StateGood)

	case models.StateBad:
		if conditionTrue {
			return nil
		}
		if a.config.DelayMinutes == 0 {
			return a.revoke(ctx)
		}
		if err := a.writeState(ctx, models.StateBetter); err != nil {
			return err
		}
		a.stopTimer(&a.conditionTimer)
		a.conditionTimer = a.clock.AfterFunc(a.config.Delay(), a.conditionTick)

	case models.StateBetter:
		if !conditionTrue {
			return nil
		}
		a.stopTimer(&a.conditionTimer)
		return a.writeState(ctx, models.StateBad)
	}
	return nil
}

// conditionTick fires when a debounce period fully elapses.
func (a *Alert) conditionTick() {
	ctx := context.Background()
	a.mu.Lock()
	defer a.mu.Unlock()

	a.conditionTimer = nil

	var err error
	switch a.config.State {
	case models.StateWorse:
		err = a.trigger(ctx)
	case models.StateBetter:
		err = a.revoke(ctx)
	}
	if err != nil {
		log.Printf("alert %s: debounce transition failed: %v", a.config.ID, err)
	}
}

func (a *Alert) repeatTick() {
	ctx := context.Background()
	a.mu.Lock()
	defer a.mu.Unlock()

	a.repeatTimer = nil
	if a.config.State == models.StateBad || a.config.State == models.StateBetter {
		a.repeatNotification(ctx)
	}
}

func (a *Alert) intervalTick() {
	ctx := context.Background()
	a.mu.Lock()
	defer a.mu.Unlock()

	a.intervalTimer = nil
	// A callback already running when a disable stopped the timer still
	// reaches this point; a disabled alert must stay silent.
	if !a.config.Enabled {
		return
	}
	if err := a.intervalNotification(ctx); err != nil {
		log.Printf("alert %s: interval notification failed: %v", a.config.ID, err)
	}
}

// trigger commits the transition to bad, or straight back to good for an
// instant-revoke alert.
func (a *Alert) trigger(ctx context.Context) error {
	if a.config.InstantRevoke {
		if err := a.writeState(ctx, models.StateGood); err != nil {
			return err
		}
		a.audit(ctx, models.LogTypeTriggerAndRevoke)
		a.notify(ctx, "triggerAndRevoke",
			notifier.TriggerAndRevokeNotification(a.config.Name, a.config.Description, a.config.Emails, a.config.Phones))
		return nil
	}

	if err := a.writeState(ctx, models.StateBad); err != nil {
		return err
	}
	a.audit(ctx, models.LogTypeTrigger)
	if a.config.RepeatMinutes > 0 {
		a.stopTimer(&a.repeatTimer)
		a.repeatTimer = a.clock.AfterFunc(a.config.Repeat(), a.repeatTick)
	}
	a.notify(ctx, "trigger",
		notifier.TriggerNotification(a.config.Name, a.config.Description, a.config.Emails, a.config.Phones))
	return nil
}

// revoke commits the transition back to good.
func (a *Alert) revoke(ctx context.Context) error {
	a.stopTimer(&a.repeatTimer)
	if err := a.writeState(ctx, models.StateGood); err != nil {
		return err
	}
	a.audit(ctx, models.LogTypeRevoke)
	if a.config.FinalNotification {
		a.notify(ctx, "revoke",
			notifier.RevokeNotification(a.config.Name, a.config.Description, a.config.Emails))
	}
	return nil
}

// repeatNotification re-arms the repeat timer for a full cycle and sends
// the still-triggered reminder.
func (a *Alert) repeatNotification(ctx context.Context) {
	a.stopTimer(&a.repeatTimer)
	a.repeatTimer = a.clock.AfterFunc(a.config.Repeat(), a.repeatTick)
	a.notify(ctx, "repeat",
		notifier.RepeatNotification(a.config.Name, a.config.Description, a.config.Emails, a.config.Phones))
}

// intervalNotification fires the watchdog: persist the fresh interval
// time, re-arm, log and notify.
func (a *Alert) intervalNotification(ctx context.Context) error {
	a.stopTimer(&a.intervalTimer)
	recorded, err := a.store.WriteIntervalTime(ctx, a.config.ID, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persist interval time: %w", err)
	}
	a.config.IntervalTime = recorded
	a.intervalTimer = a.clock.AfterFunc(a.config.Interval(), a.intervalTick)

	metrics.WatchdogFiresTotal.Inc()
	a.audit(ctx, models.LogTypeInterval)
	a.notify(ctx, "interval",
		notifier.IntervalNotification(a.config.Name, a.config.Description, a.config.Emails, a.config.Phones))
	return nil
}

// resetWatchdog records a fresh arrival time and re-arms the watchdog.
func (a *Alert) resetWatchdog(ctx context.Context) error {
	a.stopTimer(&a.intervalTimer)
	recorded, err := a.store.WriteIntervalTime(ctx, a.config.ID, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persist interval time: %w", err)
	}
	a.config.IntervalTime = recorded
	if a.config.IntervalMinutes > 0 {
		a.intervalTimer = a.clock.AfterFunc(a.config.Interval(), a.intervalTick)
	}
	return nil
}

// writeState persists a state transition and records the store's
// canonical timestamp. A write to the current state is a no-op, so
// state_changed moves if and only if the state does.
func (a *Alert) writeState(ctx context.Context, state models.AlertState) error {
	if a.config.State == state {
		return nil
	}
	recorded, err := a.store.WriteState(ctx, a.config.ID, state, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persist state %s: %w", state, err)
	}

	metrics.AlertsActive.WithLabelValues(string(a.config.State)).Dec()
	metrics.AlertsActive.WithLabelValues(string(state)).Inc()
	metrics.TransitionsTotal.WithLabelValues(string(state)).Inc()

	a.config.State = state
	a.config.StateChanged = recorded
	return nil
}

func (a *Alert) audit(ctx context.Context, entryType string) {
	if err := a.auditLog.Append(ctx, a.config.ID, entryType); err != nil {
		log.Printf("alert %s: audit log append %q failed: %v", a.config.ID, entryType, err)
	}
}

func (a *Alert) notify(ctx context.Context, kind string, n notifier.Notification) {
	metrics.NotificationsTotal.WithLabelValues(kind).Inc()
	a.notifier.Dispatch(ctx, n)
}

func (a *Alert) stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (a *Alert) stopAllTimers() {
	a.stopTimer(&a.conditionTimer)
	a.stopTimer(&a.repeatTimer)
	a.stopTimer(&a.intervalTimer)
}

// coreConfigChanged reports whether a field that invalidates in-flight
// debounce semantics changed.
func coreConfigChanged(old, updated *models.Alert) bool {
	return old.SigSet != updated.SigSet ||
		old.DurationMinutes != updated.DurationMinutes ||
		old.InstantRevoke != updated.InstantRevoke ||
		old.DelayMinutes != updated.DelayMinutes ||
		old.Condition != updated.Condition
}
