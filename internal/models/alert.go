package models

import "time"

// AlertState represents the lifecycle state of an alert.
type AlertState string

const (
	// StateGood means the condition is not met and the alert is quiescent.
	StateGood AlertState = "good"
	// StateWorse means the condition became true and the alert is debouncing toward bad.
	StateWorse AlertState = "worse"
	// StateBad means the alert is triggered.
	StateBad AlertState = "bad"
	// StateBetter means the condition became false while bad and the alert is debouncing toward good.
	StateBetter AlertState = "better"
)

// ParseAlertState converts a string to AlertState.
func ParseAlertState(s string) AlertState {
	switch s {
	case "good":
		return StateGood
	case "worse":
		return StateWorse
	case "bad":
		return StateBad
	case "better":
		return StateBetter
	default:
		return StateGood
	}
}

// Alert represents a persistent alert: its configuration plus the runtime
// state columns that survive a process restart.
type Alert struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// SigSet is the id of the signal set the condition watches.
	SigSet string `json:"sigset"`
	// Condition is a boolean expression evaluated against the signal set window.
	Condition string `json:"condition"`

	// DurationMinutes debounces the good -> bad transition.
	DurationMinutes int `json:"duration"`
	// DelayMinutes debounces the bad -> good transition.
	DelayMinutes int `json:"delay"`
	// IntervalMinutes is the maximum allowed silence between incoming
	// records before the watchdog notifies. 0 disables the watchdog.
	IntervalMinutes int `json:"interval"`
	// RepeatMinutes is the re-notification cadence while the alert stays
	// bad. 0 disables repeat notifications.
	RepeatMinutes int `json:"repeat"`

	// InstantRevoke collapses trigger+revoke into a single notification.
	InstantRevoke bool `json:"instant_revoke"`
	// FinalNotification controls whether a revoke notification is sent.
	FinalNotification bool `json:"final_notification"`
	Enabled           bool `json:"enabled"`

	// Emails and Phones are newline-delimited recipient lists.
	Emails string `json:"emails,omitempty"`
	Phones string `json:"phones,omitempty"`

	State AlertState `json:"state"`
	// StateChanged is updated if and only if State changes.
	StateChanged time.Time `json:"state_changed"`
	// IntervalTime is the last time the record-arrival watchdog was reset.
	IntervalTime time.Time `json:"interval_time"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAlert creates a new Alert in the good state with initialized timestamps.
func NewAlert(name, sigSet, condition string) *Alert {
	now := time.Now()
	return &Alert{
		Name:         name,
		SigSet:       sigSet,
		Condition:    condition,
		State:        StateGood,
		StateChanged: now,
		IntervalTime: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Duration returns the good -> bad debounce as a time.Duration.
func (a *Alert) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

// Delay returns the bad -> good debounce as a time.Duration.
func (a *Alert) Delay() time.Duration {
	return time.Duration(a.DelayMinutes) * time.Minute
}

// Interval returns the watchdog window as a time.Duration.
func (a *Alert) Interval() time.Duration {
	return time.Duration(a.IntervalMinutes) * time.Minute
}

// Repeat returns the repeat-notification cadence as a time.Duration.
func (a *Alert) Repeat() time.Duration {
	return time.Duration(a.RepeatMinutes) * time.Minute
}
