// Package notifier provides notification fan-out for alert lifecycle
// events over email and SMS.
package notifier

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// DefaultMaxRecipients caps the recipient list per channel per notification.
const DefaultMaxRecipients = 100

// Notification is one outbound message. Emails and Phones are
// newline-delimited recipient lists as stored on the alert.
type Notification struct {
	Subject string
	Body    string
	// SMSBody is the short form sent to phones. Empty means no SMS.
	SMSBody string
	Emails  string
	Phones  string
}

// EmailSender sends one message to a batch of addresses.
type EmailSender interface {
	SendEmail(ctx context.Context, to []string, subject, body string) error
}

// SMSSender sends one message to a single phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// Dispatcher fans notifications out to the configured channels. Send
// failures are logged and swallowed: a notification is best-effort and
// must never fail the state machine that produced it.
type Dispatcher struct {
	mu            sync.RWMutex
	email         EmailSender
	sms           SMSSender
	rateLimiter   *RateLimiter
	maxRecipients int
}

// NewDispatcher creates a dispatcher with default rate limiting. Either
// sender may be nil, which disables that channel.
func NewDispatcher(email EmailSender, sms SMSSender) *Dispatcher {
	return NewDispatcherWithRateLimit(email, sms, DefaultRateLimitConfig())
}

// NewDispatcherWithRateLimit creates a dispatcher with custom rate limit
// configuration.
func NewDispatcherWithRateLimit(email EmailSender, sms SMSSender, config RateLimitConfig) *Dispatcher {
	return &Dispatcher{
		email:         email,
		sms:           sms,
		rateLimiter:   NewRateLimiter(config),
		maxRecipients: DefaultMaxRecipients,
	}
}

// SetMaxRecipients overrides the per-channel recipient cap.
func (d *Dispatcher) SetMaxRecipients(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n > 0 {
		d.maxRecipients = n
	}
}

// Dispatch sends the notification on every channel that has recipients.
// It never returns an error: failed sends are logged per channel and the
// remaining channels still run.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) {
	if d.rateLimiter != nil && !d.rateLimiter.Allow() {
		log.Printf("notifier: rate limited, dropping notification %q", n.Subject)
		return
	}

	d.mu.RLock()
	email, sms, maxRecipients := d.email, d.sms, d.maxRecipients
	d.mu.RUnlock()

	emails := SplitRecipients(n.Emails, maxRecipients)
	if email != nil && len(emails) > 0 {
		if err := email.SendEmail(ctx, emails, n.Subject, n.Body); err != nil {
			log.Printf("notifier: email send failed: %v", err)
		}
	}

	if sms == nil || n.SMSBody == "" {
		return
	}
	for _, phone := range SplitRecipients(n.Phones, maxRecipients) {
		if err := sms.SendSMS(ctx, phone, n.SMSBody); err != nil {
			log.Printf("notifier: sms to %s failed: %v", phone, err)
		}
	}
}

// RateLimitStats returns the rate limiter statistics.
func (d *Dispatcher) RateLimitStats() RateLimitStats {
	if d.rateLimiter == nil {
		return RateLimitStats{}
	}
	return d.rateLimiter.Stats()
}

// SplitRecipients splits a newline-delimited recipient list, drops blank
// lines, and truncates to the cap.
func SplitRecipients(list string, max int) []string {
	var out []string
	for _, line := range strings.Split(list, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	return out
}

// Subject and body builders shared by the alerting engine.

// TriggerNotification composes the message sent when an alert fires.
func TriggerNotification(name, description, emails, phones string) Notification {
	return Notification{
		Subject: fmt.Sprintf("Alert %s was triggered!", name),
		Body:    fmt.Sprintf("Alert %s was triggered!\n\nDescription:\n%s", name, description),
		SMSBody: fmt.Sprintf("Alert %s was triggered!", name),
		Emails:  emails,
		Phones:  phones,
	}
}

// RevokeNotification composes the final message sent when an alert
// recovers. It has no SMS form.
func RevokeNotification(name, description, emails string) Notification {
	return Notification{
		Subject: fmt.Sprintf("Alert %s was revoked", name),
		Body:    fmt.Sprintf("Alert %s was revoked.\n\nDescription:\n%s", name, description),
		Emails:  emails,
	}
}

// TriggerAndRevokeNotification composes the single message sent when an
// instant-revoke alert fires.
func TriggerAndRevokeNotification(name, description, emails, phones string) Notification {
	return Notification{
		Subject: fmt.Sprintf("Alert %s was triggered and revoked!", name),
		Body:    fmt.Sprintf("Alert %s was triggered and revoked immediately.\n\nDescription:\n%s", name, description),
		SMSBody: fmt.Sprintf("Alert %s was triggered and revoked!", name),
		Emails:  emails,
		Phones:  phones,
	}
}

// RepeatNotification composes the periodic reminder while an alert stays
// triggered.
func RepeatNotification(name, description, emails, phones string) Notification {
	return Notification{
		Subject: fmt.Sprintf("Alert %s is still triggered!", name),
		Body:    fmt.Sprintf("Alert %s is still triggered!\n\nDescription:\n%s", name, description),
		SMSBody: fmt.Sprintf("Alert %s is still triggered!", name),
		Emails:  emails,
		Phones:  phones,
	}
}

// IntervalNotification composes the watchdog message sent when the signal
// set goes silent longer than the allowed interval.
func IntervalNotification(name, description, emails, phones string) Notification {
	return Notification{
		Subject: fmt.Sprintf("Alert %s has not received data for the set interval!", name),
		Body:    fmt.Sprintf("Alert %s has not received data for a longer time than its set interval!\n\nDescription:\n%s", name, description),
		SMSBody: fmt.Sprintf("Alert %s has not received data for the set interval!", name),
		Emails:  emails,
		Phones:  phones,
	}
}

// TestNotification composes the message sent by the test operation.
func TestNotification(name, emails, phones string) Notification {
	return Notification{
		Subject: fmt.Sprintf("Test of alert %s", name),
		Body:    fmt.Sprintf("This is a test notification of alert %s. No action is needed.", name),
		SMSBody: fmt.Sprintf("Test of alert %s", name),
		Emails:  emails,
		Phones:  phones,
	}
}
