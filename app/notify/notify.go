// Package notify delivers archive event notifications to configured
// webhook destinations. Delivery is best effort and fully decoupled from
// the archive operation itself: failures are logged, retried per
// destination and never bubble back to the caller.
package notify

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/go-pkgz/syncs"

	"github.com/modarc/modarc/app/store"
)

// Sender posts a text payload to a destination URL
type Sender interface {
	Send(ctx context.Context, destination, text string) error
}

// Params configures the notification service
type Params struct {
	Destinations []string      // webhook URLs
	Hostname     string        // reported in the event payload
	Timeout      time.Duration // per-request timeout, defaults to 10s
	Attempts     int           // delivery attempts per destination, defaults to 3
	Sender       Sender        // custom sender, defaults to a webhook sender
}

// Service fans archive events out to the configured destinations
type Service struct {
	sender       Sender
	destinations []string
	hostname     string
	timeout      time.Duration
	rptr         *repeater.Repeater
	pool         *syncs.SizedGroup
}

// event is the JSON payload posted to each destination
type event struct {
	Event     string    `json:"event"` // "archived" or "archive_failed"
	ModuleID  string    `json:"module_id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Error     string    `json:"error,omitempty"`
	Host      string    `json:"host,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates the notification service. Returns nil if no destinations
// are configured, callers treat a nil service as disabled.
func New(params Params) *Service {
	if len(params.Destinations) == 0 {
		return nil
	}

	timeout := params.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	attempts := params.Attempts
	if attempts == 0 {
		attempts = 3
	}

	sender := params.Sender
	if sender == nil {
		sender = notify.NewWebhook(notify.WebhookParams{
			Timeout: timeout,
			Headers: []string{"Content-Type:application/json"},
		})
	}

	return &Service{
		sender:       sender,
		destinations: params.Destinations,
		hostname:     params.Hostname,
		timeout:      timeout,
		rptr:         repeater.New(&strategy.Backoff{Repeats: attempts, Duration: time.Second, Factor: 2, Jitter: true}),
		pool:         syncs.NewSizedGroup(4),
	}
}

// Archived reports a successful archive operation
func (s *Service) Archived(m store.Module) {
	s.submit(event{
		Event:     "archived",
		ModuleID:  m.ID,
		Name:      m.Name,
		Version:   m.Version,
		Host:      s.hostname,
		Timestamp: time.Now(),
	})
}

// ArchiveFailed reports a failed archive operation
func (s *Service) ArchiveFailed(m store.Module, err error) {
	s.submit(event{
		Event:     "archive_failed",
		ModuleID:  m.ID,
		Name:      m.Name,
		Version:   m.Version,
		Error:     err.Error(),
		Host:      s.hostname,
		Timestamp: time.Now(),
	})
}

// submit queues delivery to all destinations, non-blocking
func (s *Service) submit(ev event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[WARN] failed to marshal notification event: %v", err)
		return
	}

	for _, dest := range s.destinations {
		dest := dest
		s.pool.Go(func(ctx context.Context) {
			err := s.rptr.Do(ctx, func() error {
				sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
				defer cancel()
				return s.sender.Send(sendCtx, dest, string(payload))
			})
			if err != nil {
				log.Printf("[WARN] failed to deliver %s notification to %s: %v", ev.Event, dest, err)
			}
		})
	}
}

// Wait blocks until all queued deliveries finished, used on shutdown
func (s *Service) Wait() {
	s.pool.Wait()
}
