package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// Situation labels per result, as the tracker expects them.
const (
	SituationSent   = "Request"
	SituationFailed = "Failed Sent"
)

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 5 * time.Second

// Row is one contact's outcome as the tracker stores it.
type Row struct {
	AccountID string `json:"accountId"`
	ContactID string `json:"contactId"`
	Email     string `json:"email,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Situation string `json:"situation"`
	Error     string `json:"error,omitempty"`
}

// Payload is the body delivered for one batch.
type Payload struct {
	Results    []domain.SendResult `json:"results"`
	Rows       []Row               `json:"rows"`
	NotifiedAt time.Time           `json:"notifiedAt"`
}

// NewPayload builds the delivery body for results.
func NewPayload(results []domain.SendResult, at time.Time) Payload {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		row := Row{AccountID: r.AccountID, ContactID: r.ContactID, Email: r.Email, MessageID: r.MessageID, Error: r.Error}
		if r.Status == domain.StatusSent {
			row.Situation = SituationSent
		} else {
			row.Situation = SituationFailed
		}
		rows = append(rows, row)
	}
	return Payload{Results: results, Rows: rows, NotifiedAt: at.UTC()}
}

// Target delivers one payload.
type Target interface {
	Deliver(ctx context.Context, p Payload) error
}

// SyncError is a failed delivery to the external tracker.
type SyncError struct {
	Target string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync to %s failed: %v", e.Target, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Async runs deliveries in the background.
type Async struct {
	target  Target
	name    string
	timeout time.Duration
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	// OnError, when set, receives every SyncError after it is logged.
	OnError func(*SyncError)
}

// NewAsync wraps target. name identifies it in logs.
func NewAsync(target Target, name string, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Async{target: target, name: name, timeout: timeout, now: time.Now}
}

// Notify schedules delivery of results and returns at once. Empty result
// sets are skipped, and so is anything arriving after Close.
func (a *Async) Notify(ctx context.Context, results []domain.SendResult) {
	if len(results) == 0 {
		return
	}
	p := NewPayload(append([]domain.SendResult(nil), results...), a.now())

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		logger.Warn("external sync dropped after shutdown", "target", a.name, "results", len(p.Results))
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if err := a.target.Deliver(ctx, p); err != nil {
			serr := &SyncError{Target: a.name, Err: err}
			logger.Error("external sync failed",
				"target", a.name,
				"results", len(p.Results),
				"error", serr)
			if a.OnError != nil {
				a.OnError(serr)
			}
			return
		}
		logger.Debug("external sync delivered", "target", a.name, "results", len(p.Results))
	}()
}

// Wait blocks until every scheduled delivery has finished. Notify must
// not race with Wait; use Close at shutdown.
func (a *Async) Wait() { a.wg.Wait() }

// Close stops accepting deliveries and waits for the scheduled ones.
func (a *Async) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.wg.Wait()
}
