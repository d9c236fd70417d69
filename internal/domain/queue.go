package domain

import "time"

// QueueStatus enumerates the lifecycle states of a scheduled batch.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
	QueueCancelled  QueueStatus = "cancelled"
)

// IsTerminal returns true if no further transition is possible.
func (s QueueStatus) IsTerminal() bool {
	return s == QueueCompleted || s == QueueFailed || s == QueueCancelled
}

// Assignment pairs a sending account with the contacts it sends to.
type Assignment struct {
	AccountID  string   `json:"accountId"`
	ContactIDs []string `json:"contactIds"`
}

// ContactCount returns the number of contacts across all assignments.
func ContactCount(assignments []Assignment) int {
	n := 0
	for _, a := range assignments {
		n += len(a.ContactIDs)
	}
	return n
}

// QueueItem is a scheduled batch job.
type QueueItem struct {
	ID          string       `json:"id" db:"id"`
	DomainID    string       `json:"domainId" db:"domain_id"`
	TemplateID  string       `json:"templateId" db:"template_id"`
	Assignments []Assignment `json:"assignments" db:"assignments"`
	ScheduledAt time.Time    `json:"scheduledAt" db:"scheduled_at"`
	Status      QueueStatus  `json:"status" db:"status"`
	Results     []SendResult `json:"results,omitempty" db:"results"`
	Error       string       `json:"error,omitempty" db:"error"`

	// Claim held by the processor while the item is processing.
	ClaimedBy      string     `json:"claimedBy,omitempty" db:"claimed_by"`
	LeaseExpiresAt *time.Time `json:"leaseExpiresAt,omitempty" db:"lease_expires_at"`

	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	StartedAt   *time.Time `json:"startedAt,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
}

// IsDue reports whether a pending item should be picked up at now.
func (q *QueueItem) IsDue(now time.Time) bool {
	return q.Status == QueuePending && !q.ScheduledAt.After(now)
}
