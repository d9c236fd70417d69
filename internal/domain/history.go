package domain

import "time"

// SendResult is the outcome of dispatching one message to one contact.
type SendResult struct {
	AccountID string     `json:"accountId"`
	ContactID string     `json:"contactId"`
	Email     string     `json:"email,omitempty"`
	Status    SendStatus `json:"status"`
	MessageID string     `json:"messageId,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Tally counts sent and failed results.
func Tally(results []SendResult) (sent, failed int) {
	for _, r := range results {
		if r.Status == StatusSent {
			sent++
		} else {
			failed++
		}
	}
	return sent, failed
}

// HistoryRecord is the append-only log entry for one executed batch.
type HistoryRecord struct {
	ID         string       `json:"id" db:"id"`
	DomainID   string       `json:"domainId" db:"domain_id"`
	TemplateID string       `json:"templateId" db:"template_id"`
	QueueID    string       `json:"queueId,omitempty" db:"queue_id"`
	Results    []SendResult `json:"results" db:"results"`
	SentAt     time.Time    `json:"sentAt" db:"sent_at"`
}

// ContactIDs returns the ids of every contact referenced by the record.
func (h *HistoryRecord) ContactIDs() []string {
	ids := make([]string, 0, len(h.Results))
	for _, r := range h.Results {
		ids = append(ids, r.ContactID)
	}
	return ids
}
