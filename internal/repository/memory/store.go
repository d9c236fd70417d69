// Package memory is an in-process store for development and tests.
//
// Each collection has its own lock. Operations that touch several
// collections take the locks in declaration order of the Store fields, so
// multi-collection updates are atomic to other callers and never deadlock.
// Values are copied on the way in and out.
package memory

import (
	"sync"

	"github.com/ignite/dispatch-engine/internal/domain"
)

type collection[T any] struct {
	mu    sync.RWMutex
	items map[string]*T
	order []string // insertion order
}

func newCollection[T any]() collection[T] {
	return collection[T]{items: make(map[string]*T)}
}

// put stores v under id. Callers hold mu.
func (c *collection[T]) put(id string, v *T) {
	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = v
}

// remove deletes id. Callers hold mu.
func (c *collection[T]) remove(id string) {
	if _, ok := c.items[id]; !ok {
		return
	}
	delete(c.items, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Store holds every collection.
type Store struct {
	domains   collection[domain.Domain]
	accounts  collection[domain.Account]
	contacts  collection[domain.Contact]
	templates collection[domain.Template]
	queue     collection[domain.QueueItem]

	historyMu sync.RWMutex
	history   []domain.HistoryRecord

	settingsMu sync.RWMutex
	settings   domain.Settings

	trackingMu sync.RWMutex
	tracking   []domain.TrackingEvent
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		domains:   newCollection[domain.Domain](),
		accounts:  newCollection[domain.Account](),
		contacts:  newCollection[domain.Contact](),
		templates: newCollection[domain.Template](),
		queue:     newCollection[domain.QueueItem](),
	}
}

// Directory returns the read view used by dispatch and sending.
func (s *Store) Directory() *DirectoryRepo { return &DirectoryRepo{s: s} }

// Queue returns the queue repository view.
func (s *Store) Queue() *QueueRepo { return &QueueRepo{s: s} }

// History returns the stats and history repository view.
func (s *Store) History() *HistoryRepo { return &HistoryRepo{s: s} }

// Identity returns the settings and activation repository view.
func (s *Store) Identity() *IdentityRepo { return &IdentityRepo{s: s} }

// Tracking returns the tracking event repository view.
func (s *Store) Tracking() *TrackingRepo { return &TrackingRepo{s: s} }

// PutDomain inserts or replaces a Domain.
func (s *Store) PutDomain(d domain.Domain) {
	s.domains.mu.Lock()
	defer s.domains.mu.Unlock()
	s.domains.put(d.ID, &d)
}

// PutAccount inserts or replaces an Account.
func (s *Store) PutAccount(a domain.Account) {
	s.accounts.mu.Lock()
	defer s.accounts.mu.Unlock()
	s.accounts.put(a.ID, &a)
}

// PutContact inserts or replaces a Contact.
func (s *Store) PutContact(c domain.Contact) {
	c = cloneContact(c)
	if c.SendStatus == "" {
		c.SendStatus = domain.StatusUnsent
	}
	s.contacts.mu.Lock()
	defer s.contacts.mu.Unlock()
	s.contacts.put(c.ID, &c)
}

// PutTemplate inserts or replaces a Template.
func (s *Store) PutTemplate(t domain.Template) {
	t = cloneTemplate(t)
	s.templates.mu.Lock()
	defer s.templates.mu.Unlock()
	s.templates.put(t.ID, &t)
}

// PutSettings replaces the settings.
func (s *Store) PutSettings(st domain.Settings) {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	s.settings = st
}

func cloneContact(c domain.Contact) domain.Contact {
	if c.Attributes != nil {
		attrs := make(map[string]string, len(c.Attributes))
		for k, v := range c.Attributes {
			attrs[k] = v
		}
		c.Attributes = attrs
	}
	c.Tags = append([]string(nil), c.Tags...)
	return c
}

func cloneTemplate(t domain.Template) domain.Template {
	if t.MergeFields != nil {
		fields := make(map[string]domain.MergeField, len(t.MergeFields))
		for k, v := range t.MergeFields {
			fields[k] = v
		}
		t.MergeFields = fields
	}
	return t
}

func cloneAssignments(in []domain.Assignment) []domain.Assignment {
	if in == nil {
		return nil
	}
	out := make([]domain.Assignment, len(in))
	for i, a := range in {
		out[i] = domain.Assignment{AccountID: a.AccountID, ContactIDs: append([]string(nil), a.ContactIDs...)}
	}
	return out
}

func cloneResults(in []domain.SendResult) []domain.SendResult {
	if in == nil {
		return nil
	}
	return append([]domain.SendResult(nil), in...)
}

func cloneQueueItem(q domain.QueueItem) domain.QueueItem {
	q.Assignments = cloneAssignments(q.Assignments)
	q.Results = cloneResults(q.Results)
	if q.LeaseExpiresAt != nil {
		t := *q.LeaseExpiresAt
		q.LeaseExpiresAt = &t
	}
	if q.StartedAt != nil {
		t := *q.StartedAt
		q.StartedAt = &t
	}
	if q.CompletedAt != nil {
		t := *q.CompletedAt
		q.CompletedAt = &t
	}
	return q
}

func cloneHistory(h domain.HistoryRecord) domain.HistoryRecord {
	h.Results = cloneResults(h.Results)
	return h
}
