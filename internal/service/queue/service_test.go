package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/dispatch-engine/internal/channel"
	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/distlock"
	"github.com/ignite/dispatch-engine/internal/repository/memory"
	"github.com/ignite/dispatch-engine/internal/service/dispatch"
	"github.com/ignite/dispatch-engine/internal/service/identity"
	"github.com/ignite/dispatch-engine/internal/service/queue"
	"github.com/ignite/dispatch-engine/internal/service/stats"
)

// fakeChannel fails for listed recipients and counts sends.
type fakeChannel struct {
	mu     sync.Mutex
	failOn map[string]bool
	sent   []string
}

func (f *fakeChannel) Send(_ context.Context, _ *domain.Domain, msg *channel.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg.To.Email)
	if f.failOn[msg.To.Email] {
		return "", &channel.SendError{Channel: channel.NameAPI, StatusCode: 500, Payload: "boom"}
	}
	return fmt.Sprintf("m%d", len(f.sent)), nil
}

func (f *fakeChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls [][]domain.SendResult
}

func (n *recordingNotifier) Notify(_ context.Context, results []domain.SendResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, results)
}

type fixture struct {
	store      *memory.Store
	ch         *fakeChannel
	dispatcher *dispatch.Dispatcher
	svc        *queue.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.NewStore()
	s.PutDomain(domain.Domain{ID: "D", Name: "Primary", Active: true})
	s.PutDomain(domain.Domain{ID: "E", Name: "Other"})
	s.PutAccount(domain.Account{ID: "A", DomainID: "D", Email: "a@d.example", Active: true})
	s.PutAccount(domain.Account{ID: "off", DomainID: "D", Email: "off@d.example"})
	s.PutTemplate(domain.Template{ID: "T", DomainID: "D", Subject: "Hi", HTMLBody: "Hi {name}",
		MergeFields: map[string]domain.MergeField{"name": {Kind: domain.MergeColumn, Value: "full_name"}}})
	s.PutTemplate(domain.Template{ID: "T-E", DomainID: "E"})
	for _, id := range []string{"c1", "c2", "c3"} {
		s.PutContact(domain.Contact{ID: id, DomainID: "D", AccountID: "A", Email: id + "@example.com", FullName: id})
	}

	ch := &fakeChannel{failOn: map[string]bool{}}
	d := dispatch.New(s.Directory(), ch, 0)
	return &fixture{store: s, ch: ch, dispatcher: d, svc: queue.NewService(s.Queue(), d)}
}

func (f *fixture) processor(cfg queue.ProcessorConfig) *queue.Processor {
	return f.processorWith(f.store.Queue(), stats.NewService(f.store.History()), cfg)
}

func (f *fixture) processorWith(repo queue.Repository, rec queue.Recorder, cfg queue.ProcessorConfig) *queue.Processor {
	if cfg.Owner == "" {
		cfg.Owner = "test-worker"
	}
	return queue.NewProcessor(repo, f.dispatcher, rec, cfg)
}

func assignments(ids ...string) []domain.Assignment {
	return []domain.Assignment{{AccountID: "A", ContactIDs: ids}}
}

func TestAdd_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name string
		in   queue.AddInput
	}{
		{"missing domain", queue.AddInput{TemplateID: "T", Assignments: assignments("c1")}},
		{"unknown template", queue.AddInput{DomainID: "D", TemplateID: "nope", Assignments: assignments("c1")}},
		{"template of another domain", queue.AddInput{DomainID: "D", TemplateID: "T-E", Assignments: assignments("c1")}},
		{"no assignments", queue.AddInput{DomainID: "D", TemplateID: "T"}},
		{"no contacts", queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments()}},
		{"unknown contact", queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments("ghost")}},
		{"inactive account", queue.AddInput{DomainID: "D", TemplateID: "T",
			Assignments: []domain.Assignment{{AccountID: "off", ContactIDs: []string{"c1"}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Add(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err), "got %v", err)
		})
	}

	items, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAdd_DefaultsAndSelection(t *testing.T) {
	f := newFixture(t)
	ctx := identity.WithSelection(context.Background(), identity.Selection{DomainID: "D"})

	before := time.Now().UTC()
	item, err := f.svc.Add(ctx, queue.AddInput{TemplateID: "T", Assignments: assignments("c1")})
	require.NoError(t, err)
	assert.Equal(t, "D", item.DomainID)
	assert.Equal(t, domain.QueuePending, item.Status)
	assert.False(t, item.ScheduledAt.Before(before.Truncate(time.Second)))

	later := time.Now().Add(24 * time.Hour)
	item, err = f.svc.Add(ctx, queue.AddInput{TemplateID: "T", Assignments: assignments("c2"), ScheduledAt: &later})
	require.NoError(t, err)
	assert.True(t, item.ScheduledAt.Equal(later.UTC()))
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	item, err := f.svc.Add(ctx, queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments("c1")})
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(ctx, item.ID))
	got, err := f.svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueCancelled, got.Status)

	err = f.svc.Cancel(ctx, item.ID)
	assert.ErrorIs(t, err, queue.ErrNotCancellable)
	assert.ErrorIs(t, err, domain.ErrConflict)

	assert.ErrorIs(t, f.svc.Cancel(ctx, "ghost"), domain.ErrNotFound)

	n, err := f.processor(queue.ProcessorConfig{}).Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "cancelled items are never processed")
	assert.Zero(t, f.ch.count())
}

func TestClearFinished(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	done, err := f.svc.Add(ctx, queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments("c1")})
	require.NoError(t, err)
	_, err = f.processor(queue.ProcessorConfig{}).Tick(ctx)
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	waiting, err := f.svc.Add(ctx, queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments("c2"), ScheduledAt: &later})
	require.NoError(t, err)

	n, err := f.svc.ClearFinished(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.Get(ctx, done.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.Get(ctx, waiting.ID)
	assert.NoError(t, err)
}

func TestTick_ProcessesDueItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ch.failOn["c2@example.com"] = true

	item, err := f.svc.Add(ctx, queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments("c1", "c2", "c3")})
	require.NoError(t, err)

	p := f.processor(queue.ProcessorConfig{})
	n := &recordingNotifier{}
	p.SetNotifier(n)

	processed, err := p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	got, err := f.svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueCompleted, got.Status)
	require.Len(t, got.Results, 3)
	assert.Equal(t, domain.StatusFailed, got.Results[1].Status)
	assert.NotNil(t, got.CompletedAt)

	d, _ := f.store.Directory().GetDomain(ctx, "D")
	assert.Equal(t, domain.Stats{TotalSent: 3, Successful: 2, Failed: 1}, d.Stats)

	history, err := f.store.History().ListHistory(ctx, "D")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, item.ID, history[0].QueueID)

	require.Len(t, n.calls, 1)
	assert.Len(t, n.calls[0], 3)

	processed, err = p.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, processed, "completed items are not picked up again")
	assert.Equal(t, 3, f.ch.count())
}

func TestTick_SkipsFutureItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	later := time.Now().Add(time.Hour)
	item, err := f.svc.Add(ctx, queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments("c1"), ScheduledAt: &later})
	require.NoError(t, err)

	n, err := f.processor(queue.ProcessorConfig{}).Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, _ := f.svc.Get(ctx, item.ID)
	assert.Equal(t, domain.QueuePending, got.Status)
}

func TestTick_MaxItemsPerTick(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, c := range []string{"c1", "c2", "c3"} {
		_, err := f.svc.Add(ctx, queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments(c)})
		require.NoError(t, err)
	}

	p := f.processor(queue.ProcessorConfig{MaxItemsPerTick: 2})
	n, err := p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = p.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTick_ExpiredLeaseFailsWithoutResend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item, err := f.svc.Add(ctx, queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments("c1")})
	require.NoError(t, err)

	// A worker that died two hours ago, holding a one hour lease.
	repo := f.store.Queue()
	claimed, err := repo.ClaimNext(ctx, "dead-worker", time.Now().UTC().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	n, err := f.processor(queue.ProcessorConfig{}).Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, _ := f.svc.Get(ctx, item.ID)
	assert.Equal(t, domain.QueueFailed, got.Status)
	assert.Equal(t, queue.ExpiredLeaseError, got.Error)
	assert.Zero(t, f.ch.count())
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, stats.BatchRef, []domain.SendResult) (*domain.HistoryRecord, error) {
	return nil, errors.New("disk full")
}

func TestTick_RecordFailureMarksItemFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item, err := f.svc.Add(ctx, queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments("c1")})
	require.NoError(t, err)

	p := f.processorWith(f.store.Queue(), failingRecorder{}, queue.ProcessorConfig{})
	n := &recordingNotifier{}
	p.SetNotifier(n)

	_, err = p.Tick(ctx)
	require.NoError(t, err)

	got, _ := f.svc.Get(ctx, item.ID)
	assert.Equal(t, domain.QueueFailed, got.Status)
	assert.Contains(t, got.Error, "record results")
	assert.Len(t, got.Results, 1)
	assert.Empty(t, n.calls, "nothing is synced when recording fails")
}

// stolenLease loses the claim as soon as the first assignment finishes.
type stolenLease struct {
	*memory.QueueRepo
}

func (s stolenLease) ExtendLease(context.Context, string, string, time.Time) error {
	return queue.ErrLeaseLost
}

func (s stolenLease) Finish(context.Context, string, string, queue.Outcome) error {
	return queue.ErrLeaseLost
}

func TestTick_LeaseLostStopsBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.PutAccount(domain.Account{ID: "B", DomainID: "D", Email: "b@d.example", Active: true})

	item, err := f.svc.Add(ctx, queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: []domain.Assignment{
		{AccountID: "A", ContactIDs: []string{"c1"}},
		{AccountID: "B", ContactIDs: []string{"c2"}},
	}})
	require.NoError(t, err)

	p := f.processorWith(stolenLease{f.store.Queue()}, stats.NewService(f.store.History()), queue.ProcessorConfig{})
	_, err = p.Tick(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, f.ch.count(), "second assignment is not sent after the lease is lost")

	history, _ := f.store.History().ListHistory(ctx, "D")
	require.Len(t, history, 1, "partial results are still recorded")
	assert.Len(t, history[0].Results, 1)

	got, _ := f.svc.Get(ctx, item.ID)
	assert.Equal(t, domain.QueueProcessing, got.Status, "the new owner decides the outcome")
}

func TestTick_LongAssignmentKeepsLease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.PutContact(domain.Contact{ID: "c4", DomainID: "D", AccountID: "A", Email: "c4@example.com", FullName: "c4"})

	item, err := f.svc.Add(ctx, queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments("c1", "c2", "c3", "c4")})
	require.NoError(t, err)

	// One assignment takes well over the lease: three 100ms pauses against a 150ms lease.
	slow := dispatch.New(f.store.Directory(), f.ch, 100*time.Millisecond)
	cfg := queue.ProcessorConfig{Lease: 150 * time.Millisecond}
	cfg.Owner = "worker-a"
	a := queue.NewProcessor(f.store.Queue(), slow, stats.NewService(f.store.History()), cfg)
	cfg.Owner = "worker-b"
	b := queue.NewProcessor(f.store.Queue(), slow, stats.NewService(f.store.History()), cfg)
	b.SetLock(distlock.NewLocalLock("worker-b-poll"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := a.Tick(ctx)
		assert.NoError(t, err)
	}()

	// A second worker keeps expiring leases while the first one sends.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-done:
			break wait
		case <-ticker.C:
			_, err := b.Tick(ctx)
			require.NoError(t, err)
		}
	}

	assert.Equal(t, 4, f.ch.count())

	got, err := f.svc.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueCompleted, got.Status, got.Error)
	assert.Len(t, got.Results, 4)

	history, err := f.store.History().ListHistory(ctx, "D")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Len(t, history[0].Results, 4)
}

type flag bool

func (f flag) AutoProcessQueue(context.Context) (bool, error) { return bool(f), nil }

func TestPoll_RespectsAutoProcess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Add(ctx, queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments("c1")})
	require.NoError(t, err)

	p := f.processor(queue.ProcessorConfig{})
	p.SetAutoProcess(flag(false))
	n, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	p.SetAutoProcess(flag(true))
	n, err = p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProcessor_StartStop(t *testing.T) {
	f := newFixture(t)
	p := f.processor(queue.ProcessorConfig{PollInterval: 10 * time.Millisecond})

	require.NoError(t, p.Start())
	assert.Error(t, p.Start())

	_, err := f.svc.Add(context.Background(), queue.AddInput{DomainID: "D", TemplateID: "T", Assignments: assignments("c1")})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return f.ch.count() == 1 }, time.Second, 10*time.Millisecond)
	p.Stop()
	p.Stop()
}
