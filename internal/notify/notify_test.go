package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/dispatch-engine/internal/config"
	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/httpretry"
)

var sample = []domain.SendResult{
	{AccountID: "A", ContactID: "c1", Email: "c1@example.com", Status: domain.StatusSent, MessageID: "m1"},
	{AccountID: "A", ContactID: "c2", Email: "c2@example.com", Status: domain.StatusFailed, Error: "HTTP 500"},
}

func TestNewPayload_Situations(t *testing.T) {
	p := NewPayload(sample, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.Len(t, p.Rows, 2)
	assert.Equal(t, SituationSent, p.Rows[0].Situation)
	assert.Equal(t, SituationFailed, p.Rows[1].Situation)
	assert.Equal(t, "HTTP 500", p.Rows[1].Error)
}

func TestHTTPTarget_Delivers(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := NewAsync(NewHTTPTarget(srv.URL, srv.Client()), "http", time.Second)
	a.Notify(context.Background(), sample)
	a.Wait()

	require.Len(t, got.Results, 2)
	assert.Equal(t, "m1", got.Results[0].MessageID)
}

func TestHTTPTarget_FailureIsReportedNotReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("sheet locked"))
	}))
	defer srv.Close()

	client := httpretry.New(srv.Client(), httpretry.Policy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	a := NewAsync(NewHTTPTarget(srv.URL, client), "http", time.Second)

	var mu sync.Mutex
	var errs []*SyncError
	a.OnError = func(e *SyncError) {
		mu.Lock()
		errs = append(errs, e)
		mu.Unlock()
	}

	a.Notify(context.Background(), sample)
	a.Wait()

	require.Len(t, errs, 1)
	assert.Equal(t, "http", errs[0].Target)
	assert.Contains(t, errs[0].Error(), "sheet locked")
}

type blockingTarget struct{ release chan struct{} }

func (b blockingTarget) Deliver(ctx context.Context, _ Payload) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestAsync_NotifyDoesNotBlock(t *testing.T) {
	target := blockingTarget{release: make(chan struct{})}
	a := NewAsync(target, "slow", time.Second)

	done := make(chan struct{})
	go func() {
		a.Notify(context.Background(), sample)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Notify blocked on a slow target")
	}
	close(target.release)
	a.Wait()
}

func TestAsync_TimeoutAndCancelledCaller(t *testing.T) {
	target := blockingTarget{release: make(chan struct{})}
	a := NewAsync(target, "slow", 20*time.Millisecond)

	var got error
	a.OnError = func(e *SyncError) { got = e }

	ctx, cancel := context.WithCancel(context.Background())
	a.Notify(ctx, sample)
	cancel()
	a.Wait()

	require.Error(t, got)
	assert.True(t, errors.Is(got, context.DeadlineExceeded), "caller cancellation must not abort delivery early")
}

type countingTarget struct{ n *int64 }

func (c countingTarget) Deliver(context.Context, Payload) error {
	atomic.AddInt64(c.n, 1)
	return nil
}

func TestAsync_CloseWhileNotifying(t *testing.T) {
	var delivered int64
	a := NewAsync(countingTarget{n: &delivered}, "count", time.Second)

	var senders sync.WaitGroup
	for i := 0; i < 8; i++ {
		senders.Add(1)
		go func() {
			defer senders.Done()
			for j := 0; j < 50; j++ {
				a.Notify(context.Background(), sample)
			}
		}()
	}
	a.Close()
	senders.Wait()

	// Everything accepted before Close has been delivered; later calls are dropped.
	after := atomic.LoadInt64(&delivered)
	assert.LessOrEqual(t, after, int64(8*50))
	a.Notify(context.Background(), sample)
	a.Wait()
	assert.Equal(t, after, atomic.LoadInt64(&delivered))
}

func TestAsync_SkipsEmpty(t *testing.T) {
	a := NewAsync(blockingTarget{}, "none", time.Millisecond)
	a.Notify(context.Background(), nil)
	a.Wait()
}

type fakeSQS struct {
	in  *sqs.SendMessageInput
	err error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.in = in
	return &sqs.SendMessageOutput{MessageId: aws.String("sqs-1")}, f.err
}

func TestSQSTarget(t *testing.T) {
	client := &fakeSQS{}
	target := NewSQSTarget(client, "https://sqs.us-west-2.amazonaws.com/1/dispatch-results")

	require.NoError(t, target.Deliver(context.Background(), NewPayload(sample, time.Now())))
	assert.Equal(t, "https://sqs.us-west-2.amazonaws.com/1/dispatch-results", aws.ToString(client.in.QueueUrl))

	var p Payload
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(client.in.MessageBody)), &p))
	assert.Len(t, p.Rows, 2)

	client.err = errors.New("throttled")
	assert.ErrorContains(t, target.Deliver(context.Background(), p), "throttled")
}

func TestHTTPTarget_SendsOnceByDefault(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewHTTPTarget(srv.URL, nil).Deliver(context.Background(), NewPayload(sample, time.Now()))
	require.Error(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits)
}

func TestFromConfig(t *testing.T) {
	n, err := FromConfig(context.Background(), config.NotifyConfig{Mode: config.NotifyNone})
	require.NoError(t, err)
	assert.Nil(t, n)

	n, err = FromConfig(context.Background(), config.NotifyConfig{Mode: config.NotifyHTTP, URL: "http://tracker.local/hook", TimeoutSeconds: 2})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, 2*time.Second, n.timeout)

	n, err = FromConfig(context.Background(), config.NotifyConfig{Mode: config.NotifyHTTP, URL: "http://tracker.local/hook", MaxRetries: 2})
	require.NoError(t, err)
	target, ok := n.target.(*HTTPTarget)
	require.True(t, ok)
	assert.IsType(t, &httpretry.Client{}, target.client)

	_, err = FromConfig(context.Background(), config.NotifyConfig{Mode: "carrier-pigeon"})
	assert.Error(t, err)
}
