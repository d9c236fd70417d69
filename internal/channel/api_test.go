package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/dispatch-engine/internal/domain"
)

func testDomain(host string) *domain.Domain {
	return &domain.Domain{ID: "d1", Host: host, APIKey: "Zoho-enczapikey secret"}
}

func TestAPIChannel_TemplatedSend(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1.1/email/template", r.URL.Path)
		assert.Equal(t, "Zoho-enczapikey secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"data":[{"code":"EM_104","message_id":"msg-123"}],"message":"OK"}`))
	}))
	defer server.Close()

	ch := NewAPIChannel(5 * time.Second)
	id, err := ch.Send(context.Background(), testDomain(server.URL), &Message{
		From:        Address{Email: "grace@navy.example", Name: "Grace"},
		To:          Address{Email: "ada@example.com", Name: "Ada"},
		TemplateKey: "welcome",
		MergeInfo:   map[string]string{"name": "Ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-123", id)

	assert.Equal(t, "welcome", got["template_key"])
	assert.Equal(t, map[string]any{"name": "Ada"}, got["merge_info"])
	assert.Equal(t, true, got["track_clicks"])
	assert.Equal(t, true, got["track_opens"])
	assert.NotContains(t, got, "htmlbody")
	to := got["to"].([]any)[0].(map[string]any)["email_address"].(map[string]any)
	assert.Equal(t, "ada@example.com", to["address"])
}

func TestAPIChannel_PlainSendSubstitutes(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1.1/email", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"data":[{"message_id":"msg-9"}]}`))
	}))
	defer server.Close()

	ch := NewAPIChannel(5 * time.Second)
	id, err := ch.Send(context.Background(), testDomain(server.URL), &Message{
		From:      Address{Email: "grace@navy.example"},
		To:        Address{Email: "ada@example.com"},
		Subject:   "For {NAME}",
		HTMLBody:  "Hi {name}",
		MergeInfo: map[string]string{"name": "Ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-9", id)
	assert.Equal(t, "For Ada", got["subject"])
	assert.Equal(t, "Hi Ada", got["htmlbody"])
	assert.NotContains(t, got, "template_key")
}

func TestAPIChannel_ProviderErrorCarriesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"code":"TM_3201","message":"Mandatory Field 'to' is empty"}}`))
	}))
	defer server.Close()

	ch := NewAPIChannel(5 * time.Second)
	_, err := ch.Send(context.Background(), testDomain(server.URL), &Message{To: Address{Email: "x@example.com"}})
	require.Error(t, err)

	se, ok := AsSendError(err)
	require.True(t, ok)
	assert.Equal(t, NameAPI, se.Channel)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Contains(t, se.Payload, "TM_3201")
}

func TestAPIChannel_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	ch := NewAPIChannel(time.Second)
	_, err := ch.Send(context.Background(), testDomain(url), &Message{})
	se, ok := AsSendError(err)
	require.True(t, ok)
	assert.Zero(t, se.StatusCode)
	assert.Error(t, se.Err)
}

func TestAPIChannel_FetchTemplate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1.1/email/template/welcome", r.URL.Path)
		w.Write([]byte(`{"data":{"template_name":"Welcome","subject":"Hi","htmlbody":"<p>{first_name}</p>"}}`))
	}))
	defer server.Close()

	ch := NewAPIChannel(5 * time.Second)
	tpl, err := ch.FetchTemplate(context.Background(), testDomain(server.URL), "welcome")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", tpl.Name)
	assert.Equal(t, "<p>{first_name}</p>", tpl.HTMLBody)
}

func TestAPIChannel_SendIsAttemptedOnce(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ch := NewAPIChannel(5 * time.Second)
	_, err := ch.Send(context.Background(), testDomain(server.URL), &Message{To: Address{Email: "x@example.com"}})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestAPIChannel_FetchTemplateRetriesUnavailable(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":{"template_name":"Welcome","subject":"Hi","htmlbody":"<p>Hi</p>"}}`))
	}))
	defer server.Close()

	ch := NewAPIChannel(5 * time.Second)
	tpl, err := ch.FetchTemplate(context.Background(), testDomain(server.URL), "welcome")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", tpl.Name)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://api.zeptomail.com", baseURL(&domain.Domain{}))
	assert.Equal(t, "https://api.zeptomail.eu", baseURL(&domain.Domain{Host: "api.zeptomail.eu/"}))
	assert.Equal(t, "http://127.0.0.1:9000", baseURL(&domain.Domain{Host: "http://127.0.0.1:9000"}))
}
