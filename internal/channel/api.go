package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/dispatch-engine/internal/domain"
	"github.com/ignite/dispatch-engine/internal/pkg/httpretry"
)

// Provider API paths.
const (
	pathTemplateSend = "/v1.1/email/template"
	pathPlainSend    = "/v1.1/email"
	pathTemplateGet  = "/v1.1/email/template/"
)

// APIChannel sends through the provider's HTTP API. Open and click tracking
// are requested on every message. Sends are attempted once; only template
// reads are retried.
type APIChannel struct {
	client *http.Client
	reads  httpretry.Doer
}

// NewAPIChannel creates an API channel with the given request timeout.
func NewAPIChannel(timeout time.Duration) *APIChannel {
	client := &http.Client{Timeout: timeout}
	return &APIChannel{client: client, reads: httpretry.New(client, httpretry.DefaultPolicy)}
}

type apiRecipient struct {
	EmailAddress Address `json:"email_address"`
}

type apiSendRequest struct {
	From        Address           `json:"from"`
	To          []apiRecipient    `json:"to"`
	TemplateKey string            `json:"template_key,omitempty"`
	MergeInfo   map[string]string `json:"merge_info,omitempty"`
	Subject     string            `json:"subject,omitempty"`
	HTMLBody    string            `json:"htmlbody,omitempty"`
	TrackClicks bool              `json:"track_clicks"`
	TrackOpens  bool              `json:"track_opens"`
}

type apiSendResponse struct {
	Data []struct {
		MessageID string `json:"message_id"`
	} `json:"data"`
}

// Send implements Channel. A message with a TemplateKey uses the templated
// operation and leaves substitution to the provider.
func (c *APIChannel) Send(ctx context.Context, d *domain.Domain, msg *Message) (string, error) {
	req := apiSendRequest{
		From:        msg.From,
		To:          []apiRecipient{{EmailAddress: msg.To}},
		TrackClicks: true,
		TrackOpens:  true,
	}
	path := pathPlainSend
	if msg.TemplateKey != "" {
		path = pathTemplateSend
		req.TemplateKey = msg.TemplateKey
		req.MergeInfo = msg.MergeInfo
		if req.MergeInfo == nil {
			req.MergeInfo = map[string]string{}
		}
	} else {
		req.Subject, req.HTMLBody = msg.Rendered()
	}

	body, status, err := c.do(ctx, c.client, d, http.MethodPost, path, req)
	if err != nil {
		return "", err
	}

	var out apiSendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &SendError{Channel: NameAPI, StatusCode: status, Payload: string(body), Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Data) == 0 {
		return "", nil
	}
	return out.Data[0].MessageID, nil
}

// ProviderTemplate is a template stored at the provider.
type ProviderTemplate struct {
	Name     string `json:"template_name"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"htmlbody"`
}

// FetchTemplate loads a provider-side template by key.
func (c *APIChannel) FetchTemplate(ctx context.Context, d *domain.Domain, key string) (*ProviderTemplate, error) {
	body, _, err := c.do(ctx, c.reads, d, http.MethodGet, pathTemplateGet+url.PathEscape(key), nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data ProviderTemplate `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode template %s: %w", key, err)
	}
	return &out.Data, nil
}

func (c *APIChannel) do(ctx context.Context, client httpretry.Doer, d *domain.Domain, method, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL(d)+path, reqBody)
	if err != nil {
		return nil, 0, &SendError{Channel: NameAPI, Err: err}
	}
	req.Header.Set("Authorization", d.APIKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, &SendError{Channel: NameAPI, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, &SendError{Channel: NameAPI, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, &SendError{
			Channel:    NameAPI,
			StatusCode: resp.StatusCode,
			Payload:    strings.TrimSpace(string(body)),
			Err:        fmt.Errorf("provider returned %s", resp.Status),
		}
	}
	return body, resp.StatusCode, nil
}

// baseURL returns the provider origin for d. Hosts that already carry a
// scheme are used as-is.
func baseURL(d *domain.Domain) string {
	host := strings.TrimRight(d.ProviderHost(), "/")
	if strings.Contains(host, "://") {
		return host
	}
	return "https://" + host
}
