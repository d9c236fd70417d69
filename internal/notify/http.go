package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ignite/dispatch-engine/internal/pkg/httpretry"
)

// HTTPTarget POSTs payloads as JSON to a webhook URL.
type HTTPTarget struct {
	url    string
	client httpretry.Doer
}

// NewHTTPTarget creates a target for url. A nil client sends each payload
// once; pass an httpretry.Client to retry transient failures.
func NewHTTPTarget(url string, client httpretry.Doer) *HTTPTarget {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTarget{url: url, client: client}
}

func (t *HTTPTarget) Deliver(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("tracker returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
