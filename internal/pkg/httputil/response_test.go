package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/dispatch-engine/internal/domain"
)

func TestServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"validation", domain.Invalid("templateId", "template is required"), http.StatusBadRequest, "template is required"},
		{"not found", fmt.Errorf("queue item q1: %w", domain.ErrNotFound), http.StatusNotFound, "q1"},
		{"conflict", fmt.Errorf("cancel q1: %w", domain.ErrConflict), http.StatusConflict, "q1"},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ServiceError(rec, tt.err)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, contentTypeJSON, rec.Header().Get("Content-Type"))
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body.Error, tt.body)
			assert.NotContains(t, body.Error, "pq:")
		})
	}
}

func TestDecode(t *testing.T) {
	var dst struct {
		DomainID string `json:"domainId"`
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"domainId":"D"}`))
	require.True(t, Decode(rec, req, &dst))
	assert.Equal(t, "D", dst.DomainID)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"domainId":`))
	assert.False(t, Decode(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON")
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}
