package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/dispatch-engine/internal/domain"
)

type captureChannel struct {
	called bool
	last   *Message
	id     string
}

func (c *captureChannel) Send(_ context.Context, _ *domain.Domain, msg *Message) (string, error) {
	c.called = true
	c.last = msg
	return c.id, nil
}

func TestRouter_SelectsByDomain(t *testing.T) {
	api := &captureChannel{id: "api-1"}
	smtp := &captureChannel{id: "smtp-1"}
	r := NewRouter(api, smtp)

	id, err := r.Send(context.Background(), &domain.Domain{UseSMTP: true}, &Message{})
	require.NoError(t, err)
	assert.Equal(t, "smtp-1", id)
	assert.True(t, smtp.called)
	assert.False(t, api.called)

	id, err = r.Send(context.Background(), &domain.Domain{}, &Message{})
	require.NoError(t, err)
	assert.Equal(t, "api-1", id)
	assert.True(t, api.called)
}

func TestCompose(t *testing.T) {
	account := &domain.Account{Email: "grace@navy.example", DisplayName: "Grace Hopper"}
	contact := &domain.Contact{Email: "ada@example.com", Name: "Ada", Surname: "Lovelace"}
	values := map[string]string{"name": "Ada"}

	msg := Compose(&domain.Template{Subject: "Hello {name}", HTMLBody: "Hi {name}"}, account, contact, values)
	assert.Equal(t, Address{Email: "grace@navy.example", Name: "Grace Hopper"}, msg.From)
	assert.Equal(t, Address{Email: "ada@example.com", Name: "Ada Lovelace"}, msg.To)
	assert.Empty(t, msg.TemplateKey)

	subject, body := msg.Rendered()
	assert.Equal(t, "Hello Ada", subject)
	assert.Equal(t, "Hi Ada", body)

	msg = Compose(&domain.Template{TemplateKey: "tpl-key", HTMLBody: "Hi {name}"}, account, contact, values)
	assert.Equal(t, "tpl-key", msg.TemplateKey)
	subject, _ = msg.Rendered()
	assert.Equal(t, DefaultSubject, subject)

	msg = Compose(&domain.Template{TemplateKey: "   "}, account, contact, values)
	assert.Empty(t, msg.TemplateKey, "blank keys use the plain path")
}

func TestSendErrorMessage(t *testing.T) {
	err := &SendError{Channel: NameAPI, StatusCode: 422, Payload: `{"error":"bad address"}`, Err: errors.New("provider returned 422")}
	assert.Equal(t, `api send failed (422): {"error":"bad address"}`, err.Error())

	se, ok := AsSendError(errors.Join(errors.New("wrapped"), err))
	require.True(t, ok)
	assert.Equal(t, 422, se.StatusCode)

	err = &SendError{Channel: NameSMTP, Err: errors.New("connection refused")}
	assert.Equal(t, "smtp send failed: connection refused", err.Error())
}
