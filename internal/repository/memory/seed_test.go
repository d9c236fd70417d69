package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/dispatch-engine/internal/domain"
)

const seedYAML = `
settings:
  auto_process_queue: true
  active_domain_id: D
domains:
  - id: D
    name: Primary
    api_key: secret
  - id: relay
    name: Relay
    use_smtp: true
    smtp_host: smtp.example.com
    smtp_port: 587
accounts:
  - id: A
    domain_id: D
    email: a@d.example
  - id: off
    domain_id: D
    email: off@d.example
    active: false
templates:
  - id: T
    domain_id: D
    subject: Hi {name}
    html_body: "<p>Hi {name}</p>"
    merge_fields:
      name: {type: column, value: full_name}
contacts:
  - id: c1
    domain_id: D
    account_id: A
    email: c1@example.com
    full_name: Ada
    attributes: {city: Lagos}
`

func TestLoadSeed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	s := NewStore()
	require.NoError(t, LoadSeed(s, path))

	d, err := s.Directory().GetDomain(ctx, "D")
	require.NoError(t, err)
	assert.True(t, d.Active)
	assert.Equal(t, "secret", d.APIKey)

	relay, err := s.Directory().GetDomain(ctx, "relay")
	require.NoError(t, err)
	assert.False(t, relay.Active)
	assert.True(t, relay.UseSMTP)
	assert.Equal(t, 587, relay.SMTPPort)

	a, err := s.Directory().GetAccount(ctx, "A")
	require.NoError(t, err)
	assert.True(t, a.Active)
	off, err := s.Directory().GetAccount(ctx, "off")
	require.NoError(t, err)
	assert.False(t, off.Active)

	tpl, err := s.Directory().GetTemplate(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, domain.MergeField{Kind: domain.MergeColumn, Value: "full_name"}, tpl.MergeFields["name"])

	c, err := s.Directory().GetContact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnsent, c.SendStatus)
	assert.Equal(t, "Lagos", c.Attributes["city"])

	st, err := s.Identity().GetSettings(ctx)
	require.NoError(t, err)
	assert.True(t, st.AutoProcessQueue)
	assert.Equal(t, "D", st.ActiveDomainID)
}

func TestApply_UnknownActiveDomain(t *testing.T) {
	err := NewStore().Apply(Seed{Settings: seedSettings{ActiveDomainID: "ghost"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLoadSeed_MissingFile(t *testing.T) {
	err := LoadSeed(NewStore(), filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}
