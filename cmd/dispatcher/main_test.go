package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "worker", "process-once", "migrate"}, names)
}

func TestProcessOnce_MemoryStore(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte("domains:\n  - id: D\n    name: Primary\n"), 0o644))
	t.Setenv("STORE_SEED_FILE", seed)

	out, err := run(t, "process-once")
	require.NoError(t, err)
	assert.Contains(t, out, "processed 0 queue item(s)")
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	_, err := run(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestWorker_RejectsMemoryStore(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	_, err := run(t, "worker")
	require.Error(t, err)
}

func TestBadConfigPath(t *testing.T) {
	_, err := run(t, "process-once", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
