package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "worker", "generate", "regenerate", "migrate", "industries", "show"} {
		assert.Contains(t, names, want)
	}
}

func TestIndustriesCommand_MemoryStore(t *testing.T) {
	t.Setenv("TARIFFMANAGER_DB_DRIVER", "memory")
	t.Setenv("TARIFFMANAGER_LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"industries"})
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
}

func TestShowCommand_NotGenerated(t *testing.T) {
	t.Setenv("TARIFFMANAGER_DB_DRIVER", "memory")
	t.Setenv("TARIFFMANAGER_LOG_LEVEL", "error")

	rootCmd.SetArgs([]string{"show", "--industry", "steel", "--section", "tariff-impact"})
	err := rootCmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has not been generated")
}
