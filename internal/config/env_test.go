package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8090", c.Port)
	assert.NotContains(t, c.NodeURL, ":"+c.Port, "the API must not listen on the node's port")
	assert.Equal(t, 5, c.DeployMaxAttempts)
	assert.Equal(t, 500*time.Millisecond, c.DeployInitialBackoff)
	assert.Equal(t, 30*time.Second, c.DeployMaxBackoff)
	assert.Equal(t, 30*time.Second, c.WatchMaxBackoff)
	assert.Equal(t, 5*time.Second, c.MetricsInterval)
	assert.Equal(t, "linera_events", c.SupabaseTable)
	assert.Empty(t, c.NodeWSURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LINERA_NODE_URL", "https://node.example")
	t.Setenv("LINERA_DEPLOY_MAX_ATTEMPTS", "2")
	t.Setenv("LINERA_CONFIRM_TIMEOUT", "5s")
	t.Setenv("LINERA_MAX_RPS", "2.5")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://node.example", c.NodeURL)
	assert.Equal(t, 2, c.DeployMaxAttempts)
	assert.Equal(t, 5*time.Second, c.ConfirmTimeout)
	assert.InDelta(t, 2.5, c.MaxRPS, 0.001)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("LINERA_DEPLOY_MAX_ATTEMPTS", "0")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("LINERA_DEPLOY_MAX_ATTEMPTS", "3")
	t.Setenv("LINERA_REQUEST_TIMEOUT", "soon")
	_, err = Load()
	require.Error(t, err)
}

func TestInitAndGetters(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LINERA_METRICS_INTERVAL", "1s")
	require.NoError(t, Init())

	assert.Equal(t, "9090", GetPort())
	assert.Equal(t, time.Second, GetMetricsInterval())
	assert.Equal(t, Get().NodeURL, GetNodeURL())
}

func TestReadPasswordFromEnvironment(t *testing.T) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		t.Skip("stdin is a terminal")
	}
	t.Setenv("LINERA_WALLET_PASSWORD", "hunter2")

	pw, err := ReadPassword("password: ")
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), pw)

	require.NoError(t, PromptForPassword())
	got, err := GetWalletPasswordBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), got)

	t.Setenv("LINERA_WALLET_PASSWORD", "")
	_, err = ReadPassword("password: ")
	require.Error(t, err)
}
