package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodevents/nodevents-go/pkg/config"
	"github.com/nodevents/nodevents-go/pkg/topic"
)

func parse(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var opts options
	fs := newFlagSet(&opts)
	require.NoError(t, fs.Parse(args))
	return loadConfig(&opts, fs)
}

func TestFlagsOverrideDefaults(t *testing.T) {
	cfg, err := parse(t,
		"--host", "node.local", "-p", "1884", "--keep-alive", "15s",
		"-m", "21", "--output-id", "0x01", "--qos", "0", "--profile", "chrysalis",
		"--trace", "s.nlog", "--metrics-listen", ":9100",
	)
	require.NoError(t, err)

	assert.Equal(t, "node.local", cfg.Broker.Host)
	assert.Equal(t, 1884, cfg.Broker.Port)
	assert.Equal(t, 15*time.Second, cfg.Broker.KeepAlive)
	assert.Equal(t, "s.nlog", cfg.Trace.Path)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
	assert.NotEmpty(t, cfg.Broker.ClientID)

	sel, err := cfg.Selection()
	require.NoError(t, err)
	assert.Equal(t, topic.Mask(0x21), sel.Mask)
	assert.Equal(t, topic.ProfileChrysalis, sel.Profile)
	assert.Equal(t, "0x01", sel.Identifiers.OutputID)
	assert.True(t, sel.QoS0)
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodevents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("broker:\n  host: file.example.org\n  client_id: from-file\nevents:\n  mask: \"02\"\n"), 0o600))

	cfg, err := parse(t, "-c", path, "--mask", "04")
	require.NoError(t, err)

	assert.Equal(t, "file.example.org", cfg.Broker.Host)
	assert.Equal(t, "from-file", cfg.Broker.ClientID)
	assert.Equal(t, "04", cfg.Events.Mask)
}

func TestFlagsUnsetKeepFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodevents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("events:\n  qos: 2\n"), 0o600))

	cfg, err := parse(t, "-c", path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Events.QoS)
}

func TestDiscoverClearsDefaultHost(t *testing.T) {
	cfg, err := parse(t, "--discover")
	require.NoError(t, err)
	assert.True(t, cfg.Broker.Discover)
	assert.Empty(t, cfg.Broker.Host)

	cfg, err = parse(t, "--discover", "--host", "explicit")
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.Broker.Host)
}

func TestInvalidFlagsFailValidation(t *testing.T) {
	_, err := parse(t, "--mask", "xyz")
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = parse(t, "--qos", "5")
	assert.ErrorIs(t, err, config.ErrInvalid)
}
