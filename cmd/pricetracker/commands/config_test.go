package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pricetracker-backend/lib/configutil"
	"pricetracker-backend/services/tracker"

	"github.com/stretchr/testify/require"
)

func TestExampleConfig(t *testing.T) {
	config, err := configutil.ReadConfig[Config]("../config.json5")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "data/prices.db", config.Database.File)
	require.Equal(t, 3, config.Discovery.Workers)
	require.Equal(t, "local", config.Telemetry.Environment)
	require.False(t, config.Telemetry.Configured())

	opts := config.serviceOptions()
	require.Equal(t, 10*time.Minute, opts.Checker.Interval)
	require.Equal(t, 2*time.Second, opts.ProductPause)
	require.Equal(t, time.Second, opts.GroupPause)
	require.Equal(t, 5*time.Minute, opts.StaleAfter)
	require.Equal(t, tracker.Notifiers{tracker.LogNotifier{}}, opts.Notifier)
}

func TestConfigDefaults(t *testing.T) {
	var config Config
	config.SetDefaults()
	require.NoError(t, config.Validate())
	require.Equal(t, 30, config.Fetch.TimeoutSeconds)

	delay := config.humanDelay()
	require.Equal(t, time.Second, delay.Min)
	require.Equal(t, 3*time.Second, delay.Max)
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	err := os.WriteFile(path, []byte(`{
		fetch: { human_delay_min_ms: 5000, human_delay_max_ms: 1000 },
	}`), 0600)
	if err != nil {
		t.Fatal(err)
	}
	_, err = configutil.ReadConfig[Config](path)
	require.ErrorContains(t, err, "human_delay_min_ms")

	err = os.WriteFile(path, []byte(`{ alerts: { to: ["me@example.com"] } }`), 0600)
	if err != nil {
		t.Fatal(err)
	}
	_, err = configutil.ReadConfig[Config](path)
	require.ErrorContains(t, err, "alerts.smtp")

	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		alerts: { smtp: { server: "smtp.example.com", email_address: "alerts@example.com" } },
	}`), 0600)
	if err != nil {
		t.Fatal(err)
	}
	config, err := configutil.ReadConfig[Config](path)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, config.serviceOptions().Notifier, 2)
}
