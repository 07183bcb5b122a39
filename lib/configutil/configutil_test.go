package configutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Database struct {
		File string `json:"file"`
	} `json:"database"`
	IntervalMinutes int  `json:"interval_minutes"`
	Verbose         bool `json:"verbose"`
}

func (c *testConfig) SetDefaults() {
	if c.IntervalMinutes == 0 {
		c.IntervalMinutes = 10
	}
}

func (c *testConfig) Validate() error {
	if c.Database.File == "" {
		return errors.New("database.file is required")
	}
	return nil
}

func write(t *testing.T, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "config.json5"), `{
		// comments and trailing commas are fine
		database: { file: "prices.db" },
		verbose: false,
	}`)
	write(t, filepath.Join(dir, "config.local.json5"), `{ verbose: true }`)

	config, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "prices.db", config.Database.File)
	require.True(t, config.Verbose)
	require.Equal(t, 10, config.IntervalMinutes)
}

func TestReadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.True(t, os.IsNotExist(err))

	write(t, filepath.Join(dir, "config.json5"), `{ interval_minutes: 5 }`)
	_, err = ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.ErrorContains(t, err, "database.file is required")
}
