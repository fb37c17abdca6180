package di

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	doc := map[string]interface{}{
		"on":       true,
		"timezone": "UTC",
		"zones": []map[string]interface{}{
			{"name": "Front Lawn"},
		},
		"programs": []map[string]interface{}{
			{"name": "Morning", "active": true, "start": "06:00", "repeat": "none",
				"zones": []map[string]interface{}{{"zone": 0, "seconds": 30}}},
		},
	}
	path := filepath.Join(dir, "config.json")
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestWire_AssemblesContainerFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeTestConfig(t, dir)
	dbPath := filepath.Join(dir, "events.db")

	c, err := Wire(Options{ConfigPath: cfgPath, EventDBPath: dbPath}, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Engine)
	assert.NotNil(t, c.Sink)
	assert.NotNil(t, c.HW)
	assert.Equal(t, "Morning", c.Config.Programs[0].Name)
}

func TestWire_MissingConfigErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Wire(Options{ConfigPath: filepath.Join(dir, "does-not-exist.json")}, zerolog.Nop())
	assert.Error(t, err)
}
