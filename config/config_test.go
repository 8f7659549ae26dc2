package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestLoadJSONConfigGroupedSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"app": {"AppPort": "9000", "AdminUsernames": ["root"]},
		"database": {"Driver": "sqlite", "DBName": "dev"},
		"engine": {"FlagThreshold": 5, "SweepOnRead": false}
	}`), 0o600))

	c := AppConfig{SweepOnRead: true}
	require.NoError(t, loadJSONConfig(path, &c))
	applyDefaults(&c)

	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, []string{"root"}, c.AdminUsernames)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 5, c.FlagThreshold)
	assert.False(t, c.SweepOnRead)
	assert.Equal(t, 720, c.DefaultTTLHours)
	assert.Equal(t, 24, c.TokenTTLHours)
}

func TestLoadJSONConfigMissingFile(t *testing.T) {
	c := AppConfig{}
	assert.NoError(t, loadJSONConfig(filepath.Join(t.TempDir(), "nope.json"), &c))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLAG_THRESHOLD", "4")
	t.Setenv("SWEEP_ON_READ", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	c := AppConfig{SweepOnRead: true}
	applyDefaults(&c)
	applyEnvOverrides(&c)

	assert.Equal(t, 4, c.FlagThreshold)
	assert.False(t, c.SweepOnRead)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.AllowedOrigins)
}

func TestToGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, toGormLogLevel("debug"))
	assert.Equal(t, logger.Warn, toGormLogLevel("info"))
	assert.Equal(t, logger.Error, toGormLogLevel("error"))
	assert.Equal(t, logger.Silent, toGormLogLevel("silent"))
}

func TestOpenDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := openDialector(AppConfig{DBDriver: "oracle"})
	assert.Error(t, err)
	d, err := openDialector(AppConfig{DBDriver: "sqlite", DBName: "dev"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
}
