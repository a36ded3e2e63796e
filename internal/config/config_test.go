package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_PlaceholdersAreWarningsNotErrors(t *testing.T) {
	t.Setenv("FIREBASE_API_KEY", "PASTE_YOUR_API_KEY_HERE")
	t.Setenv("FIREBASE_PROJECT_ID", "")

	cfg, warnings, err := load(viper.New(), "")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Contains(t, warnings, "FIREBASE_API_KEY is missing or still a placeholder")
	assert.Contains(t, warnings, "FIREBASE_PROJECT_ID is missing or still a placeholder")
	assert.Equal(t, DriverFirestore, cfg.StoreDriver)
	assert.Equal(t, 15*time.Second, cfg.LookupTimeout)
	assert.Equal(t, 2*time.Minute, cfg.DeleteTicketTTL)
	assert.Equal(t, "http://localhost:5000/api/fetch_model", cfg.LookupAPIURL)
}

func TestLoad_ReadsBrowserClientNames(t *testing.T) {
	t.Setenv("VITE_FIREBASE_API_KEY", "key-123")
	t.Setenv("VITE_PYTHON_API_URL", "http://scraper:5000/api/fetch_model")

	cfg, _, err := load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "key-123", cfg.FirebaseAPIKey)
	assert.Equal(t, "http://scraper:5000/api/fetch_model", cfg.LookupAPIURL)
}

func TestLoad_CanonicalNameWinsOverAlias(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "canonical")
	t.Setenv("VITE_FIREBASE_PROJECT_ID", "alias")

	cfg, _, err := load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "canonical", cfg.FirebaseProjectID)
}

func TestLoad_CompleteConfigHasNoWarnings(t *testing.T) {
	t.Setenv("FIREBASE_API_KEY", "k")
	t.Setenv("FIREBASE_AUTH_DOMAIN", "demo.firebaseapp.com")
	t.Setenv("FIREBASE_PROJECT_ID", "demo")
	t.Setenv("FIREBASE_APP_ID", "1:2:web:3")

	_, warnings, err := load(viper.New(), "")
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")

	_, _, err := load(viper.New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestLoad_MemoryDriverWarns(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")

	cfg, warnings, err := load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Contains(t, warnings, "STORE_DRIVER is 'memory': items are not persisted")
}

func TestLoad_ParsesDurations(t *testing.T) {
	t.Setenv("LOOKUP_TIMEOUT", "3s")
	t.Setenv("DELETE_TICKET_TTL", "30s")

	cfg, _, err := load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.LookupTimeout)
	assert.Equal(t, 30*time.Second, cfg.DeleteTicketTTL)
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder(""))
	assert.True(t, IsPlaceholder("   "))
	assert.True(t, IsPlaceholder("PASTE_YOUR_PROJECT_ID.firebaseapp.com"))
	assert.False(t, IsPlaceholder("collectors-garage"))
}

func TestAdminCredentials(t *testing.T) {
	assert.False(t, (&Config{}).AdminCredentials())
	assert.True(t, (&Config{GoogleApplicationCredentials: "/etc/sa.json"}).AdminCredentials())
	assert.True(t, (&Config{FirebaseServiceAccountJSONBase64: "e30="}).AdminCredentials())
}

func TestLoadFrom_ReadsConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "garage.yaml")
	require.NoError(t, os.WriteFile(file, []byte("STORE_DRIVER: memory\nPORT: \"9090\"\n"), 0o600))

	cfg, _, err := LoadFrom(file)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "9090", cfg.Port)
}

func TestLoadFrom_MissingFileFails(t *testing.T) {
	_, _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
