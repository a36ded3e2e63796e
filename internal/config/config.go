package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverFirestore = "firestore"
	DriverMemory    = "memory"
)

// placeholderMarker is the prefix the sample .env ships with.
const placeholderMarker = "PASTE_YOUR"

// Config holds all configuration for the application.
type Config struct {
	FirebaseAPIKey            string `mapstructure:"FIREBASE_API_KEY"`
	FirebaseAuthDomain        string `mapstructure:"FIREBASE_AUTH_DOMAIN"`
	FirebaseProjectID         string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseStorageBucket     string `mapstructure:"FIREBASE_STORAGE_BUCKET"`
	FirebaseMessagingSenderID string `mapstructure:"FIREBASE_MESSAGING_SENDER_ID"`
	FirebaseAppID             string `mapstructure:"FIREBASE_APP_ID"`

	// Service-account credentials. When either is set the store is opened
	// through the Admin SDK instead of with the signed-in user's token.
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	LookupAPIURL  string        `mapstructure:"LOOKUP_API_URL"`
	LookupTimeout time.Duration `mapstructure:"LOOKUP_TIMEOUT"`

	StoreDriver     string        `mapstructure:"STORE_DRIVER"`
	StateDBPath     string        `mapstructure:"STATE_DB_PATH"`
	DeleteTicketTTL time.Duration `mapstructure:"DELETE_TICKET_TTL"`

	Port      string `mapstructure:"PORT"`
	GinMode   string `mapstructure:"GIN_MODE"`
	ClientURL string `mapstructure:"CLIENT_URL"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// envAliases maps a key to the extra environment names it is read from.
// The VITE_ names are the ones the browser client's .env file uses.
var envAliases = map[string][]string{
	"FIREBASE_API_KEY":             {"VITE_FIREBASE_API_KEY"},
	"FIREBASE_AUTH_DOMAIN":         {"VITE_FIREBASE_AUTH_DOMAIN"},
	"FIREBASE_PROJECT_ID":          {"VITE_FIREBASE_PROJECT_ID"},
	"FIREBASE_STORAGE_BUCKET":      {"VITE_FIREBASE_STORAGE_BUCKET"},
	"FIREBASE_MESSAGING_SENDER_ID": {"VITE_FIREBASE_MESSAGING_SENDER_ID"},
	"FIREBASE_APP_ID":              {"VITE_FIREBASE_APP_ID"},
	"LOOKUP_API_URL":               {"VITE_PYTHON_API_URL"},
}

var plainKeys = []string{
	"GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"LOOKUP_TIMEOUT",
	"STORE_DRIVER",
	"STATE_DB_PATH",
	"DELETE_TICKET_TTL",
	"PORT",
	"GIN_MODE",
	"CLIENT_URL",
	"LOG_LEVEL",
	"LOG_FORMAT",
}

// Load reads configuration from the environment, an optional .env file and
// an optional CONFIG_FILE. Missing or placeholder credentials are not errors:
// they are returned as warnings so the caller can log them and keep going.
func Load() (*Config, []string, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom is Load with an explicit config file; empty means none.
func LoadFrom(configFile string) (*Config, []string, error) {
	if !strings.EqualFold(os.Getenv("GIN_MODE"), "release") {
		// A missing .env is normal outside development.
		_ = godotenv.Load()
	}
	return load(viper.New(), configFile)
}

func load(v *viper.Viper, configFile string) (*Config, []string, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("LOOKUP_API_URL", "http://localhost:5000/api/fetch_model")
	v.SetDefault("LOOKUP_TIMEOUT", "15s")
	v.SetDefault("STORE_DRIVER", DriverFirestore)
	v.SetDefault("STATE_DB_PATH", "garage.db")
	v.SetDefault("DELETE_TICKET_TTL", "2m")
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	for key, aliases := range envAliases {
		if err := v.BindEnv(append([]string{key, key}, aliases...)...); err != nil {
			return nil, nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}
	for _, key := range plainKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("reading config file '%s': %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case DriverFirestore, DriverMemory:
	default:
		return nil, nil, fmt.Errorf("STORE_DRIVER must be '%s' or '%s', got '%s'", DriverFirestore, DriverMemory, cfg.StoreDriver)
	}
	if cfg.LookupTimeout <= 0 {
		return nil, nil, fmt.Errorf("LOOKUP_TIMEOUT must be positive, got %s", cfg.LookupTimeout)
	}
	if cfg.DeleteTicketTTL <= 0 {
		return nil, nil, fmt.Errorf("DELETE_TICKET_TTL must be positive, got %s", cfg.DeleteTicketTTL)
	}

	return &cfg, cfg.Warnings(), nil
}

// Warnings lists missing or placeholder settings. The application still
// starts; requests that need them fail downstream.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.StoreDriver == DriverMemory {
		warnings = append(warnings, "STORE_DRIVER is 'memory': items are not persisted")
	} else {
		required := []struct{ name, value string }{
			{"FIREBASE_API_KEY", c.FirebaseAPIKey},
			{"FIREBASE_AUTH_DOMAIN", c.FirebaseAuthDomain},
			{"FIREBASE_PROJECT_ID", c.FirebaseProjectID},
			{"FIREBASE_APP_ID", c.FirebaseAppID},
		}
		for _, r := range required {
			if IsPlaceholder(r.value) {
				warnings = append(warnings, r.name+" is missing or still a placeholder")
			}
		}
	}
	if IsPlaceholder(c.LookupAPIURL) {
		warnings = append(warnings, "LOOKUP_API_URL is missing or still a placeholder")
	}
	return warnings
}

// AdminCredentials reports whether service-account credentials are configured.
func (c *Config) AdminCredentials() bool {
	return c.GoogleApplicationCredentials != "" || c.FirebaseServiceAccountJSONBase64 != ""
}

// IsPlaceholder reports whether a value is empty or still the sample text.
func IsPlaceholder(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || strings.Contains(v, placeholderMarker)
}
