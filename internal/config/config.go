package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ProviderCredentials is the OAuth client registration for one provider.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
}

type Config struct {
	Environment       string
	DBHost            string
	DBPort            string
	DBUsername        string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	RedirectURL       string
	SyncInterval      time.Duration
	ManualSyncTimeout time.Duration
	Providers         map[string]ProviderCredentials
	Timezone          string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("MAILSYNC_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	config := &Config{
		Environment:       env,
		DBHost:            getEnvOrDefault("MAILSYNC_DB_HOST", "localhost"),
		DBPort:            getEnvOrDefault("MAILSYNC_DB_PORT", "5432"),
		DBUsername:        getEnvOrDefault("MAILSYNC_DB_USER", "mailsync"),
		DBPassword:        os.Getenv("MAILSYNC_DB_PASSWORD"),
		DBName:            getEnvOrDefault("MAILSYNC_DB_NAME", "mailsync"),
		DBSSLMode:         getEnvOrDefault("MAILSYNC_DB_SSLMODE", "disable"),
		RedirectURL:       getEnvOrDefault("MAILSYNC_OAUTH_REDIRECT_URL", "http://localhost:1420/callback"),
		SyncInterval:      getDurationMinutes("MAILSYNC_SYNC_INTERVAL_MINUTES", 5),
		ManualSyncTimeout: getDurationMinutes("MAILSYNC_MANUAL_SYNC_TIMEOUT_MINUTES", 5),
		Timezone:          getEnvOrDefault("TZ", "UTC"),
		Providers: map[string]ProviderCredentials{
			"google": {
				ClientID:     os.Getenv("MAILSYNC_GOOGLE_CLIENT_ID"),
				ClientSecret: os.Getenv("MAILSYNC_GOOGLE_CLIENT_SECRET"),
			},
			"microsoft": {
				ClientID:     os.Getenv("MAILSYNC_MICROSOFT_CLIENT_ID"),
				ClientSecret: os.Getenv("MAILSYNC_MICROSOFT_CLIENT_SECRET"),
			},
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("MAILSYNC_DB_PASSWORD is required")
	}

	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}

	return nil
}

// ProviderCredentialsFor returns the client registration for the given
// provider tag, or an error if none is configured.
func (c *Config) ProviderCredentialsFor(provider string) (ProviderCredentials, error) {
	creds, ok := c.Providers[provider]
	if !ok || creds.ClientID == "" {
		return ProviderCredentials{}, fmt.Errorf("OAuth config for %s not found", provider)
	}
	return creds, nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationMinutes(key string, defaultMinutes int) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return time.Duration(defaultMinutes) * time.Minute
	}
	minutes, err := strconv.Atoi(value)
	if err != nil || minutes <= 0 {
		return time.Duration(defaultMinutes) * time.Minute
	}
	return time.Duration(minutes) * time.Minute
}
