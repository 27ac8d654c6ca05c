package config

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/sirupsen/logrus"
)

// Config holds all daemon configuration.
type Config struct {
	// Server
	Port string

	// Storage
	DatabaseURL string // path to a SQLite file, or a postgres:// URL
	DataDir     string // root for instance directories

	// Auth
	JWTSecret string

	// GCP (optional, enables Secret Manager fallback for secrets)
	GCPProject string

	// CORS
	CORSOrigins []string
}

// InstancesDir is where instance directories live under the data dir.
func (c *Config) InstancesDir() string {
	return filepath.Join(c.DataDir, "instances")
}

// Load loads configuration from the environment, with an optional .env file
// for local development and GCP Secret Manager fallback for secrets.
func Load() (*Config, error) {
	loadEnvFile(".env")

	gcpProject := getEnv("GCP_PROJECT", "")

	cfg := &Config{
		Port:        getEnv("PORT", "16662"),
		DatabaseURL: getEnv("DATABASE_URL", "./outpost.db"),
		DataDir:     getEnv("DATA_DIR", "./data"),
		GCPProject:  gcpProject,
		JWTSecret:   getEnv("JWT_SECRET", ""),
	}

	// Secrets: Secret Manager first, env fallback.
	if secret, err := getSecret(gcpProject, "JWT_SECRET"); err == nil && secret != "" {
		cfg.JWTSecret = secret
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "outpost-dev-secret-change-in-production"
	}
	if databaseURL, err := getSecret(gcpProject, "DATABASE_URL"); err == nil && databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}

	corsOrigins := getEnv("CORS_ORIGINS", "*")
	if corsOrigins == "" || corsOrigins == "*" {
		cfg.CORSOrigins = []string{"*"}
	} else {
		origins := strings.Split(corsOrigins, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		cfg.CORSOrigins = origins
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// getSecret retrieves a secret from GCP Secret Manager.
// Returns empty string and nil error if Secret Manager is not available.
func getSecret(project, secretName string) (string, error) {
	if project == "" {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		logrus.WithError(err).Debug("Secret Manager client creation failed, falling back to env")
		return "", nil
	}
	defer client.Close()

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", project, secretName)
	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	})
	if err != nil {
		// Secret may not exist, which is fine (fallback to env).
		return "", nil
	}

	return string(result.Payload.Data), nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadEnvFile loads environment variables from a .env file.
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		// .env file is optional
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
