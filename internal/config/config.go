package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	BackendSupabase = "supabase"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	// Supabase
	SupabaseURL            string `yaml:"supabase_url"`
	SupabasePublishableKey string `yaml:"supabase_publishable_key"`
	SupabaseJWTSecret      string `yaml:"supabase_jwt_secret"`
	SupabaseStorageBucket  string `yaml:"supabase_storage_bucket"`

	// Object storage
	StorageBackend  string `yaml:"storage_backend"`
	S3Region        string `yaml:"s3_region"`
	S3Bucket        string `yaml:"s3_bucket"`
	S3Endpoint      string `yaml:"s3_endpoint"`
	S3AccessKey     string `yaml:"s3_access_key"`
	S3SecretKey     string `yaml:"s3_secret_key"`
	S3PublicBaseURL string `yaml:"s3_public_base_url"`

	// Asset index
	IndexBackend string `yaml:"index_backend"`
	DatabaseURL  string `yaml:"database_url"`
	IndexTable   string `yaml:"index_table"`

	RealtimeEnabled bool   `yaml:"realtime_enabled"`
	MarkerPreset    string `yaml:"marker_preset"`

	// Server
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	BaseURL     string `yaml:"base_url"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		SupabaseStorageBucket: "RealidadA",
		StorageBackend:        BackendSupabase,
		IndexBackend:          BackendSupabase,
		IndexTable:            "asset_index",
		MarkerPreset:          "hiro",
		Port:                  "8080",
		Environment:           "development",
		BaseURL:               "http://localhost:8080",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE if any, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"SUPABASE_URL":             &c.SupabaseURL,
		"SUPABASE_PUBLISHABLE_KEY": &c.SupabasePublishableKey,
		"SUPABASE_JWT_SECRET":      &c.SupabaseJWTSecret,
		"SUPABASE_STORAGE_BUCKET":  &c.SupabaseStorageBucket,
		"STORAGE_BACKEND":          &c.StorageBackend,
		"S3_REGION":                &c.S3Region,
		"S3_BUCKET":                &c.S3Bucket,
		"S3_ENDPOINT":              &c.S3Endpoint,
		"S3_ACCESS_KEY":            &c.S3AccessKey,
		"S3_SECRET_KEY":            &c.S3SecretKey,
		"S3_PUBLIC_BASE_URL":       &c.S3PublicBaseURL,
		"INDEX_BACKEND":            &c.IndexBackend,
		"DATABASE_URL":             &c.DatabaseURL,
		"INDEX_TABLE":              &c.IndexTable,
		"MARKER_PRESET":            &c.MarkerPreset,
		"PORT":                     &c.Port,
		"ENVIRONMENT":              &c.Environment,
		"BASE_URL":                 &c.BaseURL,
	}
	for key, dst := range strs {
		*dst = getEnv(key, *dst)
	}

	if v := os.Getenv("REALTIME_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REALTIME_ENABLED: %w", err)
		}
		c.RealtimeEnabled = b
	}

	c.StorageBackend = strings.ToLower(c.StorageBackend)
	c.IndexBackend = strings.ToLower(c.IndexBackend)
	return nil
}

func (c *Config) Validate() error {
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}

	switch c.StorageBackend {
	case BackendSupabase:
		if err := c.requireSupabase("STORAGE_BACKEND=supabase"); err != nil {
			return err
		}
		if c.SupabaseStorageBucket == "" {
			return fmt.Errorf("SUPABASE_STORAGE_BUCKET is required")
		}
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
		if c.S3Region == "" {
			return fmt.Errorf("S3_REGION is required when STORAGE_BACKEND=s3")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.IndexBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when INDEX_BACKEND=postgres")
		}
	case BackendSupabase:
		if err := c.requireSupabase("INDEX_BACKEND=supabase"); err != nil {
			return err
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown INDEX_BACKEND %q", c.IndexBackend)
	}

	if c.IndexBackend != BackendMemory && c.IndexTable == "" {
		return fmt.Errorf("INDEX_TABLE is required")
	}
	if c.RealtimeEnabled {
		if err := c.requireSupabase("REALTIME_ENABLED"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) requireSupabase(reason string) error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required when %s", reason)
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required when %s", reason)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
