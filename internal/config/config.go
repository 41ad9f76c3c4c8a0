package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string        `mapstructure:"PORT"`
	Env                   string        `mapstructure:"ENV"`
	DatabaseURL           string        `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32         `mapstructure:"DB_MIN_CONNS"`
	JWTSecret             string        `mapstructure:"JWT_SECRET"`
	JWTIssuer             string        `mapstructure:"JWT_ISSUER"`
	JWTTTL                time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins           []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS          float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int           `mapstructure:"RATE_LIMIT_BURST"`
	EmergencyRateLimitRPS float64       `mapstructure:"EMERGENCY_RATE_LIMIT_RPS"`
	StorageBackend        string        `mapstructure:"STORAGE_BACKEND"`
	UploadDir             string        `mapstructure:"UPLOAD_DIR"`
	UploadURLPrefix       string        `mapstructure:"UPLOAD_URL_PREFIX"`
	S3Bucket              string        `mapstructure:"S3_BUCKET"`
	S3Region              string        `mapstructure:"S3_REGION"`
	S3Endpoint            string        `mapstructure:"S3_ENDPOINT"`
	S3AccessKeyID         string        `mapstructure:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey     string        `mapstructure:"S3_SECRET_ACCESS_KEY"`
	S3PublicBaseURL       string        `mapstructure:"S3_PUBLIC_BASE_URL"`
	PublicBaseURL         string        `mapstructure:"PUBLIC_BASE_URL"`
	MaxUploadSize         string        `mapstructure:"MAX_UPLOAD_SIZE"`
	RequestTimeout        time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"JWT_SECRET", "JWT_ISSUER", "JWT_TTL", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "EMERGENCY_RATE_LIMIT_RPS",
	"STORAGE_BACKEND", "UPLOAD_DIR", "UPLOAD_URL_PREFIX",
	"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
	"S3_PUBLIC_BASE_URL", "PUBLIC_BASE_URL", "MAX_UPLOAD_SIZE", "REQUEST_TIMEOUT",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("JWT_ISSUER", "healthnet")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("EMERGENCY_RATE_LIMIT_RPS", 2)
	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_URL_PREFIX", "/uploads")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:3000")
	v.SetDefault("MAX_UPLOAD_SIZE", "10M")
	v.SetDefault("REQUEST_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET is not set; a random signing key will be generated.")
		log.Println("WARNING: Tokens will not survive a restart. Do NOT run production like this.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesS3 reports whether uploaded files go to the object storage bucket.
func (c *Config) UsesS3() bool {
	return c.StorageBackend == "s3"
}

// Validate checks that the configuration is safe to run. In production a
// JWT_SECRET is mandatory; when present it must be hex encoding at least 32
// bytes. The s3 storage backend needs a bucket and region.
func (c *Config) Validate() error {
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.JWTSecret != "" {
		keyBytes, err := hex.DecodeString(c.JWTSecret)
		if err != nil {
			return fmt.Errorf("JWT_SECRET is not valid hex: %w", err)
		}
		if len(keyBytes) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}

	switch c.StorageBackend {
	case "local":
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required when STORAGE_BACKEND is \"local\"")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND is \"s3\"")
		}
		if c.S3Region == "" {
			return fmt.Errorf("S3_REGION is required when STORAGE_BACKEND is \"s3\"")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"local\" or \"s3\", got %q", c.StorageBackend)
	}

	if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
	}

	return nil
}
