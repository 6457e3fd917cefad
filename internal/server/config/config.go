// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Storage backend selectors.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds runtime settings for the multitext server.
//
// Fields:
//   - ListenAddr: bind address for the WebSocket endpoint.
//   - UsersDir: root directory for locally stored documents.
//   - UsersDBFile: path of the JSON user database, used when DatabaseDSN is empty.
//   - DatabaseDSN: PostgreSQL DSN (pgx); empty selects the JSON file store.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use test defaults in prod.
//   - AccessTokenValidityDuration: session token lifetime.
//   - StorageBackend: "local" or "s3".
//   - S3RootUser / S3RootPassword: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage settings.
type Config struct {
	ListenAddr                  string
	UsersDir                    string
	UsersDBFile                 string
	DatabaseDSN                 string
	SecretKey                   string
	AccessTokenValidityDuration time.Duration
	StorageBackend              string
	S3RootUser                  string
	S3RootPassword              string
	S3Bucket                    string
	S3Region                    string
	S3BaseEndpoint              string
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.ListenAddr = "localhost:8080"
	c.UsersDir = "users"
	c.UsersDBFile = "users.json"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 60 * time.Minute
	c.StorageBackend = StorageLocal
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "documents"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
