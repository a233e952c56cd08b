// Package config handles configuration for the server component,
// including defaults, environment overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the Gophgram server.
//
// Fields:
//   - EndpointAddr: bind address for the HTTP endpoint.
//   - SecretKey: HMAC secret for signing session JWTs (HS256). Do not use
//     test defaults in prod.
//   - SessionValidityDuration: session token lifetime.
//   - InboxLimit: default page size for inbox queries.
type Config struct {
	EndpointAddr            string
	SecretKey               string
	SessionValidityDuration time.Duration
	InboxLimit              int
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.SecretKey = "secretKey"
	c.SessionValidityDuration = 24 * time.Hour
	c.InboxLimit = 50
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from the environment (.env aware) and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
