package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file in
// the working directory is loaded first, if present (development convenience);
// real environment variables win over the file.
//
// Variables:
//
//	GOPHGRAM_ADDR             bind address (e.g. ":8080")
//	GOPHGRAM_SECRET_KEY       JWT HMAC secret
//	GOPHGRAM_SESSION_TTL_MIN  session validity, minutes
//	GOPHGRAM_INBOX_LIMIT      default inbox page size
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("GOPHGRAM_ADDR"); v != "" {
		config.EndpointAddr = v
	}
	if v := os.Getenv("GOPHGRAM_SECRET_KEY"); v != "" {
		config.SecretKey = v
	}
	if v := os.Getenv("GOPHGRAM_SESSION_TTL_MIN"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			config.SessionValidityDuration = time.Duration(minutes) * time.Minute
		}
	}
	if v := os.Getenv("GOPHGRAM_INBOX_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			config.InboxLimit = limit
		}
	}
}
