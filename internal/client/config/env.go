package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file in
// the working directory is loaded first, if present; real environment
// variables win over the file.
//
// Variables:
//
//	GOPHGRAM_SERVER_URL          base URL of the backend server
//	GOPHGRAM_ONLINE_CHECK_SEC    reachability probe interval, seconds
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("GOPHGRAM_SERVER_URL"); v != "" {
		config.ServerURL = v
	}
	if v := os.Getenv("GOPHGRAM_ONLINE_CHECK_SEC"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			config.OnlineCheckInterval = time.Duration(seconds) * time.Second
		}
	}
}
