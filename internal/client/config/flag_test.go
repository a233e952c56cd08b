package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"gophgram"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func TestParseFlags_Overrides(t *testing.T) {
	withArgs(t, "-a", "http://example.com:7070", "-i", "10")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, "http://example.com:7070", cfg.ServerURL)
	assert.Equal(t, 10*time.Second, cfg.OnlineCheckInterval)
}

func TestParseFlags_IgnoresForeignFlags(t *testing.T) {
	withArgs(t, "-x", "junk", "-a", "http://example.com:7070")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, "http://example.com:7070", cfg.ServerURL)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}
