// Package config handles configuration for the Gophgram CLI, including
// defaults, environment overlay, and command-line flags.
package config
