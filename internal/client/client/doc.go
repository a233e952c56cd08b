// Package client implements the Gophgram API client: a REST client for the
// identity and messaging endpoints, and a reconnecting consumer for the
// server push stream.
package client
