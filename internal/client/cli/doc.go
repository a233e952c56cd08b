// Package cli implements the interactive Gophgram client: a REPL over the
// REST API and push stream, with all encryption and decryption performed
// locally. Private keys never leave the process unencrypted.
package cli
