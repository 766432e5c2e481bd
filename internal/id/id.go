// Package id generates the identifiers the client attaches to its own requests.
// Entity ids (notes, users, tenants) are always issued by the server.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	requestAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	requestIDSize   = 12
)

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "sub-V1StGXR8_Z5jdHi6B-myT").
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// RequestID returns a short lowercase id for the X-Request-ID header, e.g. "req-3k9x0a1b2c4d".
// It never fails; on entropy errors it returns "req-unknown" so a request is never blocked on logging.
func RequestID() string {
	id, err := gonanoid.Generate(requestAlphabet, requestIDSize)
	if err != nil {
		return "req-unknown"
	}
	return "req-" + id
}
