// Package id generates identifiers for pipeline runs and exported artifacts.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// alphabet is lowercase alphanumerics so IDs are safe in file names on
// case-insensitive filesystems.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const size = 12

// Generate creates a prefixed unique ID, e.g. "run-4k2q9x0m1b7z".
//
// Returns an error if the system has insufficient entropy.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.Generate(alphabet, size)
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

// Run returns a fresh pipeline run ID.
func Run() string {
	return MustGenerate("run")
}
