package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

var hashSalt string

func init() {
	// In production, set LOG_HASH_SALT.
	hashSalt = os.Getenv("LOG_HASH_SALT")
	if hashSalt == "" {
		hashSalt = "default-salt-change-in-production"
	}
}

// InitHashSaltForTesting replaces the salt used by HashID.
func InitHashSaltForTesting(salt string) {
	hashSalt = salt
}

// HashID creates a privacy-preserving hash of an actor or tenant id.
// This allows correlating log lines without exposing the id itself.
func HashID(id string) string {
	if id == "" {
		return "<none>"
	}
	hash := sha256.Sum256([]byte(id + ":" + hashSalt))
	// First 8 characters for readability.
	return hex.EncodeToString(hash[:])[:8]
}

// SanitizeDescription redacts a description but preserves length information for debugging.
func SanitizeDescription(desc string) string {
	if desc == "" {
		return "<empty>"
	}

	words := strings.Fields(desc)
	return fmt.Sprintf("<redacted: %d words, %d chars>", len(words), len(desc))
}

// SanitizeText is a general-purpose sanitizer for transcripts and other user-provided text.
func SanitizeText(text string) string {
	if text == "" {
		return "<empty>"
	}

	// For short text, show only the length.
	runes := []rune(text)
	if len(runes) <= 10 {
		return fmt.Sprintf("<%d chars>", len(runes))
	}

	return fmt.Sprintf("%s...<%d chars>", string(runes[:3]), len(runes))
}
