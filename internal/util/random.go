// Package util provides small helpers shared across Clarity Room components.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateRandomID returns "{prefix}{hex}" with hexLength random hex characters.
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex returns a random lower-case hexadecimal string of the
// given length, read from crypto/rand. Session ids are bearer handles.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}
	buf := make([]byte, (length+1)/2)
	// crypto/rand.Read never returns an error since Go 1.24.
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)[:length]
}

// GenerateSessionID generates a journaling session ID with "s_" prefix.
func GenerateSessionID() string {
	return GenerateRandomID("s_", 32)
}

// GenerateReminderID generates a reminder job ID with "rem_" prefix.
func GenerateReminderID() string {
	return GenerateRandomID("rem_", 16)
}
