package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeCycleID computes a deterministic cycle_id using SHA256.
// Formula: SHA256(variant|symbol|start_time_ms|sequence)
// Returns hex-encoded hash (64 characters).
//
// The sequence disambiguates cycles of the same instance started within
// the same millisecond (immediate restart after close).
func ComputeCycleID(variant, symbol string, startTimeMs int64, sequence int) string {
	data := fmt.Sprintf("%s|%s|%d|%d", variant, symbol, startTimeMs, sequence)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
