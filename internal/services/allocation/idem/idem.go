// Package idem derives deterministic idempotency keys and outbox event ids.
// Both functions are pure and stable across process restarts
package idem

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"mentormatch/internal/core/canon"
	"mentormatch/internal/services/allocation/domain"
)

// eventNamespace is the fixed UUIDv5 namespace for outbox event ids.
// Changing it would break replay detection for in-flight events
var eventNamespace = uuid.MustParse("8e0f7c5a-1d64-4b5d-9a2e-6c3f41b7a90d")

// Key hashes the normalized request into the idempotency key.
// When a client request id is present it discriminates the key; otherwise
// the canonical payload rendering does
func Key(req domain.AllocationRequest) (string, error) {
	disc := req.RequestID
	if disc == "" {
		j, err := canon.JSON(req.Payload)
		if err != nil {
			return "", err
		}
		disc = j
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%s", req.StudentID, req.MentorID, disc))
	return hex.EncodeToString(sum[:]), nil
}

// EventID maps an idempotency key to its deterministic outbox event id,
// so replays of the same request always reference the same event
func EventID(key string) string {
	return uuid.NewSHA1(eventNamespace, []byte(key)).String()
}
