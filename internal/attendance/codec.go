package attendance

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QR payloads carry the session ID, not the human-enterable code. The two
// channels stay distinct so a camera-scanned value cannot be replay-typed
// into the code field.
//
// Wire form: "fh1:<session uuid>:<issued-at unix seconds>"

const payloadPrefix = "fh1"

// MaxPayloadAge bounds how long a rendered QR payload stays scannable,
// independent of the session TTL check.
const MaxPayloadAge = 15 * time.Minute

// EncodePayload serializes a session reference into the text embedded in a
// QR image. Deterministic for a given (sessionID, issuedAt) pair.
func EncodePayload(sessionID uuid.UUID, issuedAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", payloadPrefix, sessionID, issuedAt.Unix())
}

// DecodePayload parses a scanned payload back into its session ID and
// issuance time. Any malformed input yields ErrDecode; arbitrary scanned
// text must never crash the caller.
func DecodePayload(payload string) (uuid.UUID, time.Time, error) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 || parts[0] != payloadPrefix {
		return uuid.Nil, time.Time{}, ErrDecode
	}

	sessionID, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, time.Time{}, ErrDecode
	}

	unix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || unix <= 0 {
		return uuid.Nil, time.Time{}, ErrDecode
	}

	return sessionID, time.Unix(unix, 0).UTC(), nil
}
