package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/wolfpack-dev/wolfpack/clock"
)

// Envelope is the immutable unit written to and read from the event log:
// an id, a timestamp, the originating device, that device's vector clock
// snapshot taken *after* self-increment, and the payload itself (§3).
type Envelope struct {
	ID        uuid.UUID
	Timestamp time.Time
	Origin    string
	Clock     clock.Clock
	Payload   Event
}

// NewEnvelope stamps a fresh envelope with a time-ordered id (UUID v7, so
// envelopes from the same device sort by creation order even before the
// clock is consulted) and the current UTC time.
func NewEnvelope(origin string, originClock clock.Clock, payload Event) (Envelope, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        id,
		Timestamp: time.Now().UTC(),
		Origin:    origin,
		Clock:     originClock,
		Payload:   payload,
	}, nil
}
