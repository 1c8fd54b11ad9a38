package event

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"
	"github.com/wolfpack-dev/wolfpack/clock"
)

// ErrUnknownKind is returned when decoding a wire envelope whose Kind byte
// doesn't match any known variant — either a future version talking to an
// older build, or a corrupt file.
var ErrUnknownKind = errors.New("event: unknown kind byte")

// wireEnvelope is the RLP-friendly shape of Envelope: RLP can't encode the
// Event interface directly, so the payload travels as its own nested RLP
// blob tagged with a Kind byte, the same way the teacher's EventPayload
// wraps an already-serialized Event inside an outer RLP list (see
// EncodeRLP/DecodeRLP in inter/event_serializer.go).
type wireEnvelope struct {
	ID        []byte
	Unix      uint64
	Nano      uint32
	Origin    string
	ClockBlob []byte
	Kind      uint8
	Payload   []byte
}

// MarshalEnvelopes encodes a list of envelopes into the length-prefixed RLP
// blob that forms an event file's plaintext (§3: "a length-prefixed
// serialization of the envelope list").
func MarshalEnvelopes(envs []Envelope) ([]byte, error) {
	wire := make([]wireEnvelope, len(envs))
	for i, e := range envs {
		w, err := toWire(e)
		if err != nil {
			return nil, err
		}
		wire[i] = w
	}
	return rlp.EncodeToBytes(wire)
}

// UnmarshalEnvelopes is the inverse of MarshalEnvelopes.
func UnmarshalEnvelopes(data []byte) ([]Envelope, error) {
	var wire []wireEnvelope
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, err
	}
	envs := make([]Envelope, len(wire))
	for i, w := range wire {
		e, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		envs[i] = e
	}
	return envs, nil
}

func toWire(e Envelope) (wireEnvelope, error) {
	clockBlob, err := e.Clock.MarshalBinary()
	if err != nil {
		return wireEnvelope{}, err
	}
	payload, err := rlp.EncodeToBytes(e.Payload)
	if err != nil {
		return wireEnvelope{}, err
	}
	idBytes, err := e.ID.MarshalBinary()
	if err != nil {
		return wireEnvelope{}, err
	}
	return wireEnvelope{
		ID:        idBytes,
		Unix:      uint64(e.Timestamp.Unix()),
		Nano:      uint32(e.Timestamp.Nanosecond()),
		Origin:    e.Origin,
		ClockBlob: clockBlob,
		Kind:      uint8(e.Payload.Kind()),
		Payload:   payload,
	}, nil
}

func fromWire(w wireEnvelope) (Envelope, error) {
	var id uuid.UUID
	if err := id.UnmarshalBinary(w.ID); err != nil {
		return Envelope{}, err
	}

	var c clock.Clock
	if err := c.UnmarshalBinary(w.ClockBlob); err != nil {
		return Envelope{}, err
	}

	payload, err := decodePayload(Kind(w.Kind), w.Payload)
	if err != nil {
		return Envelope{}, err
	}

	return Envelope{
		ID:        id,
		Timestamp: time.Unix(int64(w.Unix), int64(w.Nano)).UTC(),
		Origin:    w.Origin,
		Clock:     c,
		Payload:   payload,
	}, nil
}

func decodePayload(kind Kind, data []byte) (Event, error) {
	var e Event
	switch kind {
	case ExtensionAddedKind:
		e = new(ExtensionAdded)
	case ExtensionRemovedKind:
		e = new(ExtensionRemoved)
	case ExtensionInstalledKind:
		e = new(ExtensionInstalled)
	case ExtensionUninstalledKind:
		e = new(ExtensionUninstalled)
	case ContainerAddedKind:
		e = new(ContainerAdded)
	case ContainerRemovedKind:
		e = new(ContainerRemoved)
	case ContainerUpdatedKind:
		e = new(ContainerUpdated)
	case HandlerSetKind:
		e = new(HandlerSet)
	case HandlerRemovedKind:
		e = new(HandlerRemoved)
	case SearchEngineAddedKind:
		e = new(SearchEngineAdded)
	case SearchEngineRemovedKind:
		e = new(SearchEngineRemoved)
	case SearchEngineDefaultKind:
		e = new(SearchEngineDefault)
	case PrefSetKind:
		e = new(PrefSet)
	case PrefRemovedKind:
		e = new(PrefRemoved)
	case TabSentKind:
		e = new(TabSent)
	case TabReceivedKind:
		e = new(TabReceived)
	default:
		return nil, ErrUnknownKind
	}
	if err := rlp.DecodeBytes(data, e); err != nil {
		return nil, err
	}
	return dereference(e), nil
}

// dereference unwraps the pointer decodePayload needs for rlp.DecodeBytes
// back into the value type every constructor and type switch in this
// package expects.
func dereference(e Event) Event {
	switch v := e.(type) {
	case *ExtensionAdded:
		return *v
	case *ExtensionRemoved:
		return *v
	case *ExtensionInstalled:
		return *v
	case *ExtensionUninstalled:
		return *v
	case *ContainerAdded:
		return *v
	case *ContainerRemoved:
		return *v
	case *ContainerUpdated:
		return *v
	case *HandlerSet:
		return *v
	case *HandlerRemoved:
		return *v
	case *SearchEngineAdded:
		return *v
	case *SearchEngineRemoved:
		return *v
	case *SearchEngineDefault:
		return *v
	case *PrefSet:
		return *v
	case *PrefRemoved:
		return *v
	case *TabSent:
		return *v
	case *TabReceived:
		return *v
	default:
		return e
	}
}
