package transport

import (
	"errors"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/wolfpack-dev/wolfpack/clock"
)

// ErrUnknownKind is returned when a frame's Kind byte matches no known
// request or response variant.
var ErrUnknownKind = errors.New("transport: unknown message kind")

// EncryptedEnvelope is the wire form one sealed event-log entry travels in
// between peers (§4.9): enough for the receiver to verify the sender is a
// paired device and decrypt with the shared group secret, without ever
// exposing the plaintext payload to the transport layer itself.
type EncryptedEnvelope struct {
	ID         string
	DeviceID   string
	Counter    uint64
	Ciphertext []byte
	PublicKey  []byte
	Suite      uint8
	Nonce      []byte
}

// RequestKind tags the variant carried by a Request frame.
type RequestKind uint8

const (
	GetClockKind RequestKind = iota + 1
	GetEventsKind
	PushEventsKind
	SendTabKind
)

// ResponseKind tags the variant carried by a Response frame.
type ResponseKind uint8

const (
	ClockRespKind ResponseKind = iota + 1
	EventsRespKind
	AckRespKind
	TabReceivedRespKind
	ErrorRespKind
)

// Request is one call into the /wolfpack/sync/1.0.0 protocol (§4.9).
type Request struct {
	Kind       RequestKind
	GetEvents  *GetEvents
	PushEvents *PushEvents
	SendTab    *SendTab
}

// GetEvents asks the peer for every envelope recorded since Clock.
type GetEvents struct {
	Clock clock.Clock
}

// PushEvents delivers sealed envelopes the caller wants the peer to apply.
type PushEvents struct {
	Envelopes []EncryptedEnvelope
}

// SendTab hands a browser tab off to a specific device.
type SendTab struct {
	ToDevice   string
	URL        string
	Title      string
	FromDevice string
}

// Response is the reply to a Request (§4.9).
type Response struct {
	Kind        ResponseKind
	Clock       *ClockResp
	Events      *EventsResp
	Ack         *AckResp
	TabReceived *TabReceivedResp
	Error       *ErrorResp
}

// ClockResp answers GetClock.
type ClockResp struct {
	Clock clock.Clock
}

// EventsResp answers GetEvents with the requested envelopes.
type EventsResp struct {
	Envelopes []EncryptedEnvelope
}

// AckResp answers PushEvents with the count of envelopes the peer applied.
type AckResp struct {
	Count uint64
}

// TabReceivedResp answers SendTab once the peer has recorded the hand-off.
type TabReceivedResp struct {
	TabID string
}

// ErrorResp reports a protocol-level failure instead of a normal reply.
type ErrorResp struct {
	Message string
}

// wireRequest/wireResponse are the RLP-friendly flattenings of Request and
// Response: RLP has no sum-type support, so exactly one of the nested
// pointer fields is non-nil depending on Kind, matching event/wire.go's
// Kind-byte-plus-nested-blob convention for the same reason.
type wireRequest struct {
	Kind    uint8
	Payload []byte
}

type wireResponse struct {
	Kind    uint8
	Payload []byte
}

// wireGetEvents and wireClockResp carry the clock as its MarshalBinary blob:
// RLP has no map support, the same reason event/wire.go's wireEnvelope
// carries ClockBlob instead of a clock.Clock field.
type wireGetEvents struct {
	ClockBlob []byte
}

type wireClockResp struct {
	ClockBlob []byte
}

// EncodeRequest serializes req as a length-unprefixed RLP frame.
func EncodeRequest(req Request) ([]byte, error) {
	var payload interface{}
	switch req.Kind {
	case GetClockKind:
		payload = struct{}{}
	case GetEventsKind:
		blob, err := req.GetEvents.Clock.MarshalBinary()
		if err != nil {
			return nil, err
		}
		payload = wireGetEvents{ClockBlob: blob}
	case PushEventsKind:
		payload = req.PushEvents
	case SendTabKind:
		payload = req.SendTab
	default:
		return nil, ErrUnknownKind
	}
	raw, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(wireRequest{Kind: uint8(req.Kind), Payload: raw})
}

// DecodeRequest is the inverse of EncodeRequest.
func DecodeRequest(data []byte) (Request, error) {
	var w wireRequest
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return Request{}, err
	}
	req := Request{Kind: RequestKind(w.Kind)}
	switch req.Kind {
	case GetClockKind:
		// no payload
	case GetEventsKind:
		var wg wireGetEvents
		if err := rlp.DecodeBytes(w.Payload, &wg); err != nil {
			return Request{}, err
		}
		var c clock.Clock
		if err := c.UnmarshalBinary(wg.ClockBlob); err != nil {
			return Request{}, err
		}
		req.GetEvents = &GetEvents{Clock: c}
	case PushEventsKind:
		req.PushEvents = new(PushEvents)
		if err := rlp.DecodeBytes(w.Payload, req.PushEvents); err != nil {
			return Request{}, err
		}
	case SendTabKind:
		req.SendTab = new(SendTab)
		if err := rlp.DecodeBytes(w.Payload, req.SendTab); err != nil {
			return Request{}, err
		}
	default:
		return Request{}, ErrUnknownKind
	}
	return req, nil
}

// EncodeResponse serializes resp as a length-unprefixed RLP frame.
func EncodeResponse(resp Response) ([]byte, error) {
	var payload interface{}
	switch resp.Kind {
	case ClockRespKind:
		blob, err := resp.Clock.Clock.MarshalBinary()
		if err != nil {
			return nil, err
		}
		payload = wireClockResp{ClockBlob: blob}
	case EventsRespKind:
		payload = resp.Events
	case AckRespKind:
		payload = resp.Ack
	case TabReceivedRespKind:
		payload = resp.TabReceived
	case ErrorRespKind:
		payload = resp.Error
	default:
		return nil, ErrUnknownKind
	}
	raw, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(wireResponse{Kind: uint8(resp.Kind), Payload: raw})
}

// DecodeResponse is the inverse of EncodeResponse.
func DecodeResponse(data []byte) (Response, error) {
	var w wireResponse
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return Response{}, err
	}
	resp := Response{Kind: ResponseKind(w.Kind)}
	switch resp.Kind {
	case ClockRespKind:
		var wc wireClockResp
		if err := rlp.DecodeBytes(w.Payload, &wc); err != nil {
			return Response{}, err
		}
		var c clock.Clock
		if err := c.UnmarshalBinary(wc.ClockBlob); err != nil {
			return Response{}, err
		}
		resp.Clock = &ClockResp{Clock: c}
	case EventsRespKind:
		resp.Events = new(EventsResp)
		if err := rlp.DecodeBytes(w.Payload, resp.Events); err != nil {
			return Response{}, err
		}
	case AckRespKind:
		resp.Ack = new(AckResp)
		if err := rlp.DecodeBytes(w.Payload, resp.Ack); err != nil {
			return Response{}, err
		}
	case TabReceivedRespKind:
		resp.TabReceived = new(TabReceivedResp)
		if err := rlp.DecodeBytes(w.Payload, resp.TabReceived); err != nil {
			return Response{}, err
		}
	case ErrorRespKind:
		resp.Error = new(ErrorResp)
		if err := rlp.DecodeBytes(w.Payload, resp.Error); err != nil {
			return Response{}, err
		}
	default:
		return Response{}, ErrUnknownKind
	}
	return resp, nil
}

// ErrorResponse builds a Response wrapping an error message, the reply every
// stream handler falls back to when it can't fulfil a request.
func ErrorResponse(msg string) Response {
	return Response{Kind: ErrorRespKind, Error: &ErrorResp{Message: msg}}
}
