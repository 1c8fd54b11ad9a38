package transport_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfpack-dev/wolfpack/clock"
	"github.com/wolfpack-dev/wolfpack/transport"
)

func TestRequestRoundTripGetClock(t *testing.T) {
	data, err := transport.EncodeRequest(transport.Request{Kind: transport.GetClockKind})
	require.NoError(t, err)

	req, err := transport.DecodeRequest(data)
	require.NoError(t, err)
	require.Equal(t, transport.GetClockKind, req.Kind)
	require.Nil(t, req.GetEvents)
}

func TestRequestRoundTripGetEvents(t *testing.T) {
	c := clock.New()
	c.Set("device-a", 5)
	c.Set("device-b", 2)

	data, err := transport.EncodeRequest(transport.Request{
		Kind:      transport.GetEventsKind,
		GetEvents: &transport.GetEvents{Clock: c},
	})
	require.NoError(t, err)

	req, err := transport.DecodeRequest(data)
	require.NoError(t, err)
	require.Equal(t, transport.GetEventsKind, req.Kind)
	require.Equal(t, c, req.GetEvents.Clock)
}

func TestRequestRoundTripPushEvents(t *testing.T) {
	envs := []transport.EncryptedEnvelope{
		{
			ID:         "11111111-1111-1111-1111-111111111111",
			DeviceID:   "device-a",
			Counter:    3,
			Ciphertext: []byte{1, 2, 3},
			PublicKey:  make([]byte, 32),
			Suite:      1,
			Nonce:      []byte{9, 9, 9},
		},
	}

	data, err := transport.EncodeRequest(transport.Request{
		Kind:       transport.PushEventsKind,
		PushEvents: &transport.PushEvents{Envelopes: envs},
	})
	require.NoError(t, err)

	req, err := transport.DecodeRequest(data)
	require.NoError(t, err)
	require.Equal(t, envs, req.PushEvents.Envelopes)
}

func TestRequestRoundTripSendTab(t *testing.T) {
	send := &transport.SendTab{ToDevice: "device-b", URL: "https://example.com", Title: "Example", FromDevice: "device-a"}

	data, err := transport.EncodeRequest(transport.Request{Kind: transport.SendTabKind, SendTab: send})
	require.NoError(t, err)

	req, err := transport.DecodeRequest(data)
	require.NoError(t, err)
	require.Equal(t, send, req.SendTab)
}

func TestResponseRoundTripClock(t *testing.T) {
	c := clock.New()
	c.Set("device-a", 7)

	data, err := transport.EncodeResponse(transport.Response{Kind: transport.ClockRespKind, Clock: &transport.ClockResp{Clock: c}})
	require.NoError(t, err)

	resp, err := transport.DecodeResponse(data)
	require.NoError(t, err)
	require.Equal(t, c, resp.Clock.Clock)
}

func TestResponseRoundTripAck(t *testing.T) {
	data, err := transport.EncodeResponse(transport.Response{Kind: transport.AckRespKind, Ack: &transport.AckResp{Count: 4}})
	require.NoError(t, err)

	resp, err := transport.DecodeResponse(data)
	require.NoError(t, err)
	require.Equal(t, uint64(4), resp.Ack.Count)
}

func TestResponseRoundTripError(t *testing.T) {
	data, err := transport.EncodeResponse(transport.ErrorResponse("boom"))
	require.NoError(t, err)

	resp, err := transport.DecodeResponse(data)
	require.NoError(t, err)
	require.Equal(t, transport.ErrorRespKind, resp.Kind)
	require.Equal(t, "boom", resp.Error.Message)
}

func TestDecodeRequestMalformedFrame(t *testing.T) {
	_, err := transport.DecodeRequest([]byte{0xff, 0x00, 0x01})
	require.Error(t, err)
}
