package pairing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfpack-dev/wolfpack/pairing"
)

func TestCreateSessionGeneratesSixDigitCode(t *testing.T) {
	m := pairing.New()
	code, err := m.CreateSession()
	require.NoError(t, err)
	require.Len(t, code, 6)

	current, ok := m.CurrentCode()
	require.True(t, ok)
	require.Equal(t, code, current)
	require.True(t, m.HasActiveSession())
}

func TestJoinSessionOnIdleMachineIsInvalidCode(t *testing.T) {
	m := pairing.New()
	result := <-m.JoinSession("123456", pairing.Request{DeviceID: "joiner"})
	require.Equal(t, pairing.InvalidCode, result.Reply)
}

func TestJoinSessionWrongCodeIsInvalidCode(t *testing.T) {
	m := pairing.New()
	code, err := m.CreateSession()
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "111111"
	}
	result := <-m.JoinSession(wrong, pairing.Request{DeviceID: "joiner"})
	require.Equal(t, pairing.InvalidCode, result.Reply)
}

func TestPairingAcceptFlow(t *testing.T) {
	m := pairing.New()
	code, err := m.CreateSession()
	require.NoError(t, err)

	req := pairing.Request{DeviceID: "joiner", PublicKey: [32]byte{1, 2, 3}}
	resultCh := m.JoinSession(code, req)

	pending, ok := m.GetPendingRequest()
	require.True(t, ok)
	require.Equal(t, req, pending)

	resp := pairing.Response{DeviceID: "initiator", PublicKey: [32]byte{9, 9, 9}}
	require.NoError(t, m.RespondToRequest(true, resp))

	result := <-resultCh
	require.Equal(t, pairing.Accepted, result.Reply)
	require.Equal(t, resp, result.Response)

	require.False(t, m.HasActiveSession())
}

func TestPairingRejectFlow(t *testing.T) {
	m := pairing.New()
	code, err := m.CreateSession()
	require.NoError(t, err)

	resultCh := m.JoinSession(code, pairing.Request{DeviceID: "joiner"})
	require.NoError(t, m.RespondToRequest(false, pairing.Response{}))

	result := <-resultCh
	require.Equal(t, pairing.Rejected, result.Reply)
}

func TestCancelSessionRejectsPendingJoiner(t *testing.T) {
	m := pairing.New()
	code, err := m.CreateSession()
	require.NoError(t, err)

	resultCh := m.JoinSession(code, pairing.Request{DeviceID: "joiner"})
	m.CancelSession()

	result := <-resultCh
	require.Equal(t, pairing.Rejected, result.Reply)
	require.False(t, m.HasActiveSession())
}

func TestRecreatingSessionRejectsPriorPendingJoiner(t *testing.T) {
	m := pairing.New()
	code, err := m.CreateSession()
	require.NoError(t, err)

	resultCh := m.JoinSession(code, pairing.Request{DeviceID: "first-joiner"})

	newCode, err := m.CreateSession()
	require.NoError(t, err)
	require.NotEqual(t, "", newCode)

	result := <-resultCh
	require.Equal(t, pairing.Rejected, result.Reply)
}

func TestJoinSessionPastExpiryReturnsExpiredAndResetsToIdle(t *testing.T) {
	m := pairing.New()
	code, err := m.CreateSession()
	require.NoError(t, err)

	pairing.ForceExpireForTest(m, 301*time.Second)

	result := <-m.JoinSession(code, pairing.Request{DeviceID: "joiner"})
	require.Equal(t, pairing.Expired, result.Reply)
	require.False(t, m.HasActiveSession())

	_, ok := m.CurrentCode()
	require.False(t, ok)
}

func TestRespondToRequestWithNoPendingSessionErrors(t *testing.T) {
	m := pairing.New()
	err := m.RespondToRequest(true, pairing.Response{})
	require.ErrorIs(t, err, pairing.ErrNoPendingRequest)
}
