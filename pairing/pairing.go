// Package pairing implements the six-digit-code pairing handshake of
// §4.10: one state machine per device, hosted inside the daemon event loop
// and driven exclusively by commands from it. It never touches the network
// itself — the daemon calls CreateSession and JoinSession from its control
// socket's pair-create and pair-join commands.
package pairing

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/wolfpack-dev/wolfpack/keymaterial"
)

// State is one of the three pairing session states (§4.10).
type State int

const (
	Idle State = iota
	AwaitingJoiner
	AwaitingConfirmation
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingJoiner:
		return "AwaitingJoiner"
	case AwaitingConfirmation:
		return "AwaitingConfirmation"
	default:
		return "Unknown"
	}
}

// SessionExpiry is how long a code remains valid after CreateSession (§4.10:
// "Code lifetime: 300 seconds from creation").
const SessionExpiry = 300 * time.Second

// Reply is the outcome a joiner's JoinSession call eventually receives.
type Reply int

const (
	Accepted Reply = iota
	Rejected
	Expired
	InvalidCode
)

// Request is what a joining device sends to ask to be paired.
type Request struct {
	DeviceID  string
	PublicKey [32]byte
}

// Response is what the initiator sends back on acceptance: its own identity
// plus every peer it already knows, so the joiner can derive the same group
// secret immediately (§4.2's "paired-device set... closed under pairwise
// pairing").
type Response struct {
	DeviceID  string
	PublicKey [32]byte
	Peers     []keymaterial.PairedDevice
}

// JoinResult is delivered on the channel JoinSession returns.
type JoinResult struct {
	Reply    Reply
	Response Response // only meaningful when Reply == Accepted
}

// ErrNoPendingRequest is returned by RespondToRequest when no joiner is
// currently waiting on a confirmation.
var ErrNoPendingRequest = errors.New("pairing: no request awaiting confirmation")

// Machine is the per-device pairing state machine (§4.10). Exactly one
// session is active at a time; the zero value is ready to use.
type Machine struct {
	mu sync.Mutex

	state   State
	code    string
	created time.Time
	pending *Request
	replyCh chan JoinResult
}

// New returns a Machine in the Idle state.
func New() *Machine {
	return &Machine{state: Idle}
}

// CreateSession generates a fresh 6-digit code and moves to AwaitingJoiner,
// rejecting any in-flight joiner confirmation first (§4.10: "Re-creating a
// session while one is active overwrites it and any pending joiner receives
// Rejected").
func (m *Machine) CreateSession() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rejectPendingLocked()

	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("pairing: generating code: %w", err)
	}

	m.state = AwaitingJoiner
	m.code = code
	m.created = time.Now()
	return code, nil
}

// JoinSession is called with the code a joiner presented and its pairing
// request. It returns a channel the caller should wait on for the eventual
// JoinResult; for InvalidCode and Expired outcomes the channel is already
// resolved when JoinSession returns (§4.10 transition table).
func (m *Machine) JoinSession(code string, req Request) <-chan JoinResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan JoinResult, 1)

	switch m.state {
	case Idle:
		ch <- JoinResult{Reply: InvalidCode}
	case AwaitingJoiner:
		if time.Since(m.created) > SessionExpiry {
			m.state = Idle
			m.code = ""
			ch <- JoinResult{Reply: Expired}
			return ch
		}
		if code != m.code {
			ch <- JoinResult{Reply: InvalidCode}
			return ch
		}
		reqCopy := req
		m.state = AwaitingConfirmation
		m.pending = &reqCopy
		m.replyCh = ch
	case AwaitingConfirmation:
		// A session is already mid-confirmation; the spec's transition
		// table has no entry for a second concurrent joiner, so this one
		// is turned away the same way an idle machine would.
		ch <- JoinResult{Reply: InvalidCode}
	}
	return ch
}

// GetPendingRequest returns the request awaiting confirmation, if any.
func (m *Machine) GetPendingRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != AwaitingConfirmation || m.pending == nil {
		return Request{}, false
	}
	return *m.pending, true
}

// RespondToRequest resolves the pending joiner's channel and returns to
// Idle. Calling it with no pending request is an error.
func (m *Machine) RespondToRequest(accept bool, resp Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != AwaitingConfirmation || m.replyCh == nil {
		return ErrNoPendingRequest
	}

	if accept {
		m.replyCh <- JoinResult{Reply: Accepted, Response: resp}
	} else {
		m.replyCh <- JoinResult{Reply: Rejected}
	}

	m.state = Idle
	m.pending = nil
	m.replyCh = nil
	return nil
}

// CancelSession rejects any pending joiner and returns to Idle.
func (m *Machine) CancelSession() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rejectPendingLocked()
	m.state = Idle
	m.code = ""
}

func (m *Machine) rejectPendingLocked() {
	if m.replyCh != nil {
		m.replyCh <- JoinResult{Reply: Rejected}
		m.replyCh = nil
	}
	m.pending = nil
}

// HasActiveSession reports whether the machine is anywhere but Idle; a
// supplemental accessor the original implementation exposed for its status
// surface (see DESIGN.md).
func (m *Machine) HasActiveSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != Idle
}

// CurrentCode returns the active session's code, if one exists and hasn't
// expired. Another supplemental status accessor (see DESIGN.md).
func (m *Machine) CurrentCode() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Idle || m.code == "" {
		return "", false
	}
	if time.Since(m.created) > SessionExpiry {
		return "", false
	}
	return m.code, true
}

// ForceExpireForTest backdates the active session's creation time by d, so
// tests can exercise the 300-second expiry path without sleeping for it.
func ForceExpireForTest(m *Machine, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = m.created.Add(-d)
}

// generateCode returns a uniformly distributed 6-digit decimal string in
// [100000, 999999] (§4.10's stated invariant).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
