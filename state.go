// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"hash"
	"sync"

	"github.com/google/uuid"

	"github.com/transportsec/tlscore/pkg/crypto/ciphersuite"
	"github.com/transportsec/tlscore/pkg/protocol"
)

// Established is the tri-state connection lifecycle flag from
// spec.md §3.
type Established int

// Established states.
const (
	NotEstablished Established = iota
	EarlyDataAllowed
	EstablishedState
)

// recordEpoch is one direction's record-protection state: the current
// cipher, and (TLS 1.2 only) a staged next epoch installed ahead of
// the ChangeCipherSpec that makes it take effect. TLS 1.3 key changes
// are installed immediately instead.
type recordEpoch struct {
	aead           ciphersuite.AEAD
	sequenceNumber uint64
	pending        *recordEpoch
}

// swap atomically (under the caller's Read/Write lock) replaces this
// epoch with its staged pending epoch, resetting the sequence number,
// per spec.md §4.2's "Epoch swap" rule.
func (e *recordEpoch) swap() {
	if e.pending == nil {
		return
	}
	e.aead = e.pending.aead
	e.sequenceNumber = 0
	e.pending = nil
}

// handshakeState is the FSM's current named state (spec.md §4.4's
// per-role-and-version state sequences).
type handshakeState int

// States shared by both versions' FSMs; not every state is reachable
// by every role×version combination.
const (
	stateInit handshakeState = iota
	stateSentClientHello
	stateGotServerHello
	stateGotCertOrSKE
	stateGotServerHelloDone
	stateSentClientKeyExchange
	stateSentChangeCipherSpec
	stateSentFinished
	stateGotChangeCipherSpec
	stateGotFinished
	stateGotClientHello
	stateSentServerHelloFlight
	stateGotClientCert
	stateGotClientKeyExchange
	stateGotCertVerify
	stateSentHelloRetryRequest
	stateSentClientHello2
	stateGotEncryptedExtensions
	stateGotCertificateRequest
	stateGotCertificate
	stateSentEncryptedExtensions
	stateSentCertificateRequest
	stateSentCertificate
	stateSentClientCertificate
	stateSentCertificateVerify
	stateEstablished
)

// Context is the single per-connection aggregate (spec.md §3). It is
// mutated only under its three locks, acquired in the order State →
// Read → Write to avoid deadlock (spec.md §5).
type Context struct {
	readLock  sync.Mutex
	writeLock sync.Mutex
	stateLock sync.Mutex

	// connID correlates this connection's log lines and diagnostics
	// across a busy server, the way a request ID threads through an
	// HTTP handler's logs.
	connID string

	role    Role
	backend Backend

	negotiatedVersion protocol.NegotiatedVersion
	handshakeState    handshakeState

	transcript *transcript

	txEpoch recordEpoch
	rxEpoch recordEpoch

	established Established
	eof         bool
	peerEOF     bool

	ourFinished  []byte
	peerFinished []byte

	// clientRandom/serverRandom are retained for the TLS 1.2 exporter
	// (RFC 5705), whose PRF label context is the two hello randoms
	// rather than a transcript hash.
	clientRandom [32]byte
	serverRandom [32]byte

	masterSecret         []byte
	exporterMasterSecret []byte
	resumptionSecret     []byte

	// clientAppSecret/serverAppSecret are retained only for TLS 1.3
	// connections, so a post-handshake KeyUpdate (RFC 8446 §4.6.3) can
	// ratchet them via keyschedule.NextApplicationTrafficSecret without
	// redoing the whole key schedule. scheduleHash is retained for both
	// versions: TLS 1.3 reuses it for the same purpose, TLS 1.2 reuses
	// it as the PRF hash the exporter (RFC 5705) needs.
	clientAppSecret []byte
	serverAppSecret []byte
	scheduleHash    func() hash.Hash

	peerCertChain [][]byte

	pendingActions []pendingAction

	hooks *hookBox

	sessionManager SessionManager
	cipherSuite    ciphersuite.ID
	negotiatedALPN string
	negotiatedServerName string

	closed  bool
	lastErr error
}

// pendingAction is one queued TLS 1.3 post-handshake action (spec.md
// §3): issuing a session ticket, rotating traffic keys, or requesting
// post-handshake client authentication.
type pendingAction struct {
	kind pendingActionKind
	data any
}

type pendingActionKind int

// Post-handshake action kinds.
const (
	pendingActionIssueTicket pendingActionKind = iota
	pendingActionKeyUpdate
	pendingActionPostHandshakeAuth
)

// contextNew constructs an empty Context: locks ready, record states
// null-cipher with sequence zero, FSM at Init (spec.md §4.5).
func contextNew(backend Backend, role Role, sessionManager SessionManager, hooks *Hooks) *Context {
	if sessionManager == nil {
		sessionManager = DefaultSessionManager{}
	}
	return &Context{
		connID:         uuid.NewString(),
		role:           role,
		backend:        backend,
		transcript:     newTranscript(nil),
		sessionManager: sessionManager,
		hooks:          newHookBox(hooks),
	}
}

// ConnID returns the correlation id generated for this connection,
// suitable for joining log lines and diagnostics across a busy server.
func (c *Context) ConnID() string {
	return c.connID
}

// GetFinished returns this endpoint's Finished.verify_data, retained
// for channel-binding use after the handshake completes.
func (c *Context) GetFinished() []byte {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return append([]byte{}, c.ourFinished...)
}

// GetPeerFinished returns the peer's Finished.verify_data.
func (c *Context) GetPeerFinished() []byte {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return append([]byte{}, c.peerFinished...)
}

// IsEstablished reports whether the handshake has completed.
func (c *Context) IsEstablished() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.established == EstablishedState
}

// NegotiatedVersion returns the version selected during the handshake,
// or VersionUnknown before ServerHello.
func (c *Context) NegotiatedVersion() protocol.NegotiatedVersion {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.negotiatedVersion
}

// SetHooks atomically swaps the hooks table under the State lock
// (spec.md §4.7).
func (c *Context) SetHooks(h *Hooks) {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	c.hooks.store(h)
}

func (c *Context) enqueuePendingAction(kind pendingActionKind, data any) {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	c.pendingActions = append(c.pendingActions, pendingAction{kind: kind, data: data})
}

func (c *Context) drainPendingActions() []pendingAction {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	actions := c.pendingActions
	c.pendingActions = nil
	return actions
}

func (c *Context) markEOF(err error) {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	c.eof = true
	c.closed = true
	if err != nil {
		c.lastErr = err
	}
}

func (c *Context) isClosed() bool {
	c.stateLock.Lock()
	defer c.stateLock.Unlock()
	return c.closed
}
