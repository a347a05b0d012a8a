// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"time"

	"github.com/transportsec/tlscore/pkg/crypto/ciphersuite"
	"github.com/transportsec/tlscore/pkg/protocol"
)

// SessionData is everything needed to resume a connection: a TLS 1.2
// master secret plus negotiated parameters, or a TLS 1.3 resumption
// secret plus ticket metadata.
type SessionData struct {
	Version     protocol.NegotiatedVersion
	CipherSuite ciphersuite.ID

	// MasterSecret (TLS 1.2) or ResumptionSecret (TLS 1.3, derived via
	// keyschedule.ResumptionPSK).
	MasterSecret []byte

	ClientCertificate [][]byte
	ALPN              string

	MaxEarlyData uint32
	IssuedAt     time.Time
	Lifetime     time.Duration
	AgeAdd       uint32
}

// SessionManager is the pluggable resumption store the core calls into
// (spec.md §4.6). Implementations are caller-supplied; DefaultSessionManager
// below is the core's no-op default.
type SessionManager interface {
	// Resume looks up or decrypts session data for idOrTicket. A nil
	// result with ok=false means "no session available".
	Resume(idOrTicket []byte) (data *SessionData, ok bool)

	// ResumeOnce is Resume's 0-RTT counterpart: it MUST invalidate the
	// entry on first successful use so a replay is rejected.
	ResumeOnce(idOrTicket []byte) (data *SessionData, ok bool)

	// Establish stores data under id. For ticket-mode managers it
	// returns an opaque ticket to send in NewSessionTicket; for
	// plain ID-based resumption it returns nil.
	Establish(id []byte, data *SessionData) (ticket []byte, err error)

	// Invalidate removes id, called after a handshake failure
	// following a resumption accept.
	Invalidate(id []byte) error

	// UseTicket reports whether the server should emit a TLS 1.2
	// NewSessionTicket instead of ID-based resumption.
	UseTicket() bool
}

// DefaultSessionManager is the core's no-op session manager: every
// lookup misses, every store silently discards, and UseTicket is false.
type DefaultSessionManager struct{}

// Resume implements SessionManager.
func (DefaultSessionManager) Resume([]byte) (*SessionData, bool) { return nil, false }

// ResumeOnce implements SessionManager.
func (DefaultSessionManager) ResumeOnce([]byte) (*SessionData, bool) { return nil, false }

// Establish implements SessionManager.
func (DefaultSessionManager) Establish([]byte, *SessionData) ([]byte, error) { return nil, nil }

// Invalidate implements SessionManager.
func (DefaultSessionManager) Invalidate([]byte) error { return nil }

// UseTicket implements SessionManager.
func (DefaultSessionManager) UseTicket() bool { return false }
