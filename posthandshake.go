// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"fmt"
	"time"

	"github.com/transportsec/tlscore/pkg/crypto/ciphersuite"
	"github.com/transportsec/tlscore/pkg/crypto/keyschedule"
	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/handshake"
)

// handlePostHandshakeRecord decodes and acts on one post-handshake
// handshake-content message (RFC 8446 §4.6): NewSessionTicket, which
// the client files away for future resumption, or KeyUpdate, which
// ratchets the traffic secret the sender used. These never touch the
// transcript: both messages exist outside the handshake the
// transcript exists to authenticate.
func handlePostHandshakeRecord(c *Conn, payload []byte) error {
	var hs handshake.Handshake
	if err := hs.Unmarshal(payload); err != nil {
		return NewError(KindDecodeError, err)
	}

	switch m := hs.Message.(type) {
	case *handshake.MessageNewSessionTicket:
		return c.handleNewSessionTicket(m)
	case *handshake.MessageKeyUpdate:
		return c.handleKeyUpdate(m)
	default:
		return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: unexpected post-handshake message %T", hs.Message))
	}
}

// handleNewSessionTicket stores a server-issued ticket's resumption
// PSK (RFC 8446 §4.6.1) via the configured SessionManager.
func (c *Conn) handleNewSessionTicket(m *handshake.MessageNewSessionTicket) error {
	c.ctx.stateLock.Lock()
	resumptionSecret := c.ctx.resumptionSecret
	hashFn := c.ctx.scheduleHash
	suite := c.ctx.cipherSuite
	alpn := c.ctx.negotiatedALPN
	c.ctx.stateLock.Unlock()

	if resumptionSecret == nil || hashFn == nil {
		return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: NewSessionTicket before a TLS 1.3 handshake completed"))
	}

	schedule := keyschedule.NewSchedule(hashFn)
	psk := schedule.ResumptionPSK(resumptionSecret, m.TicketNonce)

	data := &SessionData{
		Version:      protocol.VersionTLS13,
		CipherSuite:  suite,
		MasterSecret: psk,
		ALPN:         alpn,
		IssuedAt:     time.Now(),
		Lifetime:     time.Duration(m.TicketLifetime) * time.Second,
		AgeAdd:       m.TicketAgeAdd,
	}
	_, err := c.ctx.sessionManager.Establish(m.Ticket, data)
	return err
}

// handleKeyUpdate ratchets the traffic secret the peer used to send
// this KeyUpdate (RFC 8446 §4.6.3 / §7.2), reinstalling only the RX
// epoch since this endpoint's own write secret is untouched unless
// the peer also asked us to update, in which case we ratchet our own
// secret, reinstall TX, and answer with our own KeyUpdate(not
// requested) rather than cascading forever.
func (c *Conn) handleKeyUpdate(m *handshake.MessageKeyUpdate) error {
	c.ctx.stateLock.Lock()
	hashFn := c.ctx.scheduleHash
	suiteID := c.ctx.cipherSuite
	role := c.ctx.role
	clientSecret := c.ctx.clientAppSecret
	serverSecret := c.ctx.serverAppSecret
	c.ctx.stateLock.Unlock()

	if hashFn == nil {
		return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: KeyUpdate before a TLS 1.3 handshake completed"))
	}
	suite, ok := ciphersuite.Suites[suiteID]
	if !ok {
		return NewError(KindInternalError, fmt.Errorf("tlscore: unknown cipher suite %#04x", uint16(suiteID)))
	}

	ourSecret, peerSecret := clientSecret, serverSecret
	if role == RoleServer {
		ourSecret, peerSecret = serverSecret, clientSecret
	}

	schedule := keyschedule.NewSchedule(hashFn)
	newPeerSecret := schedule.NextApplicationTrafficSecret(peerSecret)
	newPeerKeys := keyschedule.DeriveTrafficKeys(hashFn, newPeerSecret, suite.KeyLen, trafficIVLen)
	ourKeys := keyschedule.DeriveTrafficKeys(hashFn, ourSecret, suite.KeyLen, trafficIVLen)

	rxAEAD, err := newAEAD(suiteID, true, ourKeys.Key, ourKeys.IV, newPeerKeys.Key, newPeerKeys.IV)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	c.installRXEpochNow(rxAEAD)
	if h := c.ctx.hooks.load(); h != nil && h.Metrics != nil {
		h.Metrics.observeKeyUpdate("rx")
	}

	c.ctx.stateLock.Lock()
	if role == RoleServer {
		c.ctx.clientAppSecret = newPeerSecret
	} else {
		c.ctx.serverAppSecret = newPeerSecret
	}
	c.ctx.stateLock.Unlock()

	if m.RequestUpdate != handshake.KeyUpdateRequested {
		return nil
	}

	newOurSecret := schedule.NextApplicationTrafficSecret(ourSecret)
	newOurKeys := keyschedule.DeriveTrafficKeys(hashFn, newOurSecret, suite.KeyLen, trafficIVLen)
	txAEAD, err := newAEAD(suiteID, true, newOurKeys.Key, newOurKeys.IV, newPeerKeys.Key, newPeerKeys.IV)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	c.installTXEpochNow(txAEAD)
	if h := c.ctx.hooks.load(); h != nil && h.Metrics != nil {
		h.Metrics.observeKeyUpdate("tx")
	}

	c.ctx.stateLock.Lock()
	if role == RoleServer {
		c.ctx.serverAppSecret = newOurSecret
	} else {
		c.ctx.clientAppSecret = newOurSecret
	}
	c.ctx.stateLock.Unlock()

	reply := &handshake.Handshake{Message: &handshake.MessageKeyUpdate{RequestUpdate: handshake.KeyUpdateNotRequested}}
	raw, err := reply.Marshal()
	if err != nil {
		return NewError(KindInternalError, err)
	}
	return c.writeRecord(protocol.ContentTypeHandshake, raw)
}
