// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"github.com/zmap/zcrypto/tls"

	"github.com/transportsec/tlscore/pkg/protocol/handshake"
)

// GetHandshakeLog renders a zcrypto-shaped fingerprinting record for
// this connection, the way the teacher's Conn.GetHandshakeLog pulls
// cached flight messages through each message's MakeLog(). This engine
// does not keep a handshake-cache (spec.md's Context retains only the
// fields needed to run the FSM, not every flight message after
// completion), so this builds the log from what Context does retain:
// the two Finished verify_data values and the negotiated parameters,
// rather than re-deriving a ServerHello/ClientHello view.
func (c *Conn) GetHandshakeLog() *tls.ServerHandshake {
	c.ctx.stateLock.Lock()
	ourFinished := append([]byte{}, c.ctx.ourFinished...)
	peerFinished := append([]byte{}, c.ctx.peerFinished...)
	masterSecret := append([]byte{}, c.ctx.masterSecret...)
	role := c.ctx.role
	c.ctx.stateLock.Unlock()

	hsLog := &tls.ServerHandshake{}

	clientVerifyData, serverVerifyData := ourFinished, peerFinished
	if role == RoleServer {
		clientVerifyData, serverVerifyData = peerFinished, ourFinished
	}
	hsLog.ClientFinished = (&handshake.MessageFinished{VerifyData: clientVerifyData}).MakeLog()
	hsLog.ServerFinished = (&handshake.MessageFinished{VerifyData: serverVerifyData}).MakeLog()

	hsLog.KeyMaterial = &tls.KeyMaterial{
		MasterSecret: &tls.MasterSecret{
			Value:  masterSecret,
			Length: len(masterSecret),
		},
	}
	return hsLog
}
