// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import "github.com/transportsec/tlscore/pkg/crypto/ciphersuite"

// installTXEpochNow installs aead as the current TX epoch immediately
// (TLS 1.3: there is no ChangeCipherSpec moment, a key change takes
// effect on the very next record sent in that direction).
func (c *Conn) installTXEpochNow(aead ciphersuite.AEAD) {
	c.ctx.writeLock.Lock()
	defer c.ctx.writeLock.Unlock()
	c.ctx.txEpoch.aead = aead
	c.ctx.txEpoch.sequenceNumber = 0
	c.ctx.txEpoch.pending = nil
}

// installRXEpochNow is installTXEpochNow's RX counterpart.
func (c *Conn) installRXEpochNow(aead ciphersuite.AEAD) {
	c.ctx.readLock.Lock()
	defer c.ctx.readLock.Unlock()
	c.ctx.rxEpoch.aead = aead
	c.ctx.rxEpoch.sequenceNumber = 0
	c.ctx.rxEpoch.pending = nil
}

// stageTXEpoch stages aead to take effect the next time this
// direction's ChangeCipherSpec is sent (TLS 1.2).
func (c *Conn) stageTXEpoch(aead ciphersuite.AEAD) {
	c.ctx.writeLock.Lock()
	defer c.ctx.writeLock.Unlock()
	c.ctx.txEpoch.pending = &recordEpoch{aead: aead}
}

// stageRXEpoch is stageTXEpoch's RX counterpart.
func (c *Conn) stageRXEpoch(aead ciphersuite.AEAD) {
	c.ctx.readLock.Lock()
	defer c.ctx.readLock.Unlock()
	c.ctx.rxEpoch.pending = &recordEpoch{aead: aead}
}

// swapTXEpoch applies a previously staged TX epoch (TLS 1.2's send
// ChangeCipherSpec moment).
func (c *Conn) swapTXEpoch() {
	c.ctx.writeLock.Lock()
	defer c.ctx.writeLock.Unlock()
	c.ctx.txEpoch.swap()
}
