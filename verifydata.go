// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"bytes"
	"crypto/subtle"

	"github.com/transportsec/tlscore/pkg/protocol/handshake"
)

// hmacEqual compares two verify_data/MAC values in constant time.
func hmacEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// certificateVerifyContent builds the data a TLS 1.3 CertificateVerify
// actually signs/verifies (RFC 8446 §4.4.3): 64 spaces, a
// context-specific label, a zero byte, then the transcript hash taken
// up to but excluding the CertificateVerify message itself.
func certificateVerifyContent(isServer bool, transcriptHash []byte) []byte {
	label := "TLS 1.3, client CertificateVerify"
	if isServer {
		label = "TLS 1.3, server CertificateVerify"
	}
	var out bytes.Buffer
	out.Write(bytes.Repeat([]byte{0x20}, 64))
	out.WriteString(label)
	out.WriteByte(0x00)
	out.Write(transcriptHash)
	return out.Bytes()
}

// logSecret writes a key-log line if a KeyLogWriter is installed,
// guarding the common case of no hooks/no writer without making every
// call site repeat the nil checks.
func (c *Conn) logSecret(label keyLogLabel, clientRandom [handshake.RandomLength]byte, secret []byte) {
	h := c.ctx.hooks.load()
	if h == nil || h.KeyLogWriter == nil {
		return
	}
	writeKeyLog(h.KeyLogWriter, label, clientRandom[:], secret)
}
