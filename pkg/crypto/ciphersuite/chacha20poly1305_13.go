// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package ciphersuite

import (
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/transportsec/tlscore/pkg/protocol/recordlayer"
)

// ChaCha20Poly1305 implements TLS_CHACHA20_POLY1305_SHA256 record
// protection for TLS 1.3 (RFC 8446 §5.3, RFC 7905). It shares GCM13's
// nonce construction: sequence number XORed into the write IV.
type ChaCha20Poly1305 struct {
	localAEAD, remoteAEAD       cipher.AEAD
	localWriteIV, remoteWriteIV []byte
}

// NewChaCha20Poly1305 builds a ChaCha20Poly1305 AEAD from TLS 1.3
// traffic secrets.
func NewChaCha20Poly1305(localKey, localWriteIV, remoteKey, remoteWriteIV []byte) (*ChaCha20Poly1305, error) {
	localAEAD, err := chacha20poly1305.New(localKey)
	if err != nil {
		return nil, err
	}
	remoteAEAD, err := chacha20poly1305.New(remoteKey)
	if err != nil {
		return nil, err
	}
	return &ChaCha20Poly1305{
		localAEAD:     localAEAD,
		localWriteIV:  localWriteIV,
		remoteAEAD:    remoteAEAD,
		remoteWriteIV: remoteWriteIV,
	}, nil
}

// Overhead implements AEAD.
func (c *ChaCha20Poly1305) Overhead() int { return chacha20poly1305.Overhead }

// Encrypt implements AEAD.
func (c *ChaCha20Poly1305) Encrypt(header *recordlayer.Header, seq uint64, plaintext []byte) ([]byte, error) {
	nonce := sequenceNonce(c.localWriteIV, seq)
	return c.localAEAD.Seal(nil, nonce, plaintext, aeadAdditionalData13(header)), nil
}

// Decrypt implements AEAD.
func (c *ChaCha20Poly1305) Decrypt(header *recordlayer.Header, seq uint64, ciphertext []byte) ([]byte, error) {
	nonce := sequenceNonce(c.remoteWriteIV, seq)
	out, err := c.remoteAEAD.Open(ciphertext[:0], nonce, ciphertext, aeadAdditionalData13(header))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecryptPacket, err) //nolint:errorlint
	}
	return out, nil
}
