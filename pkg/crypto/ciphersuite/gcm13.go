// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package ciphersuite

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/transportsec/tlscore/pkg/protocol/recordlayer"
)

// GCM13 implements TLS 1.3 AEAD record protection (RFC 8446 §5.2/§5.3):
// the nonce is the full 12-byte per-direction write IV XORed with the
// left-padded sequence number; there is no explicit nonce on the wire.
type GCM13 struct {
	localGCM, remoteGCM         cipher.AEAD
	localWriteIV, remoteWriteIV []byte
}

// NewGCM13 builds a GCM13 from TLS 1.3 traffic secrets already expanded
// into key/iv by pkg/crypto/keyschedule.
func NewGCM13(localKey, localWriteIV, remoteKey, remoteWriteIV []byte) (*GCM13, error) {
	localBlock, err := aes.NewCipher(localKey)
	if err != nil {
		return nil, err
	}
	localGCM, err := cipher.NewGCM(localBlock)
	if err != nil {
		return nil, err
	}

	remoteBlock, err := aes.NewCipher(remoteKey)
	if err != nil {
		return nil, err
	}
	remoteGCM, err := cipher.NewGCM(remoteBlock)
	if err != nil {
		return nil, err
	}

	return &GCM13{
		localGCM:      localGCM,
		localWriteIV:  localWriteIV,
		remoteGCM:     remoteGCM,
		remoteWriteIV: remoteWriteIV,
	}, nil
}

// Overhead implements AEAD.
func (g *GCM13) Overhead() int { return gcmTagLength }

// Encrypt implements AEAD. header's ContentLen must already reflect
// the sealed length; the caller builds additionalData from the header
// as written on the wire (opaque_type=23), per RFC 8446 §5.2.
func (g *GCM13) Encrypt(header *recordlayer.Header, seq uint64, plaintext []byte) ([]byte, error) {
	nonce := sequenceNonce(g.localWriteIV, seq)
	additionalData := aeadAdditionalData13(header)
	return g.localGCM.Seal(nil, nonce, plaintext, additionalData), nil
}

// Decrypt implements AEAD.
func (g *GCM13) Decrypt(header *recordlayer.Header, seq uint64, ciphertext []byte) ([]byte, error) {
	nonce := sequenceNonce(g.remoteWriteIV, seq)
	additionalData := aeadAdditionalData13(header)
	out, err := g.remoteGCM.Open(ciphertext[:0], nonce, ciphertext, additionalData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecryptPacket, err) //nolint:errorlint
	}
	return out, nil
}

// sequenceNonce XORs the write IV with the big-endian sequence number
// left-padded to the IV's length, RFC 8446 §5.3.
func sequenceNonce(writeIV []byte, seq uint64) []byte {
	nonce := make([]byte, len(writeIV))
	copy(nonce, writeIV)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(seq >> (8 * i))
	}
	return nonce
}

// aeadAdditionalData13 is the record header exactly as it appears on
// the wire: opaque_type(1) || legacy_record_version(2) || length(2),
// where length includes the AEAD tag (RFC 8446 §5.2).
func aeadAdditionalData13(header *recordlayer.Header) []byte {
	return []byte{
		byte(header.ContentType),
		header.Version.Major, header.Version.Minor,
		byte(header.ContentLen >> 8), byte(header.ContentLen),
	}
}
