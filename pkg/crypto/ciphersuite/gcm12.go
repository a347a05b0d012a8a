// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package ciphersuite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/transportsec/tlscore/pkg/protocol/recordlayer"
)

const (
	gcmTagLength           = 16
	gcmNonceLength         = 12
	gcmExplicitNonceLength = 8
)

// GCM12 implements TLS 1.2 AEAD record protection (RFC 5246 §6.2.3.3):
// a 4-byte implicit IV derived from the key block, concatenated with
// an 8-byte explicit nonce sent in the clear ahead of the ciphertext.
type GCM12 struct {
	localGCM, remoteGCM         cipher.AEAD
	localWriteIV, remoteWriteIV []byte
}

// NewGCM12 builds a GCM12 from the traffic keys/IVs produced by
// pkg/crypto/prf's key_block expansion.
func NewGCM12(localKey, localWriteIV, remoteKey, remoteWriteIV []byte) (*GCM12, error) {
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

	return &GCM12{
		localGCM:      localGCM,
		localWriteIV:  localWriteIV,
		remoteGCM:     remoteGCM,
		remoteWriteIV: remoteWriteIV,
	}, nil
}

// Overhead implements AEAD.
func (g *GCM12) Overhead() int { return gcmExplicitNonceLength + gcmTagLength }

// Encrypt implements AEAD.
func (g *GCM12) Encrypt(header *recordlayer.Header, seq uint64, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, gcmNonceLength)
	copy(nonce, g.localWriteIV[:4])
	if _, err := rand.Read(nonce[4:]); err != nil {
		return nil, err
	}

	additionalData := aeadAdditionalData12(header, seq, len(plaintext))
	sealed := g.localGCM.Seal(nil, nonce, plaintext, additionalData)

	out := make([]byte, 0, gcmExplicitNonceLength+len(sealed))
	out = append(out, nonce[4:]...)
	return append(out, sealed...), nil
}

// Decrypt implements AEAD.
func (g *GCM12) Decrypt(header *recordlayer.Header, seq uint64, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) <= gcmExplicitNonceLength {
		return nil, errNotEnoughRoomForNonce
	}

	nonce := make([]byte, 0, gcmNonceLength)
	nonce = append(append(nonce, g.remoteWriteIV[:4]...), ciphertext[:gcmExplicitNonceLength]...)
	sealed := ciphertext[gcmExplicitNonceLength:]

	additionalData := aeadAdditionalData12(header, seq, len(sealed)-gcmTagLength)
	out, err := g.remoteGCM.Open(sealed[:0], nonce, sealed, additionalData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDecryptPacket, err) //nolint:errorlint
	}
	return out, nil
}

// aeadAdditionalData12 builds the TLS 1.2 AEAD associated data:
// seq_num(8) || type(1) || version(2) || length(2), RFC 5246 §6.2.3.3.
func aeadAdditionalData12(header *recordlayer.Header, seq uint64, plaintextLen int) []byte {
	additionalData := make([]byte, 13)
	binary.BigEndian.PutUint64(additionalData, seq)
	additionalData[8] = byte(header.ContentType)
	additionalData[9] = header.Version.Major
	additionalData[10] = header.Version.Minor
	binary.BigEndian.PutUint16(additionalData[11:], uint16(plaintextLen))
	return additionalData
}
