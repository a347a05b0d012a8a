// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package prf implements the TLS 1.2 pseudo-random function (RFC 5246
// §5) used to derive the master secret, key block, and Finished
// verify_data. TLS 1.3's key schedule lives in pkg/crypto/keyschedule
// instead: RFC 8446 §7.1 replaces the PRF with HKDF-Expand-Label.
package prf

import (
	"crypto/hmac"
	"hash"

	"github.com/transportsec/tlscore/pkg/crypto/elliptic"
	"github.com/transportsec/tlscore/pkg/protocol/extension"
)

// EncryptionKeys holds every secret and IV derived from the master
// secret via the TLS 1.2 key_block expansion (RFC 5246 §6.3). MAC keys
// are empty for the AEAD suites this engine negotiates.
type EncryptionKeys struct {
	MasterSecret   []byte
	ClientMACKey   []byte
	ServerMACKey   []byte
	ClientWriteKey []byte
	ServerWriteKey []byte
	ClientWriteIV  []byte
	ServerWriteIV  []byte
}

// PreMasterSecret performs the (EC)DHE key agreement that produces the
// TLS 1.2 pre_master_secret (RFC 5246 §8.1.2 / RFC 8422 §5.10).
func PreMasterSecret(publicKey, privateKey []byte, curve extension.NamedGroup) ([]byte, error) {
	c, ok := elliptic.Curves[curve]
	if !ok {
		return nil, errInvalidNamedCurve
	}
	return c.ECDH(privateKey, publicKey)
}

// pHash implements P_hash(secret, seed) from RFC 5246 §5.
func pHash(secret, seed []byte, requestedLength int, h func() hash.Hash) ([]byte, error) {
	hmacSHA := hmac.New(h, secret)

	var out []byte
	aCur := seed
	for len(out) < requestedLength {
		hmacSHA.Reset()
		hmacSHA.Write(aCur)
		aCur = hmacSHA.Sum(nil)

		hmacSHA.Reset()
		hmacSHA.Write(aCur)
		hmacSHA.Write(seed)
		out = append(out, hmacSHA.Sum(nil)...)
	}
	return out[:requestedLength], nil
}

// MasterSecret derives the 48-byte master_secret from a pre-master
// secret and the hello randoms (RFC 5246 §8.1).
func MasterSecret(preMasterSecret, clientRandom, serverRandom []byte, h func() hash.Hash) ([]byte, error) {
	seed := append(append([]byte{}, clientRandom...), serverRandom...)
	return pHash(preMasterSecret, seed, 48, h)
}

// Exporter derives RFC 5705 keying material: PRF(master_secret, label,
// seed)[0:length], where seed is the caller-assembled client_random ||
// server_random || context, using the same PRF hash h the connection
// negotiated its master_secret with.
func Exporter(masterSecret []byte, label string, seed []byte, length int, h func() hash.Hash) ([]byte, error) {
	full := append([]byte(label), seed...)
	return pHash(masterSecret, full, length, h)
}

// GenerateEncryptionKeys expands the master_secret into the key_block
// and slices it into the individual traffic keys/IVs (RFC 5246 §6.3).
func GenerateEncryptionKeys(masterSecret, clientRandom, serverRandom []byte, macLen, keyLen, ivLen int, h func() hash.Hash) (*EncryptionKeys, error) {
	seed := append(append([]byte{}, serverRandom...), clientRandom...)
	// RFC 5246 §6.3's key_block seed order is server_random ||
	// client_random (reversed from the master_secret seed).
	totalLen := 2*macLen + 2*keyLen + 2*ivLen
	keyBlock, err := pHash(masterSecret, seed, totalLen, h)
	if err != nil {
		return nil, err
	}

	offset := 0
	next := func(n int) []byte {
		b := keyBlock[offset : offset+n]
		offset += n
		return b
	}

	return &EncryptionKeys{
		MasterSecret:   masterSecret,
		ClientMACKey:   append([]byte{}, next(macLen)...),
		ServerMACKey:   append([]byte{}, next(macLen)...),
		ClientWriteKey: append([]byte{}, next(keyLen)...),
		ServerWriteKey: append([]byte{}, next(keyLen)...),
		ClientWriteIV:  append([]byte{}, next(ivLen)...),
		ServerWriteIV:  append([]byte{}, next(ivLen)...),
	}, nil
}

const verifyDataLength = 12

// VerifyDataClient computes the client's Finished.verify_data
// (RFC 5246 §7.4.9) over the running handshake transcript.
func VerifyDataClient(masterSecret, handshakeBodies []byte, h func() hash.Hash) ([]byte, error) {
	return verifyData(masterSecret, handshakeBodies, "client finished", h)
}

// VerifyDataServer computes the server's Finished.verify_data.
func VerifyDataServer(masterSecret, handshakeBodies []byte, h func() hash.Hash) ([]byte, error) {
	return verifyData(masterSecret, handshakeBodies, "server finished", h)
}

func verifyData(masterSecret, handshakeBodies []byte, label string, h func() hash.Hash) ([]byte, error) {
	hf := h()
	if _, err := hf.Write(handshakeBodies); err != nil {
		return nil, err
	}
	seed := append([]byte(label), hf.Sum(nil)...)
	return pHash(masterSecret, seed, verifyDataLength, h)
}
