// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package ciphersuite implements the record-protection (bulk encryption)
// half of each negotiated cipher suite. Key-exchange and signature
// negotiation live in pkg/crypto/elliptic and pkg/crypto/signaturehash
// respectively; this package only knows how to seal/open records once
// traffic keys exist.
package ciphersuite

import "github.com/transportsec/tlscore/pkg/protocol/recordlayer"

// ID is the two-byte cipher suite identifier sent on the wire.
type ID uint16

// Cipher suites this engine negotiates. The TLS 1.3 suites (0x13xx)
// name only an AEAD+hash: key exchange is always (EC)DHE via key_share.
const (
	TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256 ID = 0xc02b
	TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256   ID = 0xc02f
	TLS_AES_128_GCM_SHA256                  ID = 0x1301
	TLS_AES_256_GCM_SHA384                  ID = 0x1302
	TLS_CHACHA20_POLY1305_SHA256            ID = 0x1303
)

// AEAD seals and opens TLS records. TLS 1.2 and TLS 1.3 implementations
// differ in nonce construction and additional-data layout (RFC 5246
// §6.2.3.3 vs RFC 8446 §5.2/§5.3); both present this same interface to
// the record layer so the FSM need not care which version is active.
type AEAD interface {
	// Encrypt seals plaintext (the record's fragment, with TLS 1.3's
	// inner-plaintext content-type byte already appended by the
	// caller) into a ciphertext ready to follow header in the wire
	// record. seq is the logical per-direction record sequence number.
	Encrypt(header *recordlayer.Header, seq uint64, plaintext []byte) ([]byte, error)

	// Decrypt opens a ciphertext fragment back into plaintext.
	Decrypt(header *recordlayer.Header, seq uint64, ciphertext []byte) ([]byte, error)

	// Overhead is the number of bytes Encrypt adds beyond plaintext
	// length (explicit nonce, if any, plus the authentication tag).
	Overhead() int
}

// Suite describes the static properties of a negotiated cipher suite:
// which hash its key schedule and Finished computation use, and
// whether it is a TLS 1.3-only suite.
type Suite struct {
	ID       ID
	KeyLen   int
	IsTLS13  bool
	HashSize int
}

// Suites is the registry of cipher suites this engine can negotiate.
//
//nolint:gochecknoglobals
var Suites = map[ID]Suite{
	TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256: {ID: TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256, KeyLen: 16, HashSize: 32},
	TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256:   {ID: TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256, KeyLen: 16, HashSize: 32},
	TLS_AES_128_GCM_SHA256:                  {ID: TLS_AES_128_GCM_SHA256, KeyLen: 16, IsTLS13: true, HashSize: 32},
	TLS_AES_256_GCM_SHA384:                  {ID: TLS_AES_256_GCM_SHA384, KeyLen: 32, IsTLS13: true, HashSize: 48},
	TLS_CHACHA20_POLY1305_SHA256:            {ID: TLS_CHACHA20_POLY1305_SHA256, KeyLen: 32, IsTLS13: true, HashSize: 32},
}

// Negotiate picks the first suite in the server's preference list that
// the client also offered (spec.md's "server preference order" rule).
func Negotiate(serverPreference []ID, clientOffered []ID) (ID, bool) {
	offered := make(map[ID]struct{}, len(clientOffered))
	for _, id := range clientOffered {
		offered[id] = struct{}{}
	}
	for _, id := range serverPreference {
		if _, ok := offered[id]; ok {
			return id, true
		}
	}
	return 0, false
}
