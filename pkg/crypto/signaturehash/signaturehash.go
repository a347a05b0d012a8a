// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package signaturehash negotiates and performs the signature schemes
// carried in the signature_algorithms extension and CertificateVerify.
package signaturehash

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"github.com/transportsec/tlscore/pkg/protocol/extension"
)

func sha256Sum(msg []byte) [32]byte {
	return sha256.Sum256(msg)
}

// Sign produces a CertificateVerify signature over msg (the caller has
// already built msg per spec.md §4.3's transcript-plus-context rule).
func Sign(scheme extension.SignatureScheme, key crypto.Signer, msg []byte) ([]byte, error) {
	switch scheme {
	case extension.ECDSAWithP256AndSHA256:
		digest := sha256Sum(msg)
		return key.Sign(rand.Reader, digest[:], crypto.SHA256)
	case extension.RSAPSSWithSHA256:
		digest := sha256Sum(msg)
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}
		return key.Sign(rand.Reader, digest[:], opts)
	case extension.Ed25519:
		return key.Sign(rand.Reader, msg, crypto.Hash(0))
	default:
		return nil, fmt.Errorf("signaturehash: unsupported scheme %#04x", uint16(scheme))
	}
}

// Verify checks a CertificateVerify signature against a public key.
func Verify(scheme extension.SignatureScheme, pub crypto.PublicKey, msg, sig []byte) error {
	switch scheme {
	case extension.ECDSAWithP256AndSHA256:
		key, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return fmt.Errorf("signaturehash: key type mismatch for %#04x", uint16(scheme))
		}
		digest := sha256Sum(msg)
		if !ecdsa.VerifyASN1(key, digest[:], sig) {
			return errVerifyFailed
		}
		return nil
	case extension.RSAPSSWithSHA256:
		key, ok := pub.(*rsa.PublicKey)
		if !ok {
			return fmt.Errorf("signaturehash: key type mismatch for %#04x", uint16(scheme))
		}
		digest := sha256Sum(msg)
		opts := &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto, Hash: crypto.SHA256}
		return rsa.VerifyPSS(key, crypto.SHA256, digest[:], sig, opts)
	case extension.Ed25519:
		key, ok := pub.(ed25519.PublicKey)
		if !ok {
			return fmt.Errorf("signaturehash: key type mismatch for %#04x", uint16(scheme))
		}
		if !ed25519.Verify(key, msg, sig) {
			return errVerifyFailed
		}
		return nil
	default:
		return fmt.Errorf("signaturehash: unsupported scheme %#04x", uint16(scheme))
	}
}

// Negotiate picks the first locally-supported scheme present in peer's
// advertised list, preserving our preference order.
func Negotiate(supported, peer []extension.SignatureScheme) (extension.SignatureScheme, bool) {
	peerSet := make(map[extension.SignatureScheme]struct{}, len(peer))
	for _, s := range peer {
		peerSet[s] = struct{}{}
	}
	for _, s := range supported {
		if _, ok := peerSet[s]; ok {
			return s, true
		}
	}
	return 0, false
}
