// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package elliptic abstracts the named groups a ClientHello/ServerHello
// key_share can negotiate (RFC 8446 §4.2.8, RFC 8422 for TLS 1.2), so
// the handshake FSM never branches on curve identity directly.
package elliptic

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"

	"github.com/transportsec/tlscore/pkg/protocol/extension"
)

// Curve performs the key agreement step for one named group.
type Curve interface {
	// GenerateKeypair returns a fresh private scalar and its public
	// share, ready to go on the wire in a KeyShareEntry.
	GenerateKeypair() (private, public []byte, err error)

	// ECDH computes the shared secret from our private scalar and the
	// peer's public share.
	ECDH(private, peerPublic []byte) ([]byte, error)
}

// Curves maps supported_groups identifiers to their implementation.
//
//nolint:gochecknoglobals
var Curves = map[extension.NamedGroup]Curve{
	extension.X25519:    x25519Curve{},
	extension.Secp256r1: ecdhCurve{c: ecdh.P256()},
	extension.Secp384r1: ecdhCurve{c: ecdh.P384()},
}

type x25519Curve struct{}

func (x25519Curve) GenerateKeypair() ([]byte, []byte, error) {
	var private [32]byte
	if _, err := rand.Read(private[:]); err != nil {
		return nil, nil, err
	}
	public, err := curve25519.X25519(private[:], curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return private[:], public, nil
}

func (x25519Curve) ECDH(private, peerPublic []byte) ([]byte, error) {
	return curve25519.X25519(private, peerPublic)
}

type ecdhCurve struct {
	c ecdh.Curve
}

func (e ecdhCurve) GenerateKeypair() ([]byte, []byte, error) {
	key, err := e.c.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return key.Bytes(), key.PublicKey().Bytes(), nil
}

func (e ecdhCurve) ECDH(private, peerPublic []byte) ([]byte, error) {
	priv, err := e.c.NewPrivateKey(private)
	if err != nil {
		return nil, fmt.Errorf("elliptic: invalid private key: %w", err)
	}
	pub, err := e.c.NewPublicKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("elliptic: invalid peer public key: %w", err)
	}
	return priv.ECDH(pub)
}
