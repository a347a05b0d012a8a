// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package pemutil loads PEM-encoded certificate chains and private
// keys from disk into tlscore.Certificate, the small bit of file I/O
// the library itself deliberately has no opinion about (spec.md §1
// keeps X.509 handling out of the core) but the example CLI drivers
// need to turn "-cert server.pem -key server-key.pem" into something
// ClientParams/ServerParams can carry.
package pemutil

import (
	"crypto"
	"crypto/tls"
	"fmt"

	"github.com/transportsec/tlscore"
)

// LoadCertificate reads a PEM certificate chain and its PEM private
// key, the same pair crypto/tls.LoadX509KeyPair accepts, and adapts
// them to tlscore.Certificate.
func LoadCertificate(certFile, keyFile string) (*tlscore.Certificate, error) {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("pemutil: load key pair: %w", err)
	}
	signer, ok := pair.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("pemutil: private key in %s is not a crypto.Signer", keyFile)
	}
	return &tlscore.Certificate{
		Chain:      pair.Certificate,
		PrivateKey: signer,
	}, nil
}
