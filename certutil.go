// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import "crypto/x509"

// parseLeafPublicKey extracts the public key from a peer's leaf
// certificate so CertificateVerify's signature can be checked. This is
// the one piece of X.509 parsing this engine does unconditionally:
// spec.md §1 puts chain *validation* policy behind ChainValidator, but
// the handshake itself cannot be authenticated without the key inside
// the certificate the peer just sent.
func parseLeafPublicKey(der []byte) (any, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return cert.PublicKey, nil
}
