// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// SignatureScheme identifies a (signature algorithm, hash) pair used
// for CertificateVerify and (in TLS 1.2) ServerKeyExchange signing.
type SignatureScheme uint16

// Schemes this engine negotiates.
const (
	ECDSAWithP256AndSHA256 SignatureScheme = 0x0403
	Ed25519                SignatureScheme = 0x0807
	RSAPSSWithSHA256       SignatureScheme = 0x0804
)

// SignatureAlgorithms implements signature_algorithms, RFC 8446 §4.2.3.
type SignatureAlgorithms struct {
	Schemes []SignatureScheme
}

// ID implements Extension.
func (s *SignatureAlgorithms) ID() ID { return IDSignatureAlgorithms }

// Marshal encodes supported_signature_algorithms.
func (s *SignatureAlgorithms) Marshal() ([]byte, error) {
	body := make([]byte, 2, 2+2*len(s.Schemes))
	binary.BigEndian.PutUint16(body, uint16(2*len(s.Schemes)))
	for _, sc := range s.Schemes {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(sc))
		body = append(body, b...)
	}
	return body, nil
}

// Unmarshal decodes supported_signature_algorithms.
func (s *SignatureAlgorithms) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return errBufferTooSmall
	}
	n := int(binary.BigEndian.Uint16(data))
	if len(data) < 2+n || n%2 != 0 {
		return errBufferTooSmall
	}
	for i := 2; i < 2+n; i += 2 {
		s.Schemes = append(s.Schemes, SignatureScheme(binary.BigEndian.Uint16(data[i:])))
	}
	return nil
}
