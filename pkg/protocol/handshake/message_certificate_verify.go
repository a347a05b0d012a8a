// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import "encoding/binary"

// MessageCertificateVerify proves possession of the private key
// matching the certificate just sent, by signing the running
// handshake transcript. Present in both TLS 1.2 and TLS 1.3, but the
// data actually signed differs (spec.md §4.3's transcript rules).
//
// https://tools.ietf.org/html/rfc5246#section-7.4.8
// https://tools.ietf.org/html/rfc8446#section-4.4.3
type MessageCertificateVerify struct {
	AlgorithmSignature uint16
	Signature          []byte
}

// Type implements Message.
func (m MessageCertificateVerify) Type() Type { return TypeCertificateVerify }

// Marshal encodes the CertificateVerify.
func (m *MessageCertificateVerify) Marshal() ([]byte, error) {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, m.AlgorithmSignature)

	sigLen := make([]byte, 2)
	binary.BigEndian.PutUint16(sigLen, uint16(len(m.Signature)))
	out = append(out, sigLen...)
	return append(out, m.Signature...), nil
}

// Unmarshal decodes the CertificateVerify.
func (m *MessageCertificateVerify) Unmarshal(data []byte) error {
	if len(data) < 4 {
		return errBufferTooSmall
	}
	m.AlgorithmSignature = binary.BigEndian.Uint16(data)
	sigLen := int(binary.BigEndian.Uint16(data[2:]))
	if len(data) < 4+sigLen {
		return errBufferTooSmall
	}
	m.Signature = append([]byte{}, data[4:4+sigLen]...)
	return nil
}
