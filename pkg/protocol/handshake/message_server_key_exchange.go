// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import "encoding/binary"

// MessageServerKeyExchange carries the server's ephemeral key exchange
// parameters for TLS 1.2 (EC)DHE cipher suites along with the signature
// over them. It has no TLS 1.3 equivalent: TLS 1.3 folds key exchange
// into the key_share extension on ServerHello.
//
// https://tools.ietf.org/html/rfc5246#section-7.4.3
type MessageServerKeyExchange struct {
	// NamedCurve is the EC curve as negotiated via supported_groups;
	// we only support the named_curve ECParameters form (curve_type=3).
	NamedCurve uint16
	PublicKey  []byte

	SignatureHashAlgorithm uint16
	Signature              []byte
}

// Type implements Message.
func (m MessageServerKeyExchange) Type() Type { return TypeServerKeyExchange }

const ecCurveTypeNamedCurve = 3

// Marshal encodes the ServerKeyExchange.
func (m *MessageServerKeyExchange) Marshal() ([]byte, error) {
	out := []byte{ecCurveTypeNamedCurve, byte(m.NamedCurve >> 8), byte(m.NamedCurve)}
	out = append(out, byte(len(m.PublicKey)))
	out = append(out, m.PublicKey...)

	sigAlg := make([]byte, 2)
	binary.BigEndian.PutUint16(sigAlg, m.SignatureHashAlgorithm)
	out = append(out, sigAlg...)

	sigLen := make([]byte, 2)
	binary.BigEndian.PutUint16(sigLen, uint16(len(m.Signature)))
	out = append(out, sigLen...)
	return append(out, m.Signature...), nil
}

// Unmarshal decodes the ServerKeyExchange.
func (m *MessageServerKeyExchange) Unmarshal(data []byte) error {
	if len(data) < 4 {
		return errBufferTooSmall
	}
	if data[0] != ecCurveTypeNamedCurve {
		return errUnknownHandshakeType
	}
	m.NamedCurve = binary.BigEndian.Uint16(data[1:3])
	n := int(data[3])
	offset := 4
	if len(data) < offset+n {
		return errBufferTooSmall
	}
	m.PublicKey = append([]byte{}, data[offset:offset+n]...)
	offset += n

	if len(data) < offset+4 {
		return errBufferTooSmall
	}
	m.SignatureHashAlgorithm = binary.BigEndian.Uint16(data[offset:])
	offset += 2
	sigLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if len(data) < offset+sigLen {
		return errBufferTooSmall
	}
	m.Signature = append([]byte{}, data[offset:offset+sigLen]...)
	return nil
}
