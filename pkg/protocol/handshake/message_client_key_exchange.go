// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

// MessageClientKeyExchange carries the client's half of the TLS 1.2
// key exchange: an ephemeral EC public key for (EC)DHE suites. It has
// no TLS 1.3 equivalent (key_share on ClientHello replaces it).
//
// https://tools.ietf.org/html/rfc5246#section-7.4.7
type MessageClientKeyExchange struct {
	PublicKey []byte
}

// Type implements Message.
func (m MessageClientKeyExchange) Type() Type { return TypeClientKeyExchange }

// Marshal encodes the ClientKeyExchange.
func (m *MessageClientKeyExchange) Marshal() ([]byte, error) {
	out := make([]byte, 1, 1+len(m.PublicKey))
	out[0] = byte(len(m.PublicKey))
	return append(out, m.PublicKey...), nil
}

// Unmarshal decodes the ClientKeyExchange.
func (m *MessageClientKeyExchange) Unmarshal(data []byte) error {
	if len(data) < 1 {
		return errBufferTooSmall
	}
	n := int(data[0])
	if len(data) < 1+n {
		return errBufferTooSmall
	}
	m.PublicKey = append([]byte{}, data[1:1+n]...)
	return nil
}
