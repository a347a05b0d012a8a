// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

// MessageServerHelloDone closes the server's first flight in TLS 1.2;
// it has no body and no TLS 1.3 equivalent (EncryptedExtensions plus
// an implicit flight boundary replace it).
//
// https://tools.ietf.org/html/rfc5246#section-7.4.5
type MessageServerHelloDone struct{}

// Type implements Message.
func (m MessageServerHelloDone) Type() Type { return TypeServerHelloDone }

// Marshal encodes the (empty) ServerHelloDone.
func (m *MessageServerHelloDone) Marshal() ([]byte, error) {
	return []byte{}, nil
}

// Unmarshal decodes the (empty) ServerHelloDone.
func (m *MessageServerHelloDone) Unmarshal(data []byte) error {
	if len(data) != 0 {
		return errLengthMismatch
	}
	return nil
}
