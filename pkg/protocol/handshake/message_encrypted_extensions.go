// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import "github.com/transportsec/tlscore/pkg/protocol/extension"

// MessageEncryptedExtensions carries ServerHello extensions that need
// not be sent in the clear. It is TLS 1.3 only; in TLS 1.2 these
// extensions ride directly on ServerHello.
//
// https://tools.ietf.org/html/rfc8446#section-4.3.1
type MessageEncryptedExtensions struct {
	Extensions []extension.Extension
}

// Type implements Message.
func (m MessageEncryptedExtensions) Type() Type { return TypeEncryptedExtensions }

// Marshal encodes the EncryptedExtensions.
func (m *MessageEncryptedExtensions) Marshal() ([]byte, error) {
	return extension.Marshal(m.Extensions)
}

// Unmarshal decodes the EncryptedExtensions.
func (m *MessageEncryptedExtensions) Unmarshal(data []byte) error {
	exts, err := extension.Unmarshal(data)
	if err != nil {
		return err
	}
	m.Extensions = exts
	return nil
}
