// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

// KeyUpdateRequest signals whether the peer receiving a KeyUpdate
// must itself respond with a KeyUpdate of its own.
type KeyUpdateRequest byte

// Defined KeyUpdateRequest values (RFC 8446 §4.6.3).
const (
	KeyUpdateNotRequested KeyUpdateRequest = 0
	KeyUpdateRequested    KeyUpdateRequest = 1
)

// MessageKeyUpdate drives the TLS 1.3 traffic-secret ratchet
// (spec.md §4.6's rekey operation). It has no TLS 1.2 equivalent.
//
// https://tools.ietf.org/html/rfc8446#section-4.6.3
type MessageKeyUpdate struct {
	RequestUpdate KeyUpdateRequest
}

// Type implements Message.
func (m MessageKeyUpdate) Type() Type { return TypeKeyUpdate }

// Marshal encodes the KeyUpdate.
func (m *MessageKeyUpdate) Marshal() ([]byte, error) {
	return []byte{byte(m.RequestUpdate)}, nil
}

// Unmarshal decodes the KeyUpdate.
func (m *MessageKeyUpdate) Unmarshal(data []byte) error {
	if len(data) != 1 {
		return errLengthMismatch
	}
	m.RequestUpdate = KeyUpdateRequest(data[0])
	return nil
}
