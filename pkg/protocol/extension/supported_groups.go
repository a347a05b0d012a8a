// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// NamedGroup identifies a key-exchange group: an elliptic curve or
// finite-field group, RFC 8446 §4.2.7 / RFC 8422.
type NamedGroup uint16

// Named groups this engine negotiates.
const (
	X25519    NamedGroup = 0x001d
	Secp256r1 NamedGroup = 0x0017
	Secp384r1 NamedGroup = 0x0018
)

// SupportedGroups implements supported_groups (formerly
// elliptic_curves), RFC 8422 §5.1.1 / RFC 8446 §4.2.7.
type SupportedGroups struct {
	Groups []NamedGroup
}

// ID implements Extension.
func (s *SupportedGroups) ID() ID { return IDSupportedGroups }

// Marshal encodes the NamedGroupList.
func (s *SupportedGroups) Marshal() ([]byte, error) {
	body := make([]byte, 2, 2+2*len(s.Groups))
	binary.BigEndian.PutUint16(body, uint16(2*len(s.Groups)))
	for _, g := range s.Groups {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(g))
		body = append(body, b...)
	}
	return body, nil
}

// Unmarshal decodes the NamedGroupList.
func (s *SupportedGroups) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return errBufferTooSmall
	}
	n := int(binary.BigEndian.Uint16(data))
	if len(data) < 2+n || n%2 != 0 {
		return errBufferTooSmall
	}
	for i := 2; i < 2+n; i += 2 {
		s.Groups = append(s.Groups, NamedGroup(binary.BigEndian.Uint16(data[i:])))
	}
	return nil
}
