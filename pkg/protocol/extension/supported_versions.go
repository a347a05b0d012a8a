// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// SupportedVersions implements supported_versions, RFC 8446 §4.2.1.
// In a ClientHello it lists candidate versions; in a ServerHello (or
// HelloRetryRequest) it names the single selected version.
type SupportedVersions struct {
	IsClientHello bool
	Versions      []uint16 // ClientHello form
	SelectedVersion uint16 // ServerHello form
}

// ID implements Extension.
func (s *SupportedVersions) ID() ID { return IDSupportedVersions }

// Marshal encodes SupportedVersions.
func (s *SupportedVersions) Marshal() ([]byte, error) {
	if !s.IsClientHello {
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, s.SelectedVersion)
		return out, nil
	}
	body := make([]byte, 1, 1+2*len(s.Versions))
	body[0] = byte(2 * len(s.Versions))
	for _, v := range s.Versions {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, v)
		body = append(body, b...)
	}
	return body, nil
}

// Unmarshal decodes SupportedVersions, detecting ClientHello vs
// ServerHello form from the encoded length.
func (s *SupportedVersions) Unmarshal(data []byte) error {
	if len(data) == 2 {
		s.IsClientHello = false
		s.SelectedVersion = binary.BigEndian.Uint16(data)
		return nil
	}
	if len(data) < 1 {
		return errBufferTooSmall
	}
	n := int(data[0])
	if len(data) < 1+n || n%2 != 0 {
		return errBufferTooSmall
	}
	s.IsClientHello = true
	for i := 1; i < 1+n; i += 2 {
		s.Versions = append(s.Versions, binary.BigEndian.Uint16(data[i:]))
	}
	return nil
}
