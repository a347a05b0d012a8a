// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"encoding/binary"

	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/extension"
)

// MessageClientHello is the first message a client sends. It carries
// a superset of the TLS 1.2 and TLS 1.3 fields; which extensions are
// present determines which version the server may select.
//
// https://tools.ietf.org/html/rfc5246#section-7.4.1.2
// https://tools.ietf.org/html/rfc8446#section-4.1.2
type MessageClientHello struct {
	Version Version0
	Random  Random

	SessionID []byte

	CipherSuiteIDs     []uint16
	CompressionMethods []*protocol.CompressionMethod
	Extensions         []extension.Extension
}

// Version0 is an alias kept for readability; ClientHello's legacy
// version is the same wire shape as protocol.Version.
type Version0 = protocol.Version

// Type implements Message.
func (m MessageClientHello) Type() Type { return TypeClientHello }

// Marshal encodes the ClientHello.
func (m *MessageClientHello) Marshal() ([]byte, error) {
	out := make([]byte, 2+RandomLength)
	out[0] = m.Version.Major
	out[1] = m.Version.Minor
	rand := m.Random.MarshalFixed()
	copy(out[2:], rand[:])

	out = append(out, byte(len(m.SessionID)))
	out = append(out, m.SessionID...)

	cs := make([]byte, 2+2*len(m.CipherSuiteIDs))
	binary.BigEndian.PutUint16(cs, uint16(2*len(m.CipherSuiteIDs)))
	for i, id := range m.CipherSuiteIDs {
		binary.BigEndian.PutUint16(cs[2+2*i:], id)
	}
	out = append(out, cs...)

	out = append(out, byte(len(m.CompressionMethods)))
	for _, c := range m.CompressionMethods {
		out = append(out, byte(c.ID))
	}

	extensions, err := extension.Marshal(m.Extensions)
	if err != nil {
		return nil, err
	}
	return append(out, extensions...), nil
}

// Unmarshal decodes the ClientHello.
func (m *MessageClientHello) Unmarshal(data []byte) error {
	if len(data) < 2+RandomLength+1 {
		return errBufferTooSmall
	}
	m.Version.Major = data[0]
	m.Version.Minor = data[1]

	var random [RandomLength]byte
	copy(random[:], data[2:])
	m.Random.UnmarshalFixed(random)

	offset := 2 + RandomLength
	n := int(data[offset])
	offset++
	if len(data) < offset+n {
		return errBufferTooSmall
	}
	m.SessionID = append([]byte{}, data[offset:offset+n]...)
	offset += n

	if len(data) < offset+2 {
		return errBufferTooSmall
	}
	csLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if len(data) < offset+csLen || csLen%2 != 0 {
		return errBufferTooSmall
	}
	for i := offset; i < offset+csLen; i += 2 {
		m.CipherSuiteIDs = append(m.CipherSuiteIDs, binary.BigEndian.Uint16(data[i:]))
	}
	offset += csLen

	if len(data) < offset+1 {
		return errBufferTooSmall
	}
	cmLen := int(data[offset])
	offset++
	if len(data) < offset+cmLen {
		return errBufferTooSmall
	}
	methods := protocol.CompressionMethods()
	for _, b := range data[offset : offset+cmLen] {
		if cm, ok := methods[protocol.CompressionMethodID(b)]; ok {
			m.CompressionMethods = append(m.CompressionMethods, cm)
		}
	}
	offset += cmLen

	if len(data) <= offset {
		return nil
	}
	exts, err := extension.Unmarshal(data[offset:])
	if err != nil {
		return err
	}
	m.Extensions = exts
	return nil
}
