// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"encoding/binary"

	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/extension"
	"github.com/zmap/zcrypto/tls"
)

// MessageServerHello is sent in response to a ClientHello
// message when it was able to find an acceptable set of algorithms.
// If it cannot find such a match, it will respond with a handshake
// failure alert.
//
// A TLS 1.3 ServerHello and HelloRetryRequest share this exact wire
// shape (RFC 8446 §4.1.3/§4.1.4); HelloRetryRequest is distinguished
// only by Random being the fixed SHA-256("HelloRetryRequest") value.
//
// https://tools.ietf.org/html/rfc5246#section-7.4.1.3
// https://tools.ietf.org/html/rfc8446#section-4.1.3
type MessageServerHello struct {
	Version protocol.Version
	Random  Random

	SessionID []byte

	CipherSuiteID     *uint16
	CompressionMethod *protocol.CompressionMethod
	Extensions        []extension.Extension
}

const messageServerHelloVariableWidthStart = 2 + RandomLength

// HelloRetryRequestRandom is the fixed Random value RFC 8446 §4.1.3
// uses to flag a ServerHello as a HelloRetryRequest.
var HelloRetryRequestRandom = [RandomLength]byte{ //nolint:gochecknoglobals
	0xCF, 0x21, 0xAD, 0x74, 0xE5, 0x9A, 0x61, 0x11, 0xBE, 0x1D, 0x8C, 0x02, 0x1E, 0x65, 0xB8, 0x91,
	0xC2, 0xA2, 0x11, 0x16, 0x7A, 0xBB, 0x8C, 0x5E, 0x07, 0x9E, 0x09, 0xE2, 0xC8, 0xA8, 0x33, 0x9C,
}

// IsHelloRetryRequest reports whether this ServerHello is actually a
// HelloRetryRequest (spec.md §4.4's HRR transcript substitution rule
// applies only then).
func (m *MessageServerHello) IsHelloRetryRequest() bool {
	fixed := m.Random.MarshalFixed()
	return fixed == HelloRetryRequestRandom
}

// DowngradeSentinelTLS12 is the last 8 bytes RFC 8446 §4.1.3 requires
// a TLS 1.3-capable server to write into Random when it negotiates
// TLS 1.2.
var DowngradeSentinelTLS12 = [8]byte{0x44, 0x4F, 0x57, 0x4E, 0x47, 0x52, 0x44, 0x01} //nolint:gochecknoglobals

// DowngradeSentinelTLS11 is the last 8 bytes RFC 8446 §4.1.3 requires
// a TLS 1.3-capable server to write into Random when it negotiates
// TLS 1.1 or below.
var DowngradeSentinelTLS11 = [8]byte{0x44, 0x4F, 0x57, 0x4E, 0x47, 0x52, 0x44, 0x00} //nolint:gochecknoglobals

// SetDowngradeSentinel overwrites Random's last 8 bytes with sentinel.
func (m *MessageServerHello) SetDowngradeSentinel(sentinel [8]byte) {
	fixed := m.Random.MarshalFixed()
	copy(fixed[RandomLength-8:], sentinel[:])
	m.Random.UnmarshalFixed(fixed)
}

// DowngradeSentinel reports whether Random's last 8 bytes match either
// downgrade sentinel RFC 8446 §4.1.3 defines, and which one.
func (m *MessageServerHello) DowngradeSentinel() (sentinel [8]byte, present bool) {
	fixed := m.Random.MarshalFixed()
	var tail [8]byte
	copy(tail[:], fixed[RandomLength-8:])
	if tail == DowngradeSentinelTLS12 || tail == DowngradeSentinelTLS11 {
		return tail, true
	}
	return tail, false
}

// Type returns the Handshake Type
func (m MessageServerHello) Type() Type {
	return TypeServerHello
}

// Marshal encodes the Handshake
func (m *MessageServerHello) Marshal() ([]byte, error) {
	if m.CipherSuiteID == nil {
		return nil, errCipherSuiteUnset
	} else if m.CompressionMethod == nil {
		return nil, errCompressionMethodUnset
	}

	out := make([]byte, messageServerHelloVariableWidthStart)
	out[0] = m.Version.Major
	out[1] = m.Version.Minor

	rand := m.Random.MarshalFixed()
	copy(out[2:], rand[:])

	out = append(out, byte(len(m.SessionID)))
	out = append(out, m.SessionID...)

	out = append(out, []byte{0x00, 0x00}...)
	binary.BigEndian.PutUint16(out[len(out)-2:], *m.CipherSuiteID)

	out = append(out, byte(m.CompressionMethod.ID))

	extensions, err := extension.Marshal(m.Extensions)
	if err != nil {
		return nil, err
	}

	return append(out, extensions...), nil
}

// Unmarshal populates the message from encoded data
func (m *MessageServerHello) Unmarshal(data []byte) error {
	if len(data) < 2+RandomLength {
		return errBufferTooSmall
	}

	m.Version.Major = data[0]
	m.Version.Minor = data[1]

	var random [RandomLength]byte
	copy(random[:], data[2:])
	m.Random.UnmarshalFixed(random)

	currOffset := messageServerHelloVariableWidthStart
	currOffset++
	if len(data) <= currOffset {
		return errBufferTooSmall
	}

	n := int(data[currOffset-1])
	if len(data) <= currOffset+n {
		return errBufferTooSmall
	}
	m.SessionID = append([]byte{}, data[currOffset:currOffset+n]...)
	currOffset += len(m.SessionID)

	if len(data) < currOffset+2 {
		return errBufferTooSmall
	}
	m.CipherSuiteID = new(uint16)
	*m.CipherSuiteID = binary.BigEndian.Uint16(data[currOffset:])
	currOffset += 2

	if len(data) <= currOffset {
		return errBufferTooSmall
	}
	if compressionMethod, ok := protocol.CompressionMethods()[protocol.CompressionMethodID(data[currOffset])]; ok {
		m.CompressionMethod = compressionMethod
		currOffset++
	} else {
		return errInvalidCompressionMethod
	}

	if len(data) <= currOffset {
		m.Extensions = []extension.Extension{}
		return nil
	}

	extensions, err := extension.Unmarshal(data[currOffset:])
	if err != nil {
		return err
	}
	m.Extensions = extensions
	return nil
}

// MakeLog renders this ServerHello the way zcrypto's fingerprinting
// scanners expect, reusing the teacher's diagnostic-log convention.
func (m *MessageServerHello) MakeLog() *tls.ServerHello {
	ret := &tls.ServerHello{}

	ret.Version = tls.TLSVersion((uint16(m.Version.Major) << 8) | uint16(m.Version.Minor))

	ret.Random = make([]byte, RandomLength)
	binary.BigEndian.PutUint32(ret.Random[:4], uint32(m.Random.GMTUnixTime.Unix()))
	copy(ret.Random[4:], m.Random.RandomBytes[:])

	ret.SessionID = make([]byte, len(m.SessionID))
	copy(ret.SessionID, m.SessionID)

	if m.CipherSuiteID != nil {
		ret.CipherSuite = tls.CipherSuiteID(*m.CipherSuiteID)
	}

	if m.CompressionMethod != nil {
		ret.CompressionMethod = uint8(m.CompressionMethod.ID)
	}

	for _, anyExt := range m.Extensions {
		switch e := anyExt.(type) {
		case *extension.ALPN:
			if len(e.ProtocolNameList) > 0 {
				ret.AlpnProtocol = e.ProtocolNameList[0]
			}
		case *extension.RenegotiationInfo:
			ret.SecureRenegotiation = true
		case *extension.UseExtendedMasterSecret:
			ret.ExtendedMasterSecret = e.Supported

		// unimplemented in zcrypto
		case *extension.SupportedPointFormats:
		default:
		}
	}
	return ret
}
