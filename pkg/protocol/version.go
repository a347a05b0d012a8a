// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package protocol implements the wire-level types shared by TLS 1.2
// and TLS 1.3: record headers, content types and protocol versions.
package protocol

// Version is the two-byte legacy version field carried on the wire by
// every record and by the TLS 1.2 ClientHello/ServerHello. TLS 1.3
// negotiates its real version out-of-band via the supported_versions
// extension and always sends legacy_version = {3, 3} on the wire.
type Version struct {
	Major, Minor uint8
}

// Version1_2 is the wire value {3, 3}, used both as TLS 1.2's real
// version and as TLS 1.3's legacy_version sentinel.
var Version1_2 = Version{Major: 0x03, Minor: 0x03} //nolint:gochecknoglobals

// Version1_0 is {3, 1}, the legacy_record_version some stacks still
// send in the first ClientHello record header for middlebox compatibility.
var Version1_0 = Version{Major: 0x03, Minor: 0x01} //nolint:gochecknoglobals

// Equal reports whether two versions are the same.
func (v Version) Equal(o Version) bool {
	return v.Major == o.Major && v.Minor == o.Minor
}

// NegotiatedVersion is the real, negotiated protocol version of a
// connection, distinct from the wire-level legacy Version above.
type NegotiatedVersion uint16

const (
	// VersionUnknown marks a Context before ServerHello is processed.
	VersionUnknown NegotiatedVersion = 0
	// VersionTLS12 is TLS 1.2, RFC 5246.
	VersionTLS12 NegotiatedVersion = 0x0303
	// VersionTLS13 is TLS 1.3, RFC 8446.
	VersionTLS13 NegotiatedVersion = 0x0304
)

func (v NegotiatedVersion) String() string {
	switch v {
	case VersionTLS12:
		return "TLS 1.2"
	case VersionTLS13:
		return "TLS 1.3"
	default:
		return "unknown"
	}
}
