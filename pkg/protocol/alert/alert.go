// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package alert implements the TLS Alert protocol content type,
// RFC 5246 Section 7.2 and RFC 8446 Section 6.
package alert

import "github.com/transportsec/tlscore/pkg/protocol"

// Level is the severity of an Alert: warning or fatal.
type Level uint8

// Alert levels.
const (
	Warning Level = 1
	Fatal   Level = 2
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "Warning"
	case Fatal:
		return "Fatal"
	default:
		return "Invalid"
	}
}

// Description is the one-byte alert code. The core's error taxonomy
// (see the root package's errors.go) maps every fatal internal error
// to one of these.
type Description uint8

// Alert descriptions from the table in spec.md §7.
const (
	CloseNotify            Description = 0
	UnexpectedMessage      Description = 10
	BadRecordMac           Description = 20
	RecordOverflow         Description = 22
	HandshakeFailure       Description = 40
	BadCertificate         Description = 42
	CertificateUnknown     Description = 46
	DecodeError            Description = 50
	DecryptError           Description = 51
	ProtocolVersion        Description = 70
	InsufficientSecurity   Description = 71
	InternalError          Description = 80
	UserCanceled           Description = 90
	NoApplicationProtocol  Description = 120
)

func (d Description) String() string {
	switch d {
	case CloseNotify:
		return "CloseNotify"
	case UnexpectedMessage:
		return "UnexpectedMessage"
	case BadRecordMac:
		return "BadRecordMac"
	case RecordOverflow:
		return "RecordOverflow"
	case HandshakeFailure:
		return "HandshakeFailure"
	case BadCertificate:
		return "BadCertificate"
	case CertificateUnknown:
		return "CertificateUnknown"
	case DecodeError:
		return "DecodeError"
	case DecryptError:
		return "DecryptError"
	case ProtocolVersion:
		return "ProtocolVersion"
	case InsufficientSecurity:
		return "InsufficientSecurity"
	case InternalError:
		return "InternalError"
	case UserCanceled:
		return "UserCanceled"
	case NoApplicationProtocol:
		return "NoApplicationProtocol"
	default:
		return "Unknown"
	}
}

// Alert is the two-byte Alert record body.
type Alert struct {
	Level       Level
	Description Description
}

// ContentType is the record content type an Alert rides in.
func (a *Alert) ContentType() protocol.ContentType { return protocol.ContentTypeAlert }

func (a *Alert) String() string {
	return "Alert " + a.Level.String() + ": " + a.Description.String()
}

// Marshal encodes the two-byte Alert body.
func (a *Alert) Marshal() ([]byte, error) {
	return []byte{byte(a.Level), byte(a.Description)}, nil
}

// Unmarshal decodes the two-byte Alert body.
func (a *Alert) Unmarshal(data []byte) error {
	if len(data) != 2 {
		return errBufferTooSmall
	}
	a.Level = Level(data[0])
	a.Description = Description(data[1])
	return nil
}
