// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"errors"
	"fmt"

	"github.com/transportsec/tlscore/pkg/protocol/alert"
)

// Kind classifies a connection-ending condition and carries the alert
// it maps to, per the error taxonomy table.
type Kind int

// Error kinds and their fatal/warning disposition.
const (
	KindDecodeError Kind = iota
	KindUnexpectedMessage
	KindBadRecordMac
	KindHandshakeFailure
	KindCertificateInvalid
	KindCertificateUnknown
	KindDecryptError
	KindProtocolVersion
	KindInsufficientSecurity
	KindInternalError
	KindUserCanceled
	KindCloseNotify
	KindRecordOverflow
	KindSeqOverflow
	KindConnectionClosed
)

//nolint:gochecknoglobals
var kindAlert = map[Kind]alert.Description{
	KindDecodeError:          alert.DecodeError,
	KindUnexpectedMessage:    alert.UnexpectedMessage,
	KindBadRecordMac:         alert.BadRecordMac,
	KindHandshakeFailure:     alert.HandshakeFailure,
	KindCertificateInvalid:   alert.BadCertificate,
	KindCertificateUnknown:   alert.CertificateUnknown,
	KindDecryptError:         alert.DecryptError,
	KindProtocolVersion:      alert.ProtocolVersion,
	KindInsufficientSecurity: alert.InsufficientSecurity,
	KindInternalError:        alert.InternalError,
	KindUserCanceled:         alert.UserCanceled,
	KindCloseNotify:          alert.CloseNotify,
	KindRecordOverflow:       alert.RecordOverflow,
	KindSeqOverflow:          alert.InternalError,
	KindConnectionClosed:     alert.InternalError,
}

func (k Kind) String() string {
	switch k {
	case KindDecodeError:
		return "DecodeError"
	case KindUnexpectedMessage:
		return "UnexpectedMessage"
	case KindBadRecordMac:
		return "BadRecordMac"
	case KindHandshakeFailure:
		return "HandshakeFailure"
	case KindCertificateInvalid:
		return "CertificateInvalid"
	case KindCertificateUnknown:
		return "CertificateUnknown"
	case KindDecryptError:
		return "DecryptError"
	case KindProtocolVersion:
		return "ProtocolVersion"
	case KindInsufficientSecurity:
		return "InsufficientSecurity"
	case KindInternalError:
		return "InternalError"
	case KindUserCanceled:
		return "UserCanceled"
	case KindCloseNotify:
		return "CloseNotify"
	case KindRecordOverflow:
		return "RecordOverflow"
	case KindSeqOverflow:
		return "SeqOverflow"
	case KindConnectionClosed:
		return "ConnectionClosed"
	default:
		return "Unknown"
	}
}

// Alert returns the alert this Kind maps to, per spec.md §7.
func (k Kind) Alert() alert.Description {
	return kindAlert[k]
}

// IsFatal reports whether this Kind terminates the connection.
// UserCanceled is the one warning-level kind in the taxonomy;
// CloseNotify is graceful rather than fatal.
func (k Kind) IsFatal() bool {
	return k != KindUserCanceled && k != KindCloseNotify
}

// Error is the core's error type: every operation that can fail with a
// protocol-level condition returns one of these, wrapping the cause.
type Error struct {
	Kind Kind
	Err  error
}

// NewError builds an Error of the given Kind wrapping cause (which may
// be nil).
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("tlscore: %s", e.Kind)
	}
	return fmt.Sprintf("tlscore: %s: %v", e.Kind, e.Err)
}

// Unwrap lets errors.Is/As reach the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// ErrConnectionClosed is returned once the connection has been marked
// EOF/closed, per spec.md §5's cancellation rule.
var ErrConnectionClosed = NewError(KindConnectionClosed, errors.New("connection closed"))

// ErrSeqOverflow is returned instead of wrapping a 64-bit sequence
// number, per spec.md §4.2's SeqOverflow rule.
var ErrSeqOverflow = NewError(KindSeqOverflow, errors.New("sequence number would overflow"))
