// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"errors"
	"strings"
	"testing"

	"github.com/transportsec/tlscore/pkg/protocol/alert"
)

// TestKindAlertMapping pins every Kind to the alert description
// spec.md §7's error taxonomy assigns it, so a change to one without
// the other is caught here rather than at a TLS peer.
func TestKindAlertMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want alert.Description
	}{
		{KindDecodeError, alert.DecodeError},
		{KindUnexpectedMessage, alert.UnexpectedMessage},
		{KindBadRecordMac, alert.BadRecordMac},
		{KindHandshakeFailure, alert.HandshakeFailure},
		{KindCertificateInvalid, alert.BadCertificate},
		{KindCertificateUnknown, alert.CertificateUnknown},
		{KindDecryptError, alert.DecryptError},
		{KindProtocolVersion, alert.ProtocolVersion},
		{KindInsufficientSecurity, alert.InsufficientSecurity},
		{KindInternalError, alert.InternalError},
		{KindUserCanceled, alert.UserCanceled},
		{KindCloseNotify, alert.CloseNotify},
		{KindRecordOverflow, alert.RecordOverflow},
	}
	for _, tc := range cases {
		if got := tc.kind.Alert(); got != tc.want {
			t.Errorf("%s.Alert() = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

// TestIsFatalExceptions checks the taxonomy's two non-fatal Kinds:
// UserCanceled (a warning alert) and CloseNotify (a graceful close),
// everything else terminates the connection.
func TestIsFatalExceptions(t *testing.T) {
	if KindUserCanceled.IsFatal() {
		t.Error("KindUserCanceled must not be fatal")
	}
	if KindCloseNotify.IsFatal() {
		t.Error("KindCloseNotify must not be fatal")
	}
	for _, k := range []Kind{
		KindDecodeError, KindUnexpectedMessage, KindBadRecordMac,
		KindHandshakeFailure, KindCertificateInvalid, KindCertificateUnknown,
		KindDecryptError, KindProtocolVersion, KindInsufficientSecurity,
		KindInternalError, KindRecordOverflow, KindSeqOverflow, KindConnectionClosed,
	} {
		if !k.IsFatal() {
			t.Errorf("%s must be fatal", k)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := NewError(KindInternalError, cause)
	if !errors.Is(e, cause) {
		t.Fatal("errors.Is must reach the wrapped cause through Unwrap")
	}
}

func TestErrorStringIncludesKind(t *testing.T) {
	e := NewError(KindDecryptError, nil)
	if !strings.Contains(e.Error(), "DecryptError") {
		t.Fatalf("Error() = %q, want it to name DecryptError", e.Error())
	}
}

func TestSentinelErrorsAreTheirOwnKind(t *testing.T) {
	if ErrConnectionClosed.Kind != KindConnectionClosed {
		t.Fatalf("expected KindConnectionClosed, got %v", ErrConnectionClosed.Kind)
	}
	if ErrSeqOverflow.Kind != KindSeqOverflow {
		t.Fatalf("expected KindSeqOverflow, got %v", ErrSeqOverflow.Kind)
	}
}
