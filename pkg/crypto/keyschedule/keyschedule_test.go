// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package keyschedule

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestExpandLabelLength(t *testing.T) {
	secret := make([]byte, 32)
	out := ExpandLabel(sha256.New, secret, "key", nil, 16)
	if len(out) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(out))
	}
}

func TestScheduleDerivesDistinctSecrets(t *testing.T) {
	s := NewSchedule(sha256.New)
	s.EarlySecret(nil)
	dhe := bytes.Repeat([]byte{0x42}, 32)
	s.HandshakeSecret(dhe)
	s.MasterSecret()

	transcript := sha256.Sum256([]byte("hello"))
	clientHS := s.ClientHandshakeTrafficSecret(transcript[:])
	serverHS := s.ServerHandshakeTrafficSecret(transcript[:])
	if bytes.Equal(clientHS, serverHS) {
		t.Fatal("client and server handshake traffic secrets must differ")
	}

	clientAP := s.ClientApplicationTrafficSecret0(transcript[:])
	if bytes.Equal(clientAP, clientHS) {
		t.Fatal("application and handshake traffic secrets must differ")
	}
}

func TestNextApplicationTrafficSecretRatchets(t *testing.T) {
	s := NewSchedule(sha256.New)
	secret := bytes.Repeat([]byte{0x11}, 32)
	next := s.NextApplicationTrafficSecret(secret)
	if bytes.Equal(secret, next) {
		t.Fatal("key update must produce a new secret")
	}
	if len(next) != sha256.Size {
		t.Fatalf("expected %d bytes, got %d", sha256.Size, len(next))
	}
}

// TestVerifyDataAgreesBothSides checks the property a Finished exchange
// relies on: the side that computed verify_data with a given base
// secret and transcript hash, and the side verifying it, must derive
// identical bytes from the same inputs (spec.md §8's Finished-agreement
// property), and a one-bit change on either side must not agree.
func TestVerifyDataAgreesBothSides(t *testing.T) {
	baseSecret := bytes.Repeat([]byte{0x7a}, sha256.Size)
	transcript := sha256.Sum256([]byte("client hello .. server hello"))

	a := VerifyData(sha256.New, baseSecret, transcript[:])
	b := VerifyData(sha256.New, baseSecret, transcript[:])
	if !bytes.Equal(a, b) {
		t.Fatal("VerifyData must be deterministic for identical inputs")
	}
	if len(a) != sha256.Size {
		t.Fatalf("expected %d bytes, got %d", sha256.Size, len(a))
	}

	tamperedSecret := append([]byte{}, baseSecret...)
	tamperedSecret[0] ^= 0x01
	if bytes.Equal(a, VerifyData(sha256.New, tamperedSecret, transcript[:])) {
		t.Fatal("VerifyData must depend on the base secret")
	}

	tamperedTranscript := append([]byte{}, transcript[:]...)
	tamperedTranscript[0] ^= 0x01
	if bytes.Equal(a, VerifyData(sha256.New, baseSecret, tamperedTranscript)) {
		t.Fatal("VerifyData must depend on the transcript hash")
	}
}

// TestFinishedKeyIsBaseKeyedExpandLabel pins FinishedKey's derivation
// to a plain ExpandLabel call so a change to one can't silently drift
// from the other (RFC 8446 §4.4.4 defines finished_key that way).
func TestFinishedKeyIsBaseKeyedExpandLabel(t *testing.T) {
	base := bytes.Repeat([]byte{0x33}, sha256.Size)
	got := FinishedKey(sha256.New, base)
	want := ExpandLabel(sha256.New, base, "finished", nil, sha256.Size)
	if !bytes.Equal(got, want) {
		t.Fatal("FinishedKey must match ExpandLabel(base, \"finished\", nil, Hash.Size)")
	}
}

// TestBinderKeyDiffersByLabel checks the external/resumption PSK
// binder keys a ClientHello's pre_shared_key extension signs are
// distinguishable: an external PSK attacker cannot replay a resumption
// binder or vice versa, because the two derivations use different
// Derive-Secret labels (RFC 8446 §7.1, §4.2.11.2).
func TestBinderKeyDiffersByLabel(t *testing.T) {
	s := NewSchedule(sha256.New)
	psk := bytes.Repeat([]byte{0x55}, 32)

	extBinder := s.BinderKey(psk, "ext binder")
	resBinder := s.BinderKey(psk, "res binder")
	if bytes.Equal(extBinder, resBinder) {
		t.Fatal("external and resumption binder keys must differ")
	}

	// Same (psk, label) must still be deterministic across schedules.
	s2 := NewSchedule(sha256.New)
	if !bytes.Equal(extBinder, s2.BinderKey(psk, "ext binder")) {
		t.Fatal("BinderKey must be deterministic for identical (psk, label)")
	}
}
