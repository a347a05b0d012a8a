// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package keyschedule implements the TLS 1.3 key schedule (RFC 8446
// §7.1): the Extract/Expand secret tree that derives every traffic,
// exporter, and resumption secret from (EC)DHE shared secrets and PSKs.
package keyschedule

import (
	"crypto/hmac"
	"encoding/binary"
	"hash"

	"golang.org/x/crypto/hkdf"
)

// HKDFExtract implements HKDF-Extract(salt, ikm), RFC 5869 §2.2, using
// the negotiated suite's hash. A nil salt is treated as a zero string
// of hash-length, matching RFC 8446 §7.1's early/handshake transitions.
func HKDFExtract(h func() hash.Hash, salt, ikm []byte) []byte {
	if salt == nil {
		salt = make([]byte, h().Size())
	}
	if ikm == nil {
		ikm = make([]byte, h().Size())
	}
	extractor := hkdf.Extract(h, ikm, salt)
	return extractor
}

// ExpandLabel implements HKDF-Expand-Label(Secret, Label, Context,
// Length), RFC 8446 §7.1. Label is automatically prefixed with "tls13 ".
func ExpandLabel(h func() hash.Hash, secret []byte, label string, context []byte, length int) []byte {
	hkdfLabel := buildHKDFLabel(label, context, length)
	reader := hkdf.Expand(h, secret, hkdfLabel)
	out := make([]byte, length)
	if _, err := reader.Read(out); err != nil {
		// hkdf.Expand's Reader only errors past 255*hash.Size bytes of
		// total output, far beyond any single label this schedule uses.
		panic(err)
	}
	return out
}

// buildHKDFLabel encodes the HkdfLabel struct from RFC 8446 §7.1:
// uint16 length, opaque label<7..255> "tls13 "+label, opaque context<0..255>.
func buildHKDFLabel(label string, context []byte, length int) []byte {
	fullLabel := "tls13 " + label
	out := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))

	lenBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBytes, uint16(length))
	out = append(out, lenBytes...)

	out = append(out, byte(len(fullLabel)))
	out = append(out, fullLabel...)

	out = append(out, byte(len(context)))
	return append(out, context...)
}

// DeriveSecret implements Derive-Secret(Secret, Label, Messages),
// RFC 8446 §7.1: ExpandLabel keyed on the transcript hash so far.
func DeriveSecret(h func() hash.Hash, secret []byte, label string, transcriptHash []byte) []byte {
	return ExpandLabel(h, secret, label, transcriptHash, h().Size())
}

// TrafficKeys are the per-direction key/IV pair derived from a traffic
// secret via RFC 8446 §7.3.
type TrafficKeys struct {
	Key []byte
	IV  []byte
}

// DeriveTrafficKeys expands a traffic secret into the AEAD key and IV
// the record layer needs, sized for the negotiated suite.
func DeriveTrafficKeys(h func() hash.Hash, trafficSecret []byte, keyLen, ivLen int) TrafficKeys {
	return TrafficKeys{
		Key: ExpandLabel(h, trafficSecret, "key", nil, keyLen),
		IV:  ExpandLabel(h, trafficSecret, "iv", nil, ivLen),
	}
}

// Schedule walks the full RFC 8446 §7.1 secret tree for one connection.
// Callers fill in PSK/(EC)DHE inputs as they become known and read out
// secrets as each handshake phase completes.
type Schedule struct {
	Hash func() hash.Hash

	earlySecret      []byte
	handshakeSecret  []byte
	masterSecret     []byte
}

// NewSchedule starts a key schedule keyed to the negotiated suite's hash.
func NewSchedule(h func() hash.Hash) *Schedule {
	return &Schedule{Hash: h}
}

// EarlySecret computes Early Secret = HKDF-Extract(0, PSK) and the
// derived secret that salts the handshake extract. psk is nil for a
// non-PSK (full) handshake.
func (s *Schedule) EarlySecret(psk []byte) []byte {
	s.earlySecret = HKDFExtract(s.Hash, nil, psk)
	return s.earlySecret
}

// HandshakeSecret computes Handshake Secret = HKDF-Extract(Derive-Secret(
// Early Secret, "derived", ""), (EC)DHE).
func (s *Schedule) HandshakeSecret(dhe []byte) []byte {
	if s.earlySecret == nil {
		s.EarlySecret(nil)
	}
	salt := DeriveSecret(s.Hash, s.earlySecret, "derived", emptyHash(s.Hash))
	s.handshakeSecret = HKDFExtract(s.Hash, salt, dhe)
	return s.handshakeSecret
}

// MasterSecret computes Master Secret = HKDF-Extract(Derive-Secret(
// Handshake Secret, "derived", ""), 0).
func (s *Schedule) MasterSecret() []byte {
	salt := DeriveSecret(s.Hash, s.handshakeSecret, "derived", emptyHash(s.Hash))
	s.masterSecret = HKDFExtract(s.Hash, salt, nil)
	return s.masterSecret
}

// ClientHandshakeTrafficSecret derives client_handshake_traffic_secret
// over the transcript ending at ServerHello.
func (s *Schedule) ClientHandshakeTrafficSecret(transcriptHash []byte) []byte {
	return DeriveSecret(s.Hash, s.handshakeSecret, "c hs traffic", transcriptHash)
}

// ServerHandshakeTrafficSecret derives server_handshake_traffic_secret
// over the transcript ending at ServerHello.
func (s *Schedule) ServerHandshakeTrafficSecret(transcriptHash []byte) []byte {
	return DeriveSecret(s.Hash, s.handshakeSecret, "s hs traffic", transcriptHash)
}

// ClientApplicationTrafficSecret0 derives client_application_traffic_secret_0
// over the transcript ending at server Finished.
func (s *Schedule) ClientApplicationTrafficSecret0(transcriptHash []byte) []byte {
	return DeriveSecret(s.Hash, s.masterSecret, "c ap traffic", transcriptHash)
}

// ServerApplicationTrafficSecret0 derives server_application_traffic_secret_0
// over the transcript ending at server Finished.
func (s *Schedule) ServerApplicationTrafficSecret0(transcriptHash []byte) []byte {
	return DeriveSecret(s.Hash, s.masterSecret, "s ap traffic", transcriptHash)
}

// ExporterMasterSecret derives exporter_master_secret over the
// transcript ending at server Finished.
func (s *Schedule) ExporterMasterSecret(transcriptHash []byte) []byte {
	return DeriveSecret(s.Hash, s.masterSecret, "exp master", transcriptHash)
}

// ResumptionMasterSecret derives resumption_master_secret over the
// full transcript including client Finished.
func (s *Schedule) ResumptionMasterSecret(transcriptHash []byte) []byte {
	return DeriveSecret(s.Hash, s.masterSecret, "res master", transcriptHash)
}

// NextApplicationTrafficSecret implements the KeyUpdate ratchet
// (RFC 8446 §7.2): application_traffic_secret_N+1 = HKDF-Expand-Label(
// application_traffic_secret_N, "traffic upd", "", Hash.length).
func (s *Schedule) NextApplicationTrafficSecret(currentSecret []byte) []byte {
	return ExpandLabel(s.Hash, currentSecret, "traffic upd", nil, s.Hash().Size())
}

// ResumptionPSK derives the PSK a NewSessionTicket binds to, RFC 8446
// §4.6.1: HKDF-Expand-Label(resumption_master_secret, "resumption",
// ticket_nonce, Hash.length).
func (s *Schedule) ResumptionPSK(resumptionMasterSecret, ticketNonce []byte) []byte {
	return ExpandLabel(s.Hash, resumptionMasterSecret, "resumption", ticketNonce, s.Hash().Size())
}

// FinishedKey derives the per-direction MAC key Finished and the PSK
// binder both use: HKDF-Expand-Label(BaseKey, "finished", "", Hash.length),
// RFC 8446 §4.4.4.
func FinishedKey(h func() hash.Hash, baseSecret []byte) []byte {
	return ExpandLabel(h, baseSecret, "finished", nil, h().Size())
}

// VerifyData computes HMAC(finished_key, Transcript-Hash), the shared
// construction behind both Finished.verify_data (RFC 8446 §4.4.4) and
// a PSK binder (RFC 8446 §4.2.11.2) — callers pass the appropriate
// base secret and transcript hash for whichever they're computing.
func VerifyData(h func() hash.Hash, baseSecret, transcriptHash []byte) []byte {
	mac := hmac.New(h, FinishedKey(h, baseSecret))
	mac.Write(transcriptHash) //nolint:errcheck // hash.Hash.Write never errors
	return mac.Sum(nil)
}

// BinderKey derives the PSK binder key for an external or resumption
// PSK (RFC 8446 §7.1): Derive-Secret(EarlySecret, "ext binder" | "res
// binder", "").
func (s *Schedule) BinderKey(psk []byte, label string) []byte {
	early := HKDFExtract(s.Hash, nil, psk)
	return DeriveSecret(s.Hash, early, label, emptyHash(s.Hash))
}

func emptyHash(h func() hash.Hash) []byte {
	hf := h()
	return hf.Sum(nil)
}
