// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package recordlayer implements the TLS record framing shared by
// TLS 1.2 and TLS 1.3: a 5-byte header (type, legacy version, length)
// followed by up to 2^14+256 bytes of (possibly encrypted) payload.
package recordlayer

import (
	"encoding/binary"

	"github.com/transportsec/tlscore/pkg/protocol"
)

// FixedHeaderSize is the size in bytes of the on-the-wire record
// header: content type (1) + legacy version (2) + length (2).
const FixedHeaderSize = 5

// MaxPlaintextPayloadLen is the largest plaintext fragment a record
// may carry, per spec.md §3's Record invariant (2^14 bytes).
const MaxPlaintextPayloadLen = 1 << 14

// MaxCiphertextRecordLen is the largest a post-encryption record may
// be: plaintext limit plus AEAD/MAC overhead allowance.
const MaxCiphertextRecordLen = MaxPlaintextPayloadLen + 256

// MaxSequenceNumber is the largest value a 64-bit per-epoch sequence
// number may take before the connection must be torn down rather than
// wrap (spec.md §4.2, SeqOverflow).
const MaxSequenceNumber = 1<<64 - 1

// Header is the 5-byte record header. Epoch is not carried on the
// wire (TLS, unlike DTLS, has no datagram framing) but is tracked here
// as the logical epoch index the header was built against, so the
// AEAD nonce/MAC construction can reference it without a side channel.
type Header struct {
	ContentType    protocol.ContentType
	Version        protocol.Version
	ContentLen     uint16
	Epoch          uint16
	SequenceNumber uint64
}

// Size returns the encoded header size.
func (h *Header) Size() int {
	return FixedHeaderSize
}

// Marshal encodes the record header.
func (h *Header) Marshal() ([]byte, error) {
	out := make([]byte, FixedHeaderSize)
	out[0] = byte(h.ContentType)
	out[1] = h.Version.Major
	out[2] = h.Version.Minor
	binary.BigEndian.PutUint16(out[3:], h.ContentLen)
	return out, nil
}

// Unmarshal decodes the record header.
func (h *Header) Unmarshal(data []byte) error {
	if len(data) < FixedHeaderSize {
		return ErrInvalidPacketLength
	}
	h.ContentType = protocol.ContentType(data[0])
	h.Version = protocol.Version{Major: data[1], Minor: data[2]}
	h.ContentLen = binary.BigEndian.Uint16(data[3:])
	if int(h.ContentLen) > MaxCiphertextRecordLen {
		return ErrRecordOverflow
	}
	return nil
}
