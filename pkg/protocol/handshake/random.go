// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"encoding/binary"
	"io"
	"time"
)

// RandomLength is the length in bytes of the ClientHello/ServerHello
// random field.
const RandomLength = 32

// RandomBytesLength is RandomLength minus the 4-byte GMT-unix-time
// prefix TLS 1.2 historically carried; TLS 1.3 ignores the semantic
// meaning of those bytes but keeps the same wire shape.
const RandomBytesLength = 28

// Random is the 32-byte ClientHello/ServerHello random value.
type Random struct {
	GMTUnixTime time.Time
	RandomBytes [RandomBytesLength]byte
}

// Populate fills Random with fresh entropy from rnd, setting
// GMTUnixTime to the current wall clock per the legacy TLS 1.2 shape
// (TLS 1.3 peers MUST NOT interpret these bytes as a timestamp).
func (r *Random) Populate(rnd io.Reader, now time.Time) error {
	r.GMTUnixTime = now
	_, err := io.ReadFull(rnd, r.RandomBytes[:])
	return err
}

// MarshalFixed encodes Random into its fixed 32-byte wire form.
func (r *Random) MarshalFixed() [RandomLength]byte {
	var out [RandomLength]byte
	binary.BigEndian.PutUint32(out[:4], uint32(r.GMTUnixTime.Unix()))
	copy(out[4:], r.RandomBytes[:])
	return out
}

// UnmarshalFixed decodes Random from its fixed 32-byte wire form.
func (r *Random) UnmarshalFixed(in [RandomLength]byte) {
	r.GMTUnixTime = time.Unix(int64(binary.BigEndian.Uint32(in[:4])), 0)
	copy(r.RandomBytes[:], in[4:])
}
