// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import "hash"

// transcript is the running record of every handshake message's raw
// bytes, in order (spec.md §4.4). Bytes are buffered rather than
// streamed into an incremental hash.Hash because the hash function
// itself isn't known until the cipher suite is negotiated on
// ServerHello — by which point ClientHello is already in the
// transcript. snapshot() hashes the buffer on demand with whichever
// hash function is current, giving CertificateVerify/Finished a
// point-in-time digest without disturbing later appends.
type transcript struct {
	newHash func() hash.Hash
	buf     []byte
}

// newTranscript starts an empty transcript. newHash may be nil until
// the cipher suite is negotiated; setHash must be called before the
// first snapshot.
func newTranscript(newHash func() hash.Hash) *transcript {
	return &transcript{newHash: newHash}
}

// setHash installs the negotiated suite's hash function.
func (t *transcript) setHash(newHash func() hash.Hash) {
	t.newHash = newHash
}

// write appends one handshake message's raw bytes (header + body).
func (t *transcript) write(raw []byte) {
	t.buf = append(t.buf, raw...)
}

// snapshot hashes everything written so far.
func (t *transcript) snapshot() []byte {
	h := t.newHash()
	h.Write(t.buf) //nolint:errcheck // hash.Hash.Write never errors
	return h.Sum(nil)
}

// substituteHelloRetryRequest implements spec.md §4.4's HRR rule:
// replace CH1 at the start of the transcript with a synthetic
// message_hash record of the form (type=message_hash, len=Hash.length,
// H(CH1)), keeping the HelloRetryRequest already written after it.
func (t *transcript) substituteHelloRetryRequest(firstClientHelloRaw []byte) {
	h := t.newHash()
	h.Write(firstClientHelloRaw) //nolint:errcheck
	digest := h.Sum(nil)

	synthetic := make([]byte, 4+len(digest))
	synthetic[0] = 254 // handshake.TypeMessageHash
	synthetic[1] = byte(len(digest) >> 16)
	synthetic[2] = byte(len(digest) >> 8)
	synthetic[3] = byte(len(digest))
	copy(synthetic[4:], digest)

	var rest []byte
	if len(t.buf) >= len(firstClientHelloRaw) {
		rest = t.buf[len(firstClientHelloRaw):]
	}
	t.buf = append(synthetic, rest...)
}

// reset clears the transcript, used when a server chooses full
// handshake after a failed resumption attempt left a stale buffer.
func (t *transcript) reset() {
	t.buf = nil
}
