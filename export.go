// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"fmt"
	"hash"

	"github.com/transportsec/tlscore/pkg/crypto/keyschedule"
	"github.com/transportsec/tlscore/pkg/crypto/prf"
	"github.com/transportsec/tlscore/pkg/protocol"
)

// GetTLSExporter derives L bytes of keying material for label/context,
// the RFC 5705 (TLS 1.2) / RFC 8446 §7.5 (TLS 1.3) exporter mechanism
// spec.md §4.3/§4.5 names. Both endpoints of a completed handshake
// produce identical output for the same (label, context, L) (spec.md
// §8 S1's testable exporter-agreement property).
func (c *Conn) GetTLSExporter(label string, context []byte, length int) ([]byte, error) {
	c.ctx.stateLock.Lock()
	version := c.ctx.negotiatedVersion
	established := c.ctx.established
	c.ctx.stateLock.Unlock()

	if established != EstablishedState {
		return nil, NewError(KindInternalError, fmt.Errorf("tlscore: exporter requested before handshake completed"))
	}

	if version == protocol.VersionTLS13 {
		return c.exportTLS13(label, context, length)
	}
	return c.exportTLS12(label, context, length)
}

// exportTLS13 implements RFC 8446 §7.5: exporter_secret =
// Derive-Secret(exporter_master_secret, label, ""), then output =
// HKDF-Expand-Label(exporter_secret, "exporter", Hash(context), L).
func (c *Conn) exportTLS13(label string, context []byte, length int) ([]byte, error) {
	c.ctx.stateLock.Lock()
	exporterMasterSecret := append([]byte{}, c.ctx.exporterMasterSecret...)
	hashFn := c.ctx.scheduleHash
	c.ctx.stateLock.Unlock()

	if hashFn == nil || exporterMasterSecret == nil {
		return nil, NewError(KindInternalError, fmt.Errorf("tlscore: exporter_master_secret unavailable"))
	}

	derivedSecret := keyschedule.DeriveSecret(hashFn, exporterMasterSecret, label, emptyTranscriptHash(hashFn))

	h := hashFn()
	h.Write(context) //nolint:errcheck
	contextHash := h.Sum(nil)

	return keyschedule.ExpandLabel(hashFn, derivedSecret, "exporter", contextHash, length), nil
}

// exportTLS12 implements RFC 5705: key_material = PRF(master_secret,
// label, client_random || server_random || context)[0:length]. A
// zero-length context is valid and distinct from "no context
// supplied" in RFC 5705, but this engine's callers always pass an
// explicit (possibly empty) context, so that distinction never arises
// here.
func (c *Conn) exportTLS12(label string, context []byte, length int) ([]byte, error) {
	c.ctx.stateLock.Lock()
	masterSecret := append([]byte{}, c.ctx.masterSecret...)
	clientRandom := c.ctx.clientRandom
	serverRandom := c.ctx.serverRandom
	hashFn := c.ctx.scheduleHash
	c.ctx.stateLock.Unlock()

	if masterSecret == nil || hashFn == nil {
		return nil, NewError(KindInternalError, fmt.Errorf("tlscore: master_secret unavailable"))
	}

	seed := append([]byte{}, clientRandom[:]...)
	seed = append(seed, serverRandom[:]...)
	seed = append(seed, context...)

	out, err := prf.Exporter(masterSecret, label, seed, length, hashFn)
	if err != nil {
		return nil, NewError(KindInternalError, err)
	}
	return out, nil
}

// emptyTranscriptHash hashes the empty string, the transcript value
// Derive-Secret uses for exporter_secret per RFC 8446 §7.5 (the
// exporter secret is derived independent of any particular
// transcript position, unlike the handshake/application secrets).
func emptyTranscriptHash(hashFn func() hash.Hash) []byte {
	h := hashFn()
	return h.Sum(nil)
}
