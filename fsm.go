// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"time"

	"github.com/pion/transport/v3/deadline"

	"github.com/transportsec/tlscore/pkg/crypto/ciphersuite"
	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/extension"
	"github.com/transportsec/tlscore/pkg/protocol/handshake"
)

// hashFuncFor returns the transcript/key-schedule hash function a
// negotiated suite uses: SHA-384 for TLS_AES_256_GCM_SHA384, SHA-256
// for every other suite this engine negotiates.
func hashFuncFor(suite ciphersuite.ID) func() hash.Hash {
	if suite == ciphersuite.TLS_AES_256_GCM_SHA384 {
		return sha512.New384
	}
	return sha256.New
}

// newAEAD builds the record-protection AEAD for suite from a pair of
// (key, IV) traffic secrets already expanded by prf/keyschedule.
func newAEAD(suite ciphersuite.ID, isTLS13 bool, localKey, localIV, remoteKey, remoteIV []byte) (ciphersuite.AEAD, error) {
	switch {
	case suite == ciphersuite.TLS_CHACHA20_POLY1305_SHA256:
		return ciphersuite.NewChaCha20Poly1305(localKey, localIV, remoteKey, remoteIV)
	case isTLS13:
		return ciphersuite.NewGCM13(localKey, localIV, remoteKey, remoteIV)
	default:
		return ciphersuite.NewGCM12(localKey, localIV, remoteKey, remoteIV)
	}
}

// sendHandshakeMessage marshals msg into a Handshake, writes it as one
// plaintext-or-protected record (protection follows whatever TX epoch
// is currently installed) and appends its raw bytes to the transcript.
func (c *Conn) sendHandshakeMessage(msg handshake.Message) ([]byte, error) {
	hs := &handshake.Handshake{Message: msg}
	raw, err := hs.Marshal()
	if err != nil {
		return nil, NewError(KindInternalError, err)
	}
	if err := c.writeRecord(protocol.ContentTypeHandshake, raw); err != nil {
		return nil, err
	}
	c.ctx.transcript.write(raw)
	return raw, nil
}

// sendChangeCipherSpec emits the legacy TLS 1.2 epoch-bump record. TLS
// 1.3 peers may still send/expect a compatibility CCS around the
// first flight; it carries no transcript or cryptographic meaning
// there and this engine neither sends nor requires it in 1.3 mode.
func (c *Conn) sendChangeCipherSpec() error {
	return c.writeRecord(protocol.ContentTypeChangeCipherSpec, []byte{0x01})
}

// recvHandshakeMessage reads the next record, transparently consuming
// (and acting on) a ChangeCipherSpec, and returns the decoded
// handshake message plus its raw transcript bytes.
func (c *Conn) recvHandshakeMessage(d *deadline.Deadline) (handshake.Message, []byte, error) {
	for {
		contentType, payload, err := c.readRecord(d)
		if err != nil {
			return nil, nil, err
		}
		switch contentType {
		case protocol.ContentTypeChangeCipherSpec:
			c.ctx.readLock.Lock()
			c.ctx.rxEpoch.swap()
			c.ctx.readLock.Unlock()
			continue
		case protocol.ContentTypeHandshake:
			if len(payload) < handshake.HeaderSize {
				return nil, nil, NewError(KindDecodeError, fmt.Errorf("tlscore: truncated handshake record"))
			}
			var hs handshake.Handshake
			if err := hs.Header.Unmarshal(payload); err != nil {
				return nil, nil, NewError(KindDecodeError, err)
			}
			if len(payload) < handshake.HeaderSize+int(hs.Header.Length) {
				return nil, nil, NewError(KindDecodeError, fmt.Errorf("tlscore: truncated handshake message body"))
			}
			raw := payload[:handshake.HeaderSize+int(hs.Header.Length)]
			body := raw[handshake.HeaderSize:]

			// TLS 1.3 gives Certificate/CertificateRequest a different
			// wire shape (RFC 8446 §4.4.2/§4.3.2) that the shared
			// dispatch in Handshake.Unmarshal cannot select on its own,
			// since it has no notion of which version negotiated.
			isTLS13 := c.ctx.negotiatedVersion == protocol.VersionTLS13
			switch hs.Header.Type {
			case handshake.TypeCertificate:
				m := &handshake.MessageCertificate{}
				m.SetTLS13(isTLS13)
				if err := m.Unmarshal(body); err != nil {
					return nil, nil, NewError(KindDecodeError, err)
				}
				hs.Message = m
			case handshake.TypeCertificateRequest:
				m := &handshake.MessageCertificateRequest{}
				m.SetTLS13(isTLS13)
				if err := m.Unmarshal(body); err != nil {
					return nil, nil, NewError(KindDecodeError, err)
				}
				hs.Message = m
			default:
				if err := hs.Unmarshal(payload); err != nil {
					return nil, nil, NewError(KindDecodeError, err)
				}
			}
			c.ctx.transcript.write(raw)
			if h := c.ctx.hooks.load(); h != nil {
				if c.ctx.negotiatedVersion == protocol.VersionTLS13 && h.OnRecvHandshake13 != nil {
					hs.Message = h.OnRecvHandshake13(hs.Message)
				} else if h.OnRecvHandshake != nil {
					hs.Message = h.OnRecvHandshake(hs.Message)
				}
			}
			return hs.Message, raw, nil
		case protocol.ContentTypeAlert:
			return nil, nil, c.handleIncomingAlert(payload)
		default:
			return nil, nil, NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: unexpected content type %d during handshake", contentType))
		}
	}
}

func negotiateGroup(localPreference []extension.NamedGroup, peerOffered []extension.NamedGroup) (extension.NamedGroup, bool) {
	offered := make(map[extension.NamedGroup]struct{}, len(peerOffered))
	for _, g := range peerOffered {
		offered[g] = struct{}{}
	}
	for _, g := range localPreference {
		if _, ok := offered[g]; ok {
			return g, true
		}
	}
	return 0, false
}

func newRandom() (handshake.Random, error) {
	var r handshake.Random
	if err := r.Populate(rand.Reader, time.Now()); err != nil {
		return r, NewError(KindInternalError, err)
	}
	return r, nil
}

func findExtension[T extension.Extension](exts []extension.Extension) (T, bool) {
	var zero T
	for _, e := range exts {
		if typed, ok := e.(T); ok {
			return typed, true
		}
	}
	return zero, false
}

// newHandshakeDeadline builds the deadline governing one handshake
// attempt: timeout (if non-zero) bounds it outright, and a watcher
// goroutine collapses the deadline the moment ctx is done, giving the
// blocking reads in record.go a single thing to select on instead of
// juggling a context and a deadline separately. The teacher achieves
// the same effect with a pair of derived contexts around its FSM
// goroutines (conn.go's handshake method); a single shared deadline is
// enough here since the client/server flights run synchronously.
func newHandshakeDeadline(ctx context.Context, timeout time.Duration) (*deadline.Deadline, func()) {
	d := deadline.New()
	if timeout > 0 {
		d.Set(time.Now().Add(timeout))
	}
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			d.Set(time.Now())
		case <-stop:
		}
	}()
	return d, func() { close(stop) }
}
