// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"context"
	"crypto/rand"
	"fmt"
	"hash"
	"time"

	"github.com/transportsec/tlscore/pkg/crypto/ciphersuite"
	"github.com/transportsec/tlscore/pkg/crypto/elliptic"
	"github.com/transportsec/tlscore/pkg/crypto/keyschedule"
	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/extension"
	"github.com/transportsec/tlscore/pkg/protocol/handshake"
)

// clientKeyShare remembers the private half of a key_share offer so
// the continuation can complete the (EC)DHE exchange once a
// ServerHello names the group and public share the server picked.
type clientKeyShare struct {
	group   extension.NamedGroup
	private []byte
	public  []byte
}

func generateClientKeyShare(group extension.NamedGroup) (clientKeyShare, error) {
	curve, ok := elliptic.Curves[group]
	if !ok {
		return clientKeyShare{}, fmt.Errorf("tlscore: unsupported named group %#04x", uint16(group))
	}
	priv, pub, err := curve.GenerateKeypair()
	if err != nil {
		return clientKeyShare{}, err
	}
	return clientKeyShare{group: group, private: priv, public: pub}, nil
}

// hrrRequestedGroup extracts the group a HelloRetryRequest's key_share
// extension asks the client to retry with (RFC 8446 §4.1.4).
func hrrRequestedGroup(exts []extension.Extension) (extension.NamedGroup, bool) {
	ks, ok := findExtension[*extension.KeyShare](exts)
	if !ok {
		return 0, false
	}
	return ks.Group, true
}

// runClientHandshake drives the client side of the handshake to
// completion: it sends ClientHello (looping once through a
// HelloRetryRequest if the server asks for one), then hands off to
// the TLS 1.2 or TLS 1.3 continuation once ServerHello reveals which
// version was negotiated. Grounded on the teacher's conn.go handshake
// orchestration (single blocking call driving a flight sequence to a
// terminal state), generalized from DTLS's flight/retransmit model to
// TLS's simpler one-shot-per-message stream.
func runClientHandshake(ctx context.Context, c *Conn, params *ClientParams) error {
	d, stop := newHandshakeDeadline(ctx, params.HandshakeTimeout)
	defer stop()

	serverName, err := normalizeServerName(params.ServerName)
	if err != nil {
		return NewError(KindInternalError, err)
	}

	share, err := generateClientKeyShare(params.SupportedGroups[0])
	if err != nil {
		return NewError(KindInternalError, err)
	}

	session, haveSession := lookupClientSession(params)

	chRandom, err := newRandom()
	if err != nil {
		return err
	}

	ch, err := c.buildClientHello(params, serverName, chRandom, share, session, haveSession)
	if err != nil {
		return err
	}
	firstCHRaw, err := c.sendHandshakeMessage(ch)
	if err != nil {
		return err
	}

	for {
		msg, _, err := c.recvHandshakeMessage(d)
		if err != nil {
			return err
		}
		sh, ok := msg.(*handshake.MessageServerHello)
		if !ok {
			return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: expected ServerHello, got %T", msg))
		}

		if sh.IsHelloRetryRequest() {
			group, ok := hrrRequestedGroup(sh.Extensions)
			if !ok {
				return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: HelloRetryRequest without a usable key_share group"))
			}
			if sh.CipherSuiteID != nil {
				c.ctx.transcript.setHash(hashFuncFor(ciphersuite.ID(*sh.CipherSuiteID)))
			}
			c.ctx.transcript.substituteHelloRetryRequest(firstCHRaw)

			share, err = generateClientKeyShare(group)
			if err != nil {
				return NewError(KindInternalError, err)
			}
			ch2, err := c.buildClientHello(params, serverName, chRandom, share, session, haveSession)
			if err != nil {
				return err
			}
			if _, err := c.sendHandshakeMessage(ch2); err != nil {
				return err
			}
			continue
		}

		if sh.CipherSuiteID == nil {
			return NewError(KindDecodeError, fmt.Errorf("tlscore: ServerHello missing cipher_suite"))
		}

		if sv, ok := findExtension[*extension.SupportedVersions](sh.Extensions); ok && sv.SelectedVersion == uint16(protocol.VersionTLS13) {
			return c.clientContinueTLS13(d, params, chRandom, sh, share, session, haveSession)
		}
		return c.clientContinueTLS12(d, params, chRandom, sh, share)
	}
}

// lookupClientSession resolves the session a client would like to
// offer for resumption by looking params.SessionTicket up in the
// SessionManager; with no SessionTicket there is nothing to offer.
func lookupClientSession(params *ClientParams) (*SessionData, bool) {
	if len(params.SessionTicket) == 0 {
		return nil, false
	}
	return params.SessionManager.Resume(params.SessionTicket)
}

// buildClientHello assembles one ClientHello (or ClientHello2 after a
// HelloRetryRequest), attaching a real PSK binder (RFC 8446 §4.2.11.2)
// when a resumable session is offered.
func (c *Conn) buildClientHello(params *ClientParams, serverName string, random handshake.Random, share clientKeyShare, session *SessionData, haveSession bool) (*handshake.MessageClientHello, error) {
	sessionID := make([]byte, 32)
	if _, err := rand.Read(sessionID); err != nil {
		return nil, NewError(KindInternalError, err)
	}
	// A TLS 1.2 session is offered by sending its ticket as the session
	// ID, which the server looks up and echoes to accept it.
	if haveSession && session.Version == protocol.VersionTLS12 && len(params.SessionTicket) <= 32 {
		sessionID = params.SessionTicket
	}

	ch := &handshake.MessageClientHello{
		Version:            protocol.Version1_2,
		Random:             random,
		SessionID:          sessionID,
		CompressionMethods: defaultCompressionMethods(),
	}
	for _, id := range params.CipherSuitePreference {
		ch.CipherSuiteIDs = append(ch.CipherSuiteIDs, uint16(id))
	}

	var exts []extension.Extension
	if serverName != "" {
		exts = append(exts, &extension.ServerName{HostName: serverName})
	}
	exts = append(exts, &extension.SupportedGroups{Groups: params.SupportedGroups})
	exts = append(exts, &extension.SignatureAlgorithms{Schemes: params.SignatureSchemes})
	if len(params.ALPN) > 0 {
		exts = append(exts, &extension.ALPN{ProtocolNameList: params.ALPN})
	}

	versions := make([]uint16, 0, len(params.SupportedVersions))
	offersTLS13 := false
	for _, v := range params.SupportedVersions {
		versions = append(versions, uint16(v))
		if v == protocol.VersionTLS13 {
			offersTLS13 = true
		}
	}
	exts = append(exts, &extension.SupportedVersions{IsClientHello: true, Versions: versions})
	exts = append(exts, &extension.KeyShare{
		Mode:    extension.KeyShareClientHello,
		Entries: []extension.KeyShareEntry{{Group: share.group, KeyExchange: share.public}},
	})

	var psk *extension.PreSharedKey
	var binderHash func() hash.Hash
	var binderKey []byte
	if haveSession && offersTLS13 {
		exts = append(exts, &extension.PSKKeyExchangeModes{Modes: []extension.PSKKeyExchangeMode{extension.PSKModeDHEKE}})

		binderHash = hashFuncFor(session.CipherSuite)
		schedule := keyschedule.NewSchedule(binderHash)
		schedule.EarlySecret(session.MasterSecret)
		binderKey = schedule.BinderKey(session.MasterSecret, "res binder")

		ticketAge := uint32(time.Since(session.IssuedAt).Milliseconds()) + session.AgeAdd
		psk = &extension.PreSharedKey{
			IsClientHello: true,
			Identities:    []extension.PSKIdentity{{Identity: params.SessionTicket, ObfuscatedTicketAge: ticketAge}},
			Binders:       [][]byte{make([]byte, binderHash().Size())},
		}
		exts = append(exts, psk)
	}

	ch.Extensions = exts

	if psk == nil {
		return ch, nil
	}
	if err := c.attachPSKBinder(ch, psk, binderHash, binderKey); err != nil {
		return nil, NewError(KindInternalError, err)
	}
	return ch, nil
}

// attachPSKBinder computes the real PSK binder per RFC 8446 §4.2.11.2:
// HMAC(binder_key, transcript-so-far || ClientHello-with-binders-zeroed)
// and patches it into psk.Binders[0] in place. Marshaling twice (once
// to locate and size the binders trailer, once for real when
// sendHandshakeMessage is called) is cheaper than hand-tracking byte
// offsets through extension.Marshal's generic encoder.
func (c *Conn) attachPSKBinder(ch *handshake.MessageClientHello, psk *extension.PreSharedKey, binderHash func() hash.Hash, binderKey []byte) error {
	hs := &handshake.Handshake{Message: ch}
	raw, err := hs.Marshal()
	if err != nil {
		return err
	}

	trailer := 2 + 1 + binderHash().Size() // binders<> length + this binder's length-prefix + digest
	if len(raw) < trailer {
		return fmt.Errorf("tlscore: ClientHello too short to hold a PSK binder")
	}
	truncated := raw[:len(raw)-trailer]

	h := binderHash()
	h.Write(c.ctx.transcript.buf) //nolint:errcheck
	h.Write(truncated)            //nolint:errcheck
	transcriptHash := h.Sum(nil)

	psk.Binders[0] = keyschedule.VerifyData(binderHash, binderKey, transcriptHash)
	return nil
}
