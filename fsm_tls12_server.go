// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"fmt"
	"hash"
	"time"

	"github.com/pion/transport/v3/deadline"

	"github.com/transportsec/tlscore/pkg/crypto/ciphersuite"
	"github.com/transportsec/tlscore/pkg/crypto/elliptic"
	"github.com/transportsec/tlscore/pkg/crypto/prf"
	"github.com/transportsec/tlscore/pkg/crypto/signaturehash"
	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/extension"
	"github.com/transportsec/tlscore/pkg/protocol/handshake"
)

// serverContinueTLS12 drives a TLS 1.2 server handshake to completion,
// choosing the full (RFC 5246 §7.3) or abbreviated (§7.3 resumption)
// message order depending on whether the client's SessionID matches a
// cached session for the negotiated suite.
func (c *Conn) serverContinueTLS12(d *deadline.Deadline, params *ServerParams, ch *handshake.MessageClientHello, serverName string, suiteID ciphersuite.ID) error {
	suite := ciphersuite.Suites[suiteID]
	hashFn := hashFuncFor(suiteID)

	c.ctx.stateLock.Lock()
	c.ctx.cipherSuite = suiteID
	c.ctx.negotiatedVersion = protocol.VersionTLS12
	c.ctx.negotiatedServerName = serverName
	c.ctx.stateLock.Unlock()
	c.ctx.transcript.setHash(hashFn)

	group, ok := negotiateGroup(params.SupportedGroups, extractSupportedGroups(ch.Extensions))
	if !ok {
		return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: no common supported group"))
	}

	var alpnOffered []string
	if alpn, ok := findExtension[*extension.ALPN](ch.Extensions); ok {
		alpnOffered = alpn.ProtocolNameList
	}
	negotiatedALPN, hasALPN := negotiateALPN(params.ALPN, alpnOffered)

	serverRandom, err := newRandom()
	if err != nil {
		return err
	}
	if offersTLS13(params.SupportedVersions) {
		serverRandom.SetDowngradeSentinel(handshake.DowngradeSentinelTLS12)
	}
	clientRandom := ch.Random.MarshalFixed()
	serverRandomFixed := serverRandom.MarshalFixed()

	if session, ok := resumableSession(params, ch.SessionID, suiteID); ok {
		return c.serverAbbreviatedTLS12(d, suiteID, suite, hashFn, session, ch.SessionID, serverRandom, clientRandom, serverRandomFixed, negotiatedALPN, hasALPN)
	}
	return c.serverFullTLS12(d, params, suiteID, suite, hashFn, group, serverName, serverRandom, clientRandom, serverRandomFixed, negotiatedALPN, hasALPN)
}

// serverAbbreviatedTLS12 implements RFC 5246 §7.3's resumption order
// from the server's side: ServerHello is immediately followed by this
// endpoint's own ChangeCipherSpec/Finished (no Certificate/SKE/SHD),
// then the client answers in kind.
func (c *Conn) serverAbbreviatedTLS12(d *deadline.Deadline, suiteID ciphersuite.ID, suite ciphersuite.Suite, hashFn func() hash.Hash, session *SessionData, sessionID []byte, serverRandom handshake.Random, clientRandom, serverRandomFixed [32]byte, alpn string, hasALPN bool) error {
	sh := c.buildServerHello(suiteID, serverRandom, sessionID, alpn, hasALPN)
	if _, err := c.sendHandshakeMessage(sh); err != nil {
		return err
	}
	if hasALPN {
		c.ctx.stateLock.Lock()
		c.ctx.negotiatedALPN = alpn
		c.ctx.stateLock.Unlock()
	}

	keys, err := prf.GenerateEncryptionKeys(session.MasterSecret, clientRandom[:], serverRandomFixed[:], 0, suite.KeyLen, tls12TrafficIVLen, hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	aead, err := newAEAD(suiteID, false, keys.ServerWriteKey, keys.ServerWriteIV, keys.ClientWriteKey, keys.ClientWriteIV)
	if err != nil {
		return NewError(KindInternalError, err)
	}

	if err := c.maybeIssueTLS12Ticket(tls12TicketInput{suiteID: suiteID, alpn: alpn, masterSecret: session.MasterSecret}); err != nil {
		return err
	}

	c.stageTXEpoch(aead)
	if err := c.sendChangeCipherSpec(); err != nil {
		return err
	}
	c.swapTXEpoch()

	verifyData, err := prf.VerifyDataServer(session.MasterSecret, c.ctx.transcript.buf, hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if _, err := c.sendHandshakeMessage(&handshake.MessageFinished{VerifyData: verifyData}); err != nil {
		return err
	}

	c.stageRXEpoch(aead)
	preClientFinishedBuf := append([]byte{}, c.ctx.transcript.buf...)
	msg, _, err := c.recvHandshakeMessage(d)
	if err != nil {
		return err
	}
	clientFinished, ok := msg.(*handshake.MessageFinished)
	if !ok {
		return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: expected client Finished in abbreviated handshake, got %T", msg))
	}
	expected, err := prf.VerifyDataClient(session.MasterSecret, preClientFinishedBuf, hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if !hmacEqual(expected, clientFinished.VerifyData) {
		return NewError(KindDecryptError, fmt.Errorf("tlscore: client Finished verify_data mismatch"))
	}

	c.ctx.stateLock.Lock()
	c.ctx.masterSecret = session.MasterSecret
	c.ctx.clientRandom = clientRandom
	c.ctx.serverRandom = serverRandomFixed
	c.ctx.scheduleHash = hashFn
	c.ctx.ourFinished = verifyData
	c.ctx.peerFinished = clientFinished.VerifyData
	c.ctx.established = EstablishedState
	c.ctx.stateLock.Unlock()
	c.handshakeCompleted.Store(true)
	return nil
}

// serverFullTLS12 implements the full RFC 5246 §7.3 handshake from the
// server's side: send Certificate/ServerKeyExchange/[CertificateRequest]/
// ServerHelloDone, receive [Certificate]/ClientKeyExchange/
// [CertificateVerify]/ChangeCipherSpec/Finished, then answer with this
// endpoint's own ChangeCipherSpec/Finished (which naturally covers the
// client's Finished in its hash, since it is sent last).
func (c *Conn) serverFullTLS12(d *deadline.Deadline, params *ServerParams, suiteID ciphersuite.ID, suite ciphersuite.Suite, hashFn func() hash.Hash, group extension.NamedGroup, serverName string, serverRandom handshake.Random, clientRandom, serverRandomFixed [32]byte, alpn string, hasALPN bool) error {
	newSessionID, err := newRandomBytes(32)
	if err != nil {
		return NewError(KindInternalError, err)
	}

	sh := c.buildServerHello(suiteID, serverRandom, newSessionID, alpn, hasALPN)
	if _, err := c.sendHandshakeMessage(sh); err != nil {
		return err
	}
	if hasALPN {
		c.ctx.stateLock.Lock()
		c.ctx.negotiatedALPN = alpn
		c.ctx.stateLock.Unlock()
	}

	cert, err := selectServerCertificate(params, serverName)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if _, err := c.sendHandshakeMessage(&handshake.MessageCertificate{Certificate: cert.Chain}); err != nil {
		return err
	}

	curve, ok := elliptic.Curves[group]
	if !ok {
		return NewError(KindInternalError, fmt.Errorf("tlscore: unsupported named group %#04x", uint16(group)))
	}
	ephPriv, ephPub, err := curve.GenerateKeypair()
	if err != nil {
		return NewError(KindInternalError, err)
	}

	scheme, ok := signatureSchemeFor(cert.PrivateKey, params.SignatureSchemes)
	if !ok {
		return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: no usable signature scheme for server certificate"))
	}
	ske := &handshake.MessageServerKeyExchange{NamedCurve: uint16(group), PublicKey: ephPub}
	sig, err := signaturehash.Sign(scheme, cert.PrivateKey, serverKeyExchangeParams(clientRandom, serverRandomFixed, ske))
	if err != nil {
		return NewError(KindInternalError, err)
	}
	ske.SignatureHashAlgorithm = uint16(scheme)
	ske.Signature = sig
	if _, err := c.sendHandshakeMessage(ske); err != nil {
		return err
	}

	requestClientCert := params.ClientAuth != NoClientAuth
	if requestClientCert {
		certReq := &handshake.MessageCertificateRequest{
			CertificateTypes:       []handshake.ClientCertificateType{handshake.ClientCertificateTypeECDSASign, handshake.ClientCertificateTypeRSASign},
			SignatureHashAlgorithm: signatureSchemesToWire(params.SignatureSchemes),
		}
		if _, err := c.sendHandshakeMessage(certReq); err != nil {
			return err
		}
	}

	if _, err := c.sendHandshakeMessage(&handshake.MessageServerHelloDone{}); err != nil {
		return err
	}

	var peerChain [][]byte
	var clientKEX *handshake.MessageClientKeyExchange

clientFlight:
	for {
		msg, _, err := c.recvHandshakeMessage(d)
		if err != nil {
			return err
		}
		switch m := msg.(type) {
		case *handshake.MessageCertificate:
			peerChain = m.Certificate
			c.ctx.stateLock.Lock()
			c.ctx.peerCertChain = peerChain
			c.ctx.stateLock.Unlock()
			if h := c.ctx.hooks.load(); h != nil && h.OnRecvCertificateChain != nil {
				h.OnRecvCertificateChain(peerChain)
			}
			if len(peerChain) == 0 {
				if params.ClientAuth == RequireClientAuth {
					return NewError(KindCertificateUnknown, fmt.Errorf("tlscore: client certificate required but none was sent"))
				}
			} else if !params.InsecureSkipVerify && params.VerifyPeerChain != nil {
				if err := params.VerifyPeerChain(peerChain); err != nil {
					return NewError(KindCertificateInvalid, err)
				}
			}

		case *handshake.MessageClientKeyExchange:
			clientKEX = m
			break clientFlight

		default:
			return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: unexpected message %T in client flight", msg))
		}
	}

	if requestClientCert && len(peerChain) > 0 {
		preCVBuf := append([]byte{}, c.ctx.transcript.buf...)
		msg, _, err := c.recvHandshakeMessage(d)
		if err != nil {
			return err
		}
		cv, ok := msg.(*handshake.MessageCertificateVerify)
		if !ok {
			return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: expected CertificateVerify, got %T", msg))
		}
		pub, err := parseLeafPublicKey(peerChain[0])
		if err != nil {
			return NewError(KindCertificateInvalid, err)
		}
		if err := signaturehash.Verify(extension.SignatureScheme(cv.AlgorithmSignature), pub, preCVBuf, cv.Signature); err != nil {
			return NewError(KindDecryptError, err)
		}
	}

	preMaster, err := curve.ECDH(ephPriv, clientKEX.PublicKey)
	if err != nil {
		return NewError(KindHandshakeFailure, err)
	}
	masterSecret, err := prf.MasterSecret(preMaster, clientRandom[:], serverRandomFixed[:], hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}

	keys, err := prf.GenerateEncryptionKeys(masterSecret, clientRandom[:], serverRandomFixed[:], 0, suite.KeyLen, tls12TrafficIVLen, hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	aead, err := newAEAD(suiteID, false, keys.ServerWriteKey, keys.ServerWriteIV, keys.ClientWriteKey, keys.ClientWriteIV)
	if err != nil {
		return NewError(KindInternalError, err)
	}

	c.stageRXEpoch(aead)
	preClientFinishedBuf := append([]byte{}, c.ctx.transcript.buf...)
	msg, _, err := c.recvHandshakeMessage(d)
	if err != nil {
		return err
	}
	clientFinished, ok := msg.(*handshake.MessageFinished)
	if !ok {
		return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: expected client Finished, got %T", msg))
	}
	expected, err := prf.VerifyDataClient(masterSecret, preClientFinishedBuf, hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if !hmacEqual(expected, clientFinished.VerifyData) {
		return NewError(KindDecryptError, fmt.Errorf("tlscore: client Finished verify_data mismatch"))
	}

	data := &SessionData{
		Version:      protocol.VersionTLS12,
		CipherSuite:  suiteID,
		MasterSecret: masterSecret,
		ALPN:         alpn,
		IssuedAt:     time.Now(),
	}
	if _, err := params.SessionManager.Establish(newSessionID, data); err != nil {
		return NewError(KindInternalError, err)
	}
	if err := c.maybeIssueTLS12Ticket(tls12TicketInput{suiteID: suiteID, alpn: alpn, masterSecret: masterSecret}); err != nil {
		return err
	}

	c.stageTXEpoch(aead)
	if err := c.sendChangeCipherSpec(); err != nil {
		return err
	}
	c.swapTXEpoch()

	verifyData, err := prf.VerifyDataServer(masterSecret, c.ctx.transcript.buf, hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if _, err := c.sendHandshakeMessage(&handshake.MessageFinished{VerifyData: verifyData}); err != nil {
		return err
	}

	c.ctx.stateLock.Lock()
	c.ctx.masterSecret = masterSecret
	c.ctx.clientRandom = clientRandom
	c.ctx.serverRandom = serverRandomFixed
	c.ctx.scheduleHash = hashFn
	c.ctx.ourFinished = verifyData
	c.ctx.peerFinished = clientFinished.VerifyData
	c.ctx.established = EstablishedState
	c.ctx.stateLock.Unlock()
	c.handshakeCompleted.Store(true)
	return nil
}

// tls12TicketInput carries the fields maybeIssueTLS12Ticket needs to
// mint a RFC 5077 session ticket, gathered from whichever of
// serverFullTLS12/serverAbbreviatedTLS12 called it.
type tls12TicketInput struct {
	suiteID      ciphersuite.ID
	alpn         string
	masterSecret []byte
}

// maybeIssueTLS12Ticket sends a NewSessionTicket (RFC 5077 §3.3) when
// the configured SessionManager wants one (spec.md §4.6's use_ticket
// flag), reusing the TLS 1.3 wire message with an empty ticket_nonce
// since this engine's TicketAgeAdd/TicketNonce fields are TLS
// 1.3-only and meaningless here. Sent in plaintext, immediately before
// ChangeCipherSpec, per RFC 5077's message ordering.
func (c *Conn) maybeIssueTLS12Ticket(in tls12TicketInput) error {
	if !c.ctx.sessionManager.UseTicket() {
		return nil
	}
	ticketID, err := newRandomBytes(32)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	data := &SessionData{
		Version:      protocol.VersionTLS12,
		CipherSuite:  in.suiteID,
		MasterSecret: in.masterSecret,
		ALPN:         in.alpn,
		IssuedAt:     time.Now(),
		Lifetime:     sessionTicketLifetime,
	}
	ticket, err := c.ctx.sessionManager.Establish(ticketID, data)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if ticket == nil {
		ticket = ticketID
	}
	nst := &handshake.MessageNewSessionTicket{
		TicketLifetime: uint32(sessionTicketLifetime / time.Second),
		Ticket:         ticket,
	}
	_, err = c.sendHandshakeMessage(nst)
	return err
}
