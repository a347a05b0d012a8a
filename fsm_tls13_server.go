// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"encoding/binary"
	"fmt"
	"hash"
	"time"

	"github.com/pion/transport/v3/deadline"

	"github.com/transportsec/tlscore/pkg/crypto/ciphersuite"
	"github.com/transportsec/tlscore/pkg/crypto/elliptic"
	"github.com/transportsec/tlscore/pkg/crypto/keyschedule"
	"github.com/transportsec/tlscore/pkg/crypto/signaturehash"
	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/extension"
	"github.com/transportsec/tlscore/pkg/protocol/handshake"
)

// serverContinueTLS13 drives the rest of a TLS 1.3 server handshake
// once the suite, group and client key_share have been settled.
// Mirrors clientContinueTLS13's key-schedule and record-epoch timing,
// reflected: the server's own write epoch moves to application traffic
// immediately after it sends its Finished, while its read epoch stays
// on handshake traffic until the client's Finished arrives (RFC 8446
// §7.2's per-direction key-change table, read from the server's side).
func (c *Conn) serverContinueTLS13(d *deadline.Deadline, params *ServerParams, ch *handshake.MessageClientHello, chRaw []byte, serverName string, suiteID ciphersuite.ID, group extension.NamedGroup, peerShare []byte) error {
	suite := ciphersuite.Suites[suiteID]
	hashFn := hashFuncFor(suiteID)

	c.ctx.stateLock.Lock()
	c.ctx.cipherSuite = suiteID
	c.ctx.negotiatedVersion = protocol.VersionTLS13
	c.ctx.negotiatedServerName = serverName
	c.ctx.stateLock.Unlock()
	c.ctx.transcript.setHash(hashFn)

	session, pskIndex, usePSK := c.resolvePSK(params, ch, chRaw, suite)

	curve := elliptic.Curves[group]
	ephPriv, ephPub, err := curve.GenerateKeypair()
	if err != nil {
		return NewError(KindInternalError, err)
	}
	dhe, err := curve.ECDH(ephPriv, peerShare)
	if err != nil {
		return NewError(KindHandshakeFailure, err)
	}

	schedule := keyschedule.NewSchedule(hashFn)
	if usePSK {
		schedule.EarlySecret(session.MasterSecret)
	} else {
		schedule.EarlySecret(nil)
	}
	schedule.HandshakeSecret(dhe)

	serverRandom, err := newRandom()
	if err != nil {
		return err
	}
	suiteWire := uint16(suiteID)

	shExts := []extension.Extension{
		&extension.SupportedVersions{SelectedVersion: uint16(protocol.VersionTLS13)},
		&extension.KeyShare{Mode: extension.KeyShareServerHello, Entry: extension.KeyShareEntry{Group: group, KeyExchange: ephPub}},
	}
	if usePSK {
		shExts = append(shExts, &extension.PreSharedKey{SelectedIdentity: uint16(pskIndex)})
	}

	sh := &handshake.MessageServerHello{
		Version:           protocol.Version1_2,
		Random:            serverRandom,
		SessionID:         ch.SessionID,
		CipherSuiteID:     &suiteWire,
		CompressionMethod: defaultCompressionMethods()[0],
		Extensions:        shExts,
	}
	if _, err := c.sendHandshakeMessage(sh); err != nil {
		return err
	}

	shHash := c.ctx.transcript.snapshot()
	chts := schedule.ClientHandshakeTrafficSecret(shHash)
	shts := schedule.ServerHandshakeTrafficSecret(shHash)

	chtsKeys := keyschedule.DeriveTrafficKeys(hashFn, chts, suite.KeyLen, trafficIVLen)
	shtsKeys := keyschedule.DeriveTrafficKeys(hashFn, shts, suite.KeyLen, trafficIVLen)
	handshakeAEAD, err := newAEAD(suiteID, true, shtsKeys.Key, shtsKeys.IV, chtsKeys.Key, chtsKeys.IV)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	c.installTXEpochNow(handshakeAEAD)
	c.installRXEpochNow(handshakeAEAD)

	chRandomFixed := ch.Random.MarshalFixed()
	c.logSecret(keyLogClientHandshakeTraffic, chRandomFixed, chts)
	c.logSecret(keyLogServerHandshakeTraffic, chRandomFixed, shts)

	var alpnOffered []string
	if alpn, ok := findExtension[*extension.ALPN](ch.Extensions); ok {
		alpnOffered = alpn.ProtocolNameList
	}
	negotiatedALPN, hasALPN := negotiateALPN(params.ALPN, alpnOffered)

	var eeExts []extension.Extension
	if hasALPN {
		eeExts = append(eeExts, &extension.ALPN{ProtocolNameList: []string{negotiatedALPN}})
		c.ctx.stateLock.Lock()
		c.ctx.negotiatedALPN = negotiatedALPN
		c.ctx.stateLock.Unlock()
	}
	if _, err := c.sendHandshakeMessage(&handshake.MessageEncryptedExtensions{Extensions: eeExts}); err != nil {
		return err
	}

	requestClientCert := !usePSK && params.ClientAuth != NoClientAuth
	if requestClientCert {
		certReq := &handshake.MessageCertificateRequest{
			Extensions: []extension.Extension{&extension.SignatureAlgorithms{Schemes: params.SignatureSchemes}},
		}
		certReq.SetTLS13(true)
		if _, err := c.sendHandshakeMessage(certReq); err != nil {
			return err
		}
	}

	if !usePSK {
		cert, err := selectServerCertificate(params, serverName)
		if err != nil {
			return NewError(KindInternalError, err)
		}
		certMsg := &handshake.MessageCertificate{Certificate: cert.Chain}
		certMsg.SetTLS13(true)
		if _, err := c.sendHandshakeMessage(certMsg); err != nil {
			return err
		}

		scheme, ok := signatureSchemeFor(cert.PrivateKey, params.SignatureSchemes)
		if !ok {
			return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: no usable signature scheme for server certificate"))
		}
		preCV := c.ctx.transcript.snapshot()
		sig, err := signaturehash.Sign(scheme, cert.PrivateKey, certificateVerifyContent(true, preCV))
		if err != nil {
			return NewError(KindInternalError, err)
		}
		cv := &handshake.MessageCertificateVerify{AlgorithmSignature: uint16(scheme), Signature: sig}
		if _, err := c.sendHandshakeMessage(cv); err != nil {
			return err
		}
	}

	preFinishedHash := c.ctx.transcript.snapshot()
	serverVerifyData := keyschedule.VerifyData(hashFn, shts, preFinishedHash)
	if _, err := c.sendHandshakeMessage(&handshake.MessageFinished{VerifyData: serverVerifyData}); err != nil {
		return err
	}
	c.ctx.stateLock.Lock()
	c.ctx.ourFinished = serverVerifyData
	c.ctx.stateLock.Unlock()

	masterSecret := schedule.MasterSecret()
	finishedHash := c.ctx.transcript.snapshot()
	clientAppSecret := schedule.ClientApplicationTrafficSecret0(finishedHash)
	serverAppSecret := schedule.ServerApplicationTrafficSecret0(finishedHash)
	exporterSecret := schedule.ExporterMasterSecret(finishedHash)

	clientAppKeys := keyschedule.DeriveTrafficKeys(hashFn, clientAppSecret, suite.KeyLen, trafficIVLen)
	serverAppKeys := keyschedule.DeriveTrafficKeys(hashFn, serverAppSecret, suite.KeyLen, trafficIVLen)
	appAEAD, err := newAEAD(suiteID, true, serverAppKeys.Key, serverAppKeys.IV, clientAppKeys.Key, clientAppKeys.IV)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	c.installTXEpochNow(appAEAD)
	c.logSecret(keyLogServerTraffic, chRandomFixed, serverAppSecret)
	c.logSecret(keyLogExporterSecret, chRandomFixed, exporterSecret)

	var peerChain [][]byte
	for {
		preSnapshot := c.ctx.transcript.snapshot()
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

		case *handshake.MessageCertificateVerify:
			if len(peerChain) == 0 {
				return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: CertificateVerify without a prior Certificate"))
			}
			pub, err := parseLeafPublicKey(peerChain[0])
			if err != nil {
				return NewError(KindCertificateInvalid, err)
			}
			content := certificateVerifyContent(false, preSnapshot)
			if err := signaturehash.Verify(extension.SignatureScheme(m.AlgorithmSignature), pub, content, m.Signature); err != nil {
				return NewError(KindDecryptError, err)
			}

		case *handshake.MessageFinished:
			expected := keyschedule.VerifyData(hashFn, chts, preSnapshot)
			if !hmacEqual(expected, m.VerifyData) {
				return NewError(KindDecryptError, fmt.Errorf("tlscore: client Finished verify_data mismatch"))
			}
			c.ctx.stateLock.Lock()
			c.ctx.peerFinished = m.VerifyData
			c.ctx.stateLock.Unlock()

			c.installRXEpochNow(appAEAD)
			c.logSecret(keyLogClientTraffic, chRandomFixed, clientAppSecret)

			resumptionHash := c.ctx.transcript.snapshot()
			resumptionSecret := schedule.ResumptionMasterSecret(resumptionHash)

			c.ctx.stateLock.Lock()
			c.ctx.masterSecret = masterSecret
			c.ctx.exporterMasterSecret = exporterSecret
			c.ctx.resumptionSecret = resumptionSecret
			c.ctx.clientAppSecret = clientAppSecret
			c.ctx.serverAppSecret = serverAppSecret
			c.ctx.scheduleHash = hashFn
			c.ctx.established = EstablishedState
			c.ctx.stateLock.Unlock()
			c.handshakeCompleted.Store(true)

			return c.issueSessionTicket(suiteID, negotiatedALPN)

		default:
			return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: unexpected message %T in client flight", msg))
		}
	}
}

// resolvePSK tries each identity a ClientHello's pre_shared_key
// extension offers against the SessionManager, verifying the binder
// (RFC 8446 §4.2.11.2) before accepting resumption.
func (c *Conn) resolvePSK(params *ServerParams, ch *handshake.MessageClientHello, chRaw []byte, suite ciphersuite.Suite) (*SessionData, int, bool) {
	pskExt, ok := findExtension[*extension.PreSharedKey](ch.Extensions)
	if !ok || !pskExt.IsClientHello {
		return nil, 0, false
	}
	if _, ok := findExtension[*extension.PSKKeyExchangeModes](ch.Extensions); !ok {
		return nil, 0, false
	}

	for i, identity := range pskExt.Identities {
		if i >= len(pskExt.Binders) {
			continue
		}
		session, ok := params.SessionManager.Resume(identity.Identity)
		if !ok || session.CipherSuite != suite.ID {
			continue
		}
		binderHash := hashFuncFor(session.CipherSuite)
		schedule := keyschedule.NewSchedule(binderHash)
		schedule.EarlySecret(session.MasterSecret)
		binderKey := schedule.BinderKey(session.MasterSecret, "res binder")
		if c.verifyPSKBinder(chRaw, pskExt, i, binderHash, binderKey) {
			return session, i, true
		}
	}
	return nil, 0, false
}

// verifyPSKBinder recomputes the binder a ClientHello carries for
// identity index i and compares it in constant time, reconstructing
// the same "transcript-so-far || ClientHello-with-binders-zeroed"
// input attachPSKBinder produced on the client side.
func (c *Conn) verifyPSKBinder(chRaw []byte, psk *extension.PreSharedKey, index int, binderHash func() hash.Hash, binderKey []byte) bool {
	trailer := 2 + 1 + binderHash().Size()
	if len(chRaw) < trailer || len(chRaw) > len(c.ctx.transcript.buf) {
		return false
	}
	truncated := chRaw[:len(chRaw)-trailer]
	prefix := c.ctx.transcript.buf[:len(c.ctx.transcript.buf)-len(chRaw)]

	h := binderHash()
	h.Write(prefix)    //nolint:errcheck
	h.Write(truncated) //nolint:errcheck
	transcriptHash := h.Sum(nil)

	expected := keyschedule.VerifyData(binderHash, binderKey, transcriptHash)
	return hmacEqual(expected, psk.Binders[index])
}

// issueSessionTicket sends one NewSessionTicket (RFC 8446 §4.6.1) over
// the already-installed application write epoch, skipped entirely
// when the configured SessionManager has no use for tickets.
func (c *Conn) issueSessionTicket(suiteID ciphersuite.ID, alpn string) error {
	if !c.ctx.sessionManager.UseTicket() {
		return nil
	}

	nonce, err := newRandomBytes(8)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	ticketID, err := newRandomBytes(32)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	ageAddBytes, err := newRandomBytes(4)
	if err != nil {
		return NewError(KindInternalError, err)
	}

	c.ctx.stateLock.Lock()
	resumptionSecret := c.ctx.resumptionSecret
	hashFn := c.ctx.scheduleHash
	c.ctx.stateLock.Unlock()

	schedule := keyschedule.NewSchedule(hashFn)
	psk := schedule.ResumptionPSK(resumptionSecret, nonce)

	data := &SessionData{
		Version:      protocol.VersionTLS13,
		CipherSuite:  suiteID,
		MasterSecret: psk,
		ALPN:         alpn,
		IssuedAt:     time.Now(),
		Lifetime:     sessionTicketLifetime,
		AgeAdd:       binary.BigEndian.Uint32(ageAddBytes),
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
		TicketAgeAdd:   data.AgeAdd,
		TicketNonce:    nonce,
		Ticket:         ticket,
	}
	raw, err := (&handshake.Handshake{Message: nst}).Marshal()
	if err != nil {
		return NewError(KindInternalError, err)
	}
	return c.writeRecord(protocol.ContentTypeHandshake, raw)
}
