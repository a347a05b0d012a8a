// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"bytes"
	"encoding/binary"
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

const tls12TrafficIVLen = 4 // implicit IV for the AEAD suites this engine negotiates, RFC 5246 §6.2.3.3

// clientContinueTLS12 drives a TLS 1.2 client handshake to completion,
// following the full (RFC 5246 §7.3) or abbreviated (§7.3 resumption)
// message order depending on whether ServerHello echoed back a
// SessionID we offered for resumption.
func (c *Conn) clientContinueTLS12(d *deadline.Deadline, params *ClientParams, chRandom handshake.Random, sh *handshake.MessageServerHello, share clientKeyShare) error {
	if offersTLS13(params.SupportedVersions) {
		if _, present := sh.DowngradeSentinel(); present {
			return NewError(KindInsufficientSecurity, fmt.Errorf("tlscore: ServerHello negotiating TLS 1.2 carries the RFC 8446 downgrade sentinel"))
		}
	}
	if sh.CipherSuiteID == nil {
		return NewError(KindDecodeError, fmt.Errorf("tlscore: ServerHello missing cipher_suite"))
	}
	suiteID := ciphersuite.ID(*sh.CipherSuiteID)
	suite, ok := ciphersuite.Suites[suiteID]
	if !ok || suite.IsTLS13 {
		return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: server selected unusable cipher suite %#04x", uint16(suiteID)))
	}
	hashFn := hashFuncFor(suiteID)

	c.ctx.stateLock.Lock()
	c.ctx.cipherSuite = suiteID
	c.ctx.negotiatedVersion = protocol.VersionTLS12
	c.ctx.negotiatedServerName = params.ServerName
	c.ctx.stateLock.Unlock()
	c.ctx.transcript.setHash(hashFn)

	if alpn, ok := findExtension[*extension.ALPN](sh.Extensions); ok && len(alpn.ProtocolNameList) > 0 {
		c.ctx.stateLock.Lock()
		c.ctx.negotiatedALPN = alpn.ProtocolNameList[0]
		c.ctx.stateLock.Unlock()
	}

	session, haveSession := lookupClientSession(params)
	clientRandom := chRandom.MarshalFixed()
	serverRandom := sh.Random.MarshalFixed()

	if haveSession && len(sh.SessionID) > 0 && bytes.Equal(sh.SessionID, params.SessionTicket) {
		return c.clientAbbreviatedTLS12(d, suiteID, suite, hashFn, session, clientRandom, serverRandom)
	}
	return c.clientFullTLS12(d, params, suiteID, suite, hashFn, clientRandom, serverRandom)
}

// serverKeyExchangeParams builds the data a TLS 1.2 ServerKeyExchange
// signs (RFC 8422 §5.4): client_random || server_random ||
// ECParameters (curve_type=named_curve, NamedCurve) || public point.
func serverKeyExchangeParams(clientRandom, serverRandom [32]byte, ske *handshake.MessageServerKeyExchange) []byte {
	var out bytes.Buffer
	out.Write(clientRandom[:])
	out.Write(serverRandom[:])
	out.WriteByte(3) // ECCurveType named_curve
	var curveBuf [2]byte
	binary.BigEndian.PutUint16(curveBuf[:], ske.NamedCurve)
	out.Write(curveBuf[:])
	out.WriteByte(byte(len(ske.PublicKey)))
	out.Write(ske.PublicKey)
	return out.Bytes()
}

// clientFullTLS12 implements the full RFC 5246 §7.3 handshake: server
// sends Certificate/ServerKeyExchange/[CertificateRequest]/
// ServerHelloDone, client answers with [Certificate]/ClientKeyExchange/
// [CertificateVerify]/ChangeCipherSpec/Finished, then consumes the
// server's ChangeCipherSpec/Finished.
func (c *Conn) clientFullTLS12(d *deadline.Deadline, params *ClientParams, suiteID ciphersuite.ID, suite ciphersuite.Suite, hashFn func() hash.Hash, clientRandom, serverRandom [32]byte) error {
	var (
		peerChain     [][]byte
		serverKEX     *handshake.MessageServerKeyExchange
		certRequested bool
		certReq       *handshake.MessageCertificateRequest
	)

serverFlight:
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
			if !params.InsecureSkipVerify && params.VerifyPeerChain != nil {
				if err := params.VerifyPeerChain(peerChain); err != nil {
					return NewError(KindCertificateInvalid, err)
				}
			}

		case *handshake.MessageServerKeyExchange:
			serverKEX = m
			if len(peerChain) == 0 {
				return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: ServerKeyExchange without a prior Certificate"))
			}
			pub, err := parseLeafPublicKey(peerChain[0])
			if err != nil {
				return NewError(KindCertificateInvalid, err)
			}
			scheme := extension.SignatureScheme(m.SignatureHashAlgorithm)
			if err := signaturehash.Verify(scheme, pub, serverKeyExchangeParams(clientRandom, serverRandom, m), m.Signature); err != nil {
				return NewError(KindDecryptError, err)
			}

		case *handshake.MessageCertificateRequest:
			certRequested = true
			certReq = m

		case *handshake.MessageServerHelloDone:
			break serverFlight

		default:
			return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: unexpected message %T in server flight", msg))
		}
	}

	if serverKEX == nil {
		return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: server omitted ServerKeyExchange"))
	}

	if certRequested && params.ClientCertificate != nil {
		if _, err := c.sendHandshakeMessage(&handshake.MessageCertificate{Certificate: params.ClientCertificate.Chain}); err != nil {
			return err
		}
	} else if certRequested {
		if _, err := c.sendHandshakeMessage(&handshake.MessageCertificate{}); err != nil {
			return err
		}
	}

	group := extension.NamedGroup(serverKEX.NamedCurve)
	curve, ok := elliptic.Curves[group]
	if !ok {
		return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: server chose unsupported curve %#04x", serverKEX.NamedCurve))
	}
	ephemeral, err := generateClientKeyShare(group)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	clientPriv := ephemeral.private

	if _, err := c.sendHandshakeMessage(&handshake.MessageClientKeyExchange{PublicKey: ephemeral.public}); err != nil {
		return err
	}

	if certRequested && params.ClientCertificate != nil {
		var peerSchemes []extension.SignatureScheme
		if sa, ok := findExtension[*extension.SignatureAlgorithms](certReq.Extensions); ok {
			peerSchemes = sa.Schemes
		} else {
			for _, alg := range certReq.SignatureHashAlgorithm {
				peerSchemes = append(peerSchemes, extension.SignatureScheme(alg))
			}
		}
		scheme, ok := signaturehash.Negotiate(params.SignatureSchemes, peerSchemes)
		if !ok {
			return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: no common client signature scheme"))
		}
		sig, err := signaturehash.Sign(scheme, params.ClientCertificate.PrivateKey, c.ctx.transcript.buf)
		if err != nil {
			return NewError(KindInternalError, err)
		}
		if _, err := c.sendHandshakeMessage(&handshake.MessageCertificateVerify{AlgorithmSignature: uint16(scheme), Signature: sig}); err != nil {
			return err
		}
	}

	preMaster, err := curve.ECDH(clientPriv, serverKEX.PublicKey)
	if err != nil {
		return NewError(KindHandshakeFailure, err)
	}
	masterSecret, err := prf.MasterSecret(preMaster, clientRandom[:], serverRandom[:], hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	return c.finishTLS12Client(d, suiteID, suite, hashFn, masterSecret, clientRandom, serverRandom)
}

// clientAbbreviatedTLS12 implements RFC 5246 §7.3's resumption order:
// the server sends ChangeCipherSpec/Finished immediately after its
// ServerHello, and the client answers in kind, reusing the cached
// master secret rather than performing a fresh key exchange.
func (c *Conn) clientAbbreviatedTLS12(d *deadline.Deadline, suiteID ciphersuite.ID, suite ciphersuite.Suite, hashFn func() hash.Hash, session *SessionData, clientRandom, serverRandom [32]byte) error {
	keys, err := prf.GenerateEncryptionKeys(session.MasterSecret, clientRandom[:], serverRandom[:], 0, suite.KeyLen, tls12TrafficIVLen, hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	aead, err := newAEAD(suiteID, false, keys.ClientWriteKey, keys.ClientWriteIV, keys.ServerWriteKey, keys.ServerWriteIV)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	c.stageRXEpoch(aead)

	serverFinished, preFinishedBuf, err := c.recvTLS12ServerFinished(d, suiteID, session.MasterSecret)
	if err != nil {
		return err
	}
	expected, err := prf.VerifyDataServer(session.MasterSecret, preFinishedBuf, hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if !hmacEqual(expected, serverFinished.VerifyData) {
		return NewError(KindDecryptError, fmt.Errorf("tlscore: server Finished verify_data mismatch"))
	}

	c.stageTXEpoch(aead)
	if err := c.sendChangeCipherSpec(); err != nil {
		return err
	}
	c.swapTXEpoch()

	verifyData, err := prf.VerifyDataClient(session.MasterSecret, c.ctx.transcript.buf, hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if _, err := c.sendHandshakeMessage(&handshake.MessageFinished{VerifyData: verifyData}); err != nil {
		return err
	}

	c.ctx.stateLock.Lock()
	c.ctx.masterSecret = session.MasterSecret
	c.ctx.clientRandom = clientRandom
	c.ctx.serverRandom = serverRandom
	c.ctx.scheduleHash = hashFn
	c.ctx.ourFinished = verifyData
	c.ctx.peerFinished = serverFinished.VerifyData
	c.ctx.established = EstablishedState
	c.ctx.stateLock.Unlock()
	c.handshakeCompleted.Store(true)
	return nil
}

// finishTLS12Client completes a full handshake: derive the key_block,
// install the single post-handshake epoch, send
// ChangeCipherSpec/Finished, then verify the server's.
func (c *Conn) finishTLS12Client(d *deadline.Deadline, suiteID ciphersuite.ID, suite ciphersuite.Suite, hashFn func() hash.Hash, masterSecret []byte, clientRandom, serverRandom [32]byte) error {
	keys, err := prf.GenerateEncryptionKeys(masterSecret, clientRandom[:], serverRandom[:], 0, suite.KeyLen, tls12TrafficIVLen, hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	aead, err := newAEAD(suiteID, false, keys.ClientWriteKey, keys.ClientWriteIV, keys.ServerWriteKey, keys.ServerWriteIV)
	if err != nil {
		return NewError(KindInternalError, err)
	}

	c.stageTXEpoch(aead)
	if err := c.sendChangeCipherSpec(); err != nil {
		return err
	}
	c.swapTXEpoch()

	verifyData, err := prf.VerifyDataClient(masterSecret, c.ctx.transcript.buf, hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if _, err := c.sendHandshakeMessage(&handshake.MessageFinished{VerifyData: verifyData}); err != nil {
		return err
	}

	c.stageRXEpoch(aead)
	serverFinished, preFinishedBuf, err := c.recvTLS12ServerFinished(d, suiteID, masterSecret)
	if err != nil {
		return err
	}
	expected, err := prf.VerifyDataServer(masterSecret, preFinishedBuf, hashFn)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	if !hmacEqual(expected, serverFinished.VerifyData) {
		return NewError(KindDecryptError, fmt.Errorf("tlscore: server Finished verify_data mismatch"))
	}

	c.ctx.stateLock.Lock()
	c.ctx.masterSecret = masterSecret
	c.ctx.clientRandom = clientRandom
	c.ctx.serverRandom = serverRandom
	c.ctx.scheduleHash = hashFn
	c.ctx.ourFinished = verifyData
	c.ctx.peerFinished = serverFinished.VerifyData
	c.ctx.established = EstablishedState
	c.ctx.stateLock.Unlock()
	c.handshakeCompleted.Store(true)
	return nil
}

// recvTLS12ServerFinished reads the server's closing flight,
// transparently filing away a NewSessionTicket (RFC 5077 §3.3: the
// server sends it just before its ChangeCipherSpec, in either the full
// or abbreviated handshake) before the Finished that always follows;
// recvHandshakeMessage consumes the ChangeCipherSpec in between. Returns the Finished plus the transcript snapshot taken just
// before it, which is what the server's own VerifyDataServer ran over.
func (c *Conn) recvTLS12ServerFinished(d *deadline.Deadline, suiteID ciphersuite.ID, masterSecret []byte) (*handshake.MessageFinished, []byte, error) {
	for {
		preMsgBuf := append([]byte{}, c.ctx.transcript.buf...)
		msg, _, err := c.recvHandshakeMessage(d)
		if err != nil {
			return nil, nil, err
		}
		switch m := msg.(type) {
		case *handshake.MessageNewSessionTicket:
			if err := c.storeTLS12Ticket(suiteID, masterSecret, m); err != nil {
				return nil, nil, err
			}
		case *handshake.MessageFinished:
			return m, preMsgBuf, nil
		default:
			return nil, nil, NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: expected server Finished, got %T", msg))
		}
	}
}

// storeTLS12Ticket files a TLS 1.2 NewSessionTicket (spec.md §4.6's
// use_ticket flag) away via the configured SessionManager, keyed by
// the ticket's own opaque bytes the way TLS 1.3 resumption already is.
func (c *Conn) storeTLS12Ticket(suiteID ciphersuite.ID, masterSecret []byte, m *handshake.MessageNewSessionTicket) error {
	c.ctx.stateLock.Lock()
	alpn := c.ctx.negotiatedALPN
	c.ctx.stateLock.Unlock()

	data := &SessionData{
		Version:      protocol.VersionTLS12,
		CipherSuite:  suiteID,
		MasterSecret: masterSecret,
		ALPN:         alpn,
		IssuedAt:     time.Now(),
		Lifetime:     time.Duration(m.TicketLifetime) * time.Second,
	}
	_, err := c.ctx.sessionManager.Establish(m.Ticket, data)
	return err
}
