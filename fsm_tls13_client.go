// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"fmt"

	"github.com/pion/transport/v3/deadline"

	"github.com/transportsec/tlscore/pkg/crypto/ciphersuite"
	"github.com/transportsec/tlscore/pkg/crypto/elliptic"
	"github.com/transportsec/tlscore/pkg/crypto/keyschedule"
	"github.com/transportsec/tlscore/pkg/crypto/signaturehash"
	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/extension"
	"github.com/transportsec/tlscore/pkg/protocol/handshake"
)

const trafficIVLen = 12

// clientContinueTLS13 drives the rest of a TLS 1.3 client handshake
// once ServerHello has named the negotiated suite and key_share. It
// implements RFC 8446 §7.2/§7.3/§7.4/§4.4's verification and key
// schedule rules in the order the wire actually presents them.
func (c *Conn) clientContinueTLS13(d *deadline.Deadline, params *ClientParams, chRandom handshake.Random, sh *handshake.MessageServerHello, share clientKeyShare, session *SessionData, haveSession bool) error {
	suiteID := ciphersuite.ID(*sh.CipherSuiteID)
	suite, ok := ciphersuite.Suites[suiteID]
	if !ok || !suite.IsTLS13 {
		return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: server selected unusable cipher suite %#04x", uint16(suiteID)))
	}
	hashFn := hashFuncFor(suiteID)

	c.ctx.stateLock.Lock()
	c.ctx.cipherSuite = suiteID
	c.ctx.negotiatedVersion = protocol.VersionTLS13
	c.ctx.negotiatedServerName = params.ServerName
	c.ctx.stateLock.Unlock()
	c.ctx.transcript.setHash(hashFn)

	ks, ok := findExtension[*extension.KeyShare](sh.Extensions)
	if !ok || ks.Entry.Group != share.group {
		return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: ServerHello key_share does not match offered group"))
	}
	dhe, err := elliptic.Curves[share.group].ECDH(share.private, ks.Entry.KeyExchange)
	if err != nil {
		return NewError(KindHandshakeFailure, err)
	}

	usePSK := false
	if pskExt, ok := findExtension[*extension.PreSharedKey](sh.Extensions); ok && haveSession && pskExt.SelectedIdentity == 0 {
		usePSK = true
	}

	schedule := keyschedule.NewSchedule(hashFn)
	if usePSK {
		schedule.EarlySecret(session.MasterSecret)
	} else {
		schedule.EarlySecret(nil)
	}
	schedule.HandshakeSecret(dhe)

	shHash := c.ctx.transcript.snapshot()
	chts := schedule.ClientHandshakeTrafficSecret(shHash)
	shts := schedule.ServerHandshakeTrafficSecret(shHash)

	chtsKeys := keyschedule.DeriveTrafficKeys(hashFn, chts, suite.KeyLen, trafficIVLen)
	shtsKeys := keyschedule.DeriveTrafficKeys(hashFn, shts, suite.KeyLen, trafficIVLen)
	handshakeAEAD, err := newAEAD(suiteID, true, chtsKeys.Key, chtsKeys.IV, shtsKeys.Key, shtsKeys.IV)
	if err != nil {
		return NewError(KindInternalError, err)
	}
	c.installTXEpochNow(handshakeAEAD)
	c.installRXEpochNow(handshakeAEAD)

	chRandomFixed := chRandom.MarshalFixed()
	c.logSecret(keyLogClientHandshakeTraffic, chRandomFixed, chts)
	c.logSecret(keyLogServerHandshakeTraffic, chRandomFixed, shts)

	var (
		certRequested bool
		certReq       *handshake.MessageCertificateRequest
		peerChain     [][]byte
	)

	for {
		preSnapshot := c.ctx.transcript.snapshot()
		msg, _, err := c.recvHandshakeMessage(d)
		if err != nil {
			return err
		}

		switch m := msg.(type) {
		case *handshake.MessageEncryptedExtensions:
			if alpn, ok := findExtension[*extension.ALPN](m.Extensions); ok && len(alpn.ProtocolNameList) > 0 {
				c.ctx.stateLock.Lock()
				c.ctx.negotiatedALPN = alpn.ProtocolNameList[0]
				c.ctx.stateLock.Unlock()
			}

		case *handshake.MessageCertificateRequest:
			certRequested = true
			certReq = m

		case *handshake.MessageCertificate:
			peerChain = m.Certificate
			c.ctx.stateLock.Lock()
			c.ctx.peerCertChain = peerChain
			c.ctx.stateLock.Unlock()
			if h := c.ctx.hooks.load(); h != nil && h.OnRecvCertificateChain != nil {
				h.OnRecvCertificateChain(peerChain)
			}
			if !usePSK && !params.InsecureSkipVerify && params.VerifyPeerChain != nil {
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
			content := certificateVerifyContent(true, preSnapshot)
			if err := signaturehash.Verify(extension.SignatureScheme(m.AlgorithmSignature), pub, content, m.Signature); err != nil {
				return NewError(KindDecryptError, err)
			}

		case *handshake.MessageFinished:
			expected := keyschedule.VerifyData(hashFn, shts, preSnapshot)
			if !hmacEqual(expected, m.VerifyData) {
				return NewError(KindDecryptError, fmt.Errorf("tlscore: server Finished verify_data mismatch"))
			}
			c.ctx.stateLock.Lock()
			c.ctx.peerFinished = m.VerifyData
			c.ctx.stateLock.Unlock()

			masterSecret := schedule.MasterSecret()
			finishedHash := c.ctx.transcript.snapshot()
			clientAppSecret := schedule.ClientApplicationTrafficSecret0(finishedHash)
			serverAppSecret := schedule.ServerApplicationTrafficSecret0(finishedHash)
			exporterSecret := schedule.ExporterMasterSecret(finishedHash)

			clientAppKeys := keyschedule.DeriveTrafficKeys(hashFn, clientAppSecret, suite.KeyLen, trafficIVLen)
			serverAppKeys := keyschedule.DeriveTrafficKeys(hashFn, serverAppSecret, suite.KeyLen, trafficIVLen)
			appAEAD, err := newAEAD(suiteID, true, clientAppKeys.Key, clientAppKeys.IV, serverAppKeys.Key, serverAppKeys.IV)
			if err != nil {
				return NewError(KindInternalError, err)
			}
			c.installRXEpochNow(appAEAD)
			c.logSecret(keyLogServerTraffic, chRandomFixed, serverAppSecret)
			c.logSecret(keyLogExporterSecret, chRandomFixed, exporterSecret)

			if certRequested && params.ClientCertificate != nil {
				clientCert := &handshake.MessageCertificate{
					RequestContext: certReq.CertificateRequestContext,
					Certificate:    params.ClientCertificate.Chain,
				}
				clientCert.SetTLS13(true)
				if _, err := c.sendHandshakeMessage(clientCert); err != nil {
					return err
				}

				var peerSchemes []extension.SignatureScheme
				if sa, ok := findExtension[*extension.SignatureAlgorithms](certReq.Extensions); ok {
					peerSchemes = sa.Schemes
				}
				scheme, ok := signaturehash.Negotiate(params.SignatureSchemes, peerSchemes)
				if !ok {
					return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: no common client signature scheme"))
				}
				preCV := c.ctx.transcript.snapshot()
				sig, err := signaturehash.Sign(scheme, params.ClientCertificate.PrivateKey, certificateVerifyContent(false, preCV))
				if err != nil {
					return NewError(KindInternalError, err)
				}
				cv := &handshake.MessageCertificateVerify{AlgorithmSignature: uint16(scheme), Signature: sig}
				if _, err := c.sendHandshakeMessage(cv); err != nil {
					return err
				}
			} else if certRequested {
				emptyCert := &handshake.MessageCertificate{RequestContext: certReq.CertificateRequestContext}
				emptyCert.SetTLS13(true)
				if _, err := c.sendHandshakeMessage(emptyCert); err != nil {
					return err
				}
			}

			chFinishedHash := c.ctx.transcript.snapshot()
			verifyData := keyschedule.VerifyData(hashFn, chts, chFinishedHash)
			finishedMsg := &handshake.MessageFinished{VerifyData: verifyData}
			if _, err := c.sendHandshakeMessage(finishedMsg); err != nil {
				return err
			}
			c.ctx.stateLock.Lock()
			c.ctx.ourFinished = verifyData
			c.ctx.stateLock.Unlock()

			c.installTXEpochNow(appAEAD)
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
			return nil

		default:
			return NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: unexpected message %T in server flight", msg))
		}
	}
}
