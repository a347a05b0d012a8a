// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/pion/transport/v3/deadline"

	"github.com/transportsec/tlscore/pkg/crypto/ciphersuite"
	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/extension"
	"github.com/transportsec/tlscore/pkg/protocol/handshake"
)

// sessionTicketLifetime bounds how long an issued TLS 1.3 session
// ticket may be redeemed for (RFC 8446 §4.6.1's ticket_lifetime,
// capped at 7 days by the RFC; this engine uses the same cap).
const sessionTicketLifetime = 7 * 24 * time.Hour

// runServerHandshake drives the server side of the handshake to
// completion: receive ClientHello, negotiate version/suite/group,
// loop once through a HelloRetryRequest if the client's key_share
// needs a nudge, then hand off to the TLS 1.2 or TLS 1.3 continuation.
// Mirrors runClientHandshake's structure and HRR loop, generalized to
// the server's side of the same exchange.
func runServerHandshake(ctx context.Context, c *Conn, params *ServerParams) error {
	d, stop := newHandshakeDeadline(ctx, params.HandshakeTimeout)
	defer stop()

	ch, chRaw, serverName, err := c.recvClientHello(d)
	if err != nil {
		return err
	}

	clientOffersTLS13 := false
	if sv, ok := findExtension[*extension.SupportedVersions](ch.Extensions); ok {
		for _, v := range sv.Versions {
			if protocol.NegotiatedVersion(v) == protocol.VersionTLS13 {
				clientOffersTLS13 = true
			}
		}
	}
	serverOffersTLS13 := offersTLS13(params.SupportedVersions)
	useTLS13 := clientOffersTLS13 && serverOffersTLS13

	suiteID, ok := negotiateCipherSuite(params.CipherSuitePreference, ch.CipherSuiteIDs, useTLS13)
	if !ok {
		return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: no common cipher suite"))
	}

	if !useTLS13 {
		return c.serverContinueTLS12(d, params, ch, serverName, suiteID)
	}

	clientGroups, clientShares := clientOfferedGroups(ch.Extensions)
	group, share, hrrNeeded, ok := selectKeyShare(params.SupportedGroups, clientGroups, clientShares)
	if !ok {
		return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: no common supported group"))
	}

	if hrrNeeded {
		c.ctx.transcript.setHash(hashFuncFor(suiteID))
		hrr := c.buildHelloRetryRequest(suiteID, group)
		if _, err := c.sendHandshakeMessage(hrr); err != nil {
			return err
		}
		c.ctx.transcript.substituteHelloRetryRequest(chRaw)

		ch, chRaw, _, err = c.recvClientHello(d)
		if err != nil {
			return err
		}
		clientGroups, clientShares = clientOfferedGroups(ch.Extensions)
		group, share, hrrNeeded, ok = selectKeyShare(params.SupportedGroups, clientGroups, clientShares)
		if !ok {
			return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: no common supported group after retry"))
		}
		if hrrNeeded {
			return NewError(KindHandshakeFailure, fmt.Errorf("tlscore: client failed to honor HelloRetryRequest"))
		}
	}

	return c.serverContinueTLS13(d, params, ch, chRaw, serverName, suiteID, group, share)
}

// recvClientHello receives and type-asserts the next message as a
// ClientHello, extracting the server_name extension if present.
func (c *Conn) recvClientHello(d *deadline.Deadline) (*handshake.MessageClientHello, []byte, string, error) {
	msg, raw, err := c.recvHandshakeMessage(d)
	if err != nil {
		return nil, nil, "", err
	}
	ch, ok := msg.(*handshake.MessageClientHello)
	if !ok {
		return nil, nil, "", NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: expected ClientHello, got %T", msg))
	}
	serverName := ""
	if sn, ok := findExtension[*extension.ServerName](ch.Extensions); ok {
		serverName = sn.HostName
	}
	return ch, raw, serverName, nil
}

// offersTLS13 reports whether versions names TLS 1.3, the
// condition RFC 8446 §4.1.3 uses to decide whether a ServerHello
// negotiating an older version must carry the downgrade sentinel.
func offersTLS13(versions []protocol.NegotiatedVersion) bool {
	for _, v := range versions {
		if v == protocol.VersionTLS13 {
			return true
		}
	}
	return false
}

// negotiateCipherSuite restricts preference to suites whose TLS 1.3-ness
// matches wantTLS13 before delegating to ciphersuite.Negotiate, since a
// single CipherSuitePreference list spans both versions' suites.
func negotiateCipherSuite(preference []ciphersuite.ID, offered []uint16, wantTLS13 bool) (ciphersuite.ID, bool) {
	var filtered []ciphersuite.ID
	for _, id := range preference {
		if suite, ok := ciphersuite.Suites[id]; ok && suite.IsTLS13 == wantTLS13 {
			filtered = append(filtered, id)
		}
	}
	offeredIDs := make([]ciphersuite.ID, len(offered))
	for i, id := range offered {
		offeredIDs[i] = ciphersuite.ID(id)
	}
	return ciphersuite.Negotiate(filtered, offeredIDs)
}

// clientOfferedGroups reads a ClientHello's supported_groups list and
// the groups it already sent key_share entries for.
func clientOfferedGroups(exts []extension.Extension) ([]extension.NamedGroup, map[extension.NamedGroup][]byte) {
	var groups []extension.NamedGroup
	if sg, ok := findExtension[*extension.SupportedGroups](exts); ok {
		groups = sg.Groups
	}
	shares := make(map[extension.NamedGroup][]byte)
	if ks, ok := findExtension[*extension.KeyShare](exts); ok {
		for _, e := range ks.Entries {
			shares[e.Group] = e.KeyExchange
		}
	}
	return groups, shares
}

// selectKeyShare negotiates a common group and reports whether the
// client already offered a usable share for it (RFC 8446 §4.1.4): if
// the group was negotiated but the client didn't send a share for it,
// a HelloRetryRequest is needed to name the group explicitly.
func selectKeyShare(serverPreference, clientGroups []extension.NamedGroup, shares map[extension.NamedGroup][]byte) (group extension.NamedGroup, share []byte, hrrNeeded, ok bool) {
	group, ok = negotiateGroup(serverPreference, clientGroups)
	if !ok {
		return 0, nil, false, false
	}
	if share, present := shares[group]; present {
		return group, share, false, true
	}
	return group, nil, true, true
}

// buildHelloRetryRequest builds the ServerHello-shaped HelloRetryRequest
// (RFC 8446 §4.1.4): the fixed HelloRetryRequestRandom distinguishes it
// on the wire, carrying supported_versions (selected) and a bare-group
// key_share naming what the client should retry with.
func (c *Conn) buildHelloRetryRequest(suiteID ciphersuite.ID, group extension.NamedGroup) *handshake.MessageServerHello {
	suiteWire := uint16(suiteID)
	var random handshake.Random
	random.UnmarshalFixed(handshake.HelloRetryRequestRandom)
	return &handshake.MessageServerHello{
		Version:           protocol.Version1_2,
		Random:            random,
		CipherSuiteID:     &suiteWire,
		CompressionMethod: defaultCompressionMethods()[0],
		Extensions: []extension.Extension{
			&extension.SupportedVersions{SelectedVersion: uint16(protocol.VersionTLS13)},
			&extension.KeyShare{Mode: extension.KeyShareHelloRetryRequest, Group: group},
		},
	}
}

// negotiateALPN picks the first server-preference protocol the client
// also offered.
func negotiateALPN(serverPreference, clientOffered []string) (string, bool) {
	offered := make(map[string]struct{}, len(clientOffered))
	for _, p := range clientOffered {
		offered[p] = struct{}{}
	}
	for _, p := range serverPreference {
		if _, ok := offered[p]; ok {
			return p, true
		}
	}
	return "", false
}

// extractSupportedGroups reads a ClientHello's supported_groups list,
// used by the TLS 1.2 path which (unlike TLS 1.3) needs only the
// group, not a key_share.
func extractSupportedGroups(exts []extension.Extension) []extension.NamedGroup {
	if sg, ok := findExtension[*extension.SupportedGroups](exts); ok {
		return sg.Groups
	}
	return nil
}

// resumableSession looks up a session by the SessionID a ClientHello
// offered, accepting it only if its cipher suite matches what was just
// negotiated (RFC 5246 §7.3's abbreviated handshake requires the same
// suite as the original session).
func resumableSession(params *ServerParams, sessionID []byte, suiteID ciphersuite.ID) (*SessionData, bool) {
	if len(sessionID) == 0 {
		return nil, false
	}
	session, ok := params.SessionManager.Resume(sessionID)
	if !ok || session.CipherSuite != suiteID {
		return nil, false
	}
	return session, true
}

// buildServerHello assembles the ServerHello common to both the TLS
// 1.2 full and abbreviated paths.
func (c *Conn) buildServerHello(suiteID ciphersuite.ID, random handshake.Random, sessionID []byte, alpn string, hasALPN bool) *handshake.MessageServerHello {
	suiteWire := uint16(suiteID)
	var exts []extension.Extension
	if hasALPN {
		exts = append(exts, &extension.ALPN{ProtocolNameList: []string{alpn}})
	}
	return &handshake.MessageServerHello{
		Version:           protocol.Version1_2,
		Random:            random,
		SessionID:         sessionID,
		CipherSuiteID:     &suiteWire,
		CompressionMethod: defaultCompressionMethods()[0],
		Extensions:        exts,
	}
}

// selectServerCertificate picks the certificate to present: a per-SNI
// callback takes priority over the static configured list.
func selectServerCertificate(params *ServerParams, serverName string) (*Certificate, error) {
	if params.GetCertificate != nil {
		cert, err := params.GetCertificate(serverName)
		if err != nil {
			return nil, err
		}
		if cert != nil {
			return cert, nil
		}
	}
	if len(params.Certificates) > 0 {
		return &params.Certificates[0], nil
	}
	return nil, fmt.Errorf("tlscore: no certificate configured for server handshake")
}

// signatureSchemeFor picks the first preferred signature scheme that
// fits key's algorithm family.
func signatureSchemeFor(key crypto.Signer, preferences []extension.SignatureScheme) (extension.SignatureScheme, bool) {
	var want extension.SignatureScheme
	switch key.Public().(type) {
	case ed25519.PublicKey:
		want = extension.Ed25519
	case *ecdsa.PublicKey:
		want = extension.ECDSAWithP256AndSHA256
	case *rsa.PublicKey:
		want = extension.RSAPSSWithSHA256
	default:
		return 0, false
	}
	for _, s := range preferences {
		if s == want {
			return s, true
		}
	}
	return 0, false
}

// signatureSchemesToWire narrows []extension.SignatureScheme to the
// []uint16 shape TLS 1.2's CertificateRequest.SignatureHashAlgorithm
// uses on the wire.
func signatureSchemesToWire(schemes []extension.SignatureScheme) []uint16 {
	out := make([]uint16, len(schemes))
	for i, s := range schemes {
		out[i] = uint16(s)
	}
	return out
}

// newRandomBytes fills a fresh n-byte slice, used for session IDs,
// ticket nonces and ticket age-obfuscation values.
func newRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
