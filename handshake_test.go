// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Black-box handshake tests: package tlscore_test so they can pull in
// internal/testfixture (which itself imports tlscore to build
// tlscore.Certificate values) without creating an import cycle.
package tlscore_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	tlscore "github.com/transportsec/tlscore"
	"github.com/transportsec/tlscore/internal/testfixture"
	"github.com/transportsec/tlscore/pkg/crypto/ciphersuite"
	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/extension"
	"github.com/transportsec/tlscore/pkg/protocol/handshake"
)

type handshakeOutcome struct {
	conn *tlscore.Conn
	err  error
}

func runPairedHandshake(t *testing.T, clientParams *tlscore.ClientParams, serverParams *tlscore.ServerParams) (*tlscore.Conn, *tlscore.Conn) {
	t.Helper()
	clientRaw, serverRaw := net.Pipe()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clientCh := make(chan handshakeOutcome, 1)
	serverCh := make(chan handshakeOutcome, 1)
	go func() {
		conn, err := tlscore.Client(ctx, tlscore.NewNetConnBackend(clientRaw), clientParams)
		clientCh <- handshakeOutcome{conn, err}
	}()
	go func() {
		conn, err := tlscore.Server(ctx, tlscore.NewNetConnBackend(serverRaw), serverParams)
		serverCh <- handshakeOutcome{conn, err}
	}()

	cr := <-clientCh
	sr := <-serverCh
	if cr.err != nil {
		t.Fatalf("client handshake: %v", cr.err)
	}
	if sr.err != nil {
		t.Fatalf("server handshake: %v", sr.err)
	}
	return cr.conn, sr.conn
}

// TestTLS13FullHandshakeAppDataRoundTrip drives a complete TLS 1.3
// handshake and then exercises Read/Write over the resulting Conn, the
// way a caller actually uses the library once established.
func TestTLS13FullHandshakeAppDataRoundTrip(t *testing.T) {
	cert, err := testfixture.NewCA("round-trip root")
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	leaf, err := cert.IssueLeaf("roundtrip.example", []string{"roundtrip.example"}, testfixture.Ed25519)
	if err != nil {
		t.Fatalf("IssueLeaf: %v", err)
	}

	clientParams := &tlscore.ClientParams{
		ServerName: "roundtrip.example",
		CommonParams: tlscore.CommonParams{
			SupportedVersions:  []protocol.NegotiatedVersion{protocol.VersionTLS13},
			SupportedGroups:    []extension.NamedGroup{extension.X25519},
			SignatureSchemes:   []extension.SignatureScheme{extension.Ed25519},
			InsecureSkipVerify: true,
		},
	}
	serverParams := &tlscore.ServerParams{
		CommonParams: tlscore.CommonParams{
			SupportedVersions: []protocol.NegotiatedVersion{protocol.VersionTLS13},
			SupportedGroups:   []extension.NamedGroup{extension.X25519},
			SignatureSchemes:  []extension.SignatureScheme{extension.Ed25519},
			Certificates:      []tlscore.Certificate{*leaf},
		},
	}

	client, server := runPairedHandshake(t, clientParams, serverParams)
	defer client.Close()
	defer server.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	var readBuf [64]byte
	var readN int
	var readErr error
	go func() {
		defer wg.Done()
		readN, readErr = server.Read(readBuf[:])
	}()

	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	wg.Wait()
	if readErr != nil {
		t.Fatalf("Read: %v", readErr)
	}
	if string(readBuf[:readN]) != "ping" {
		t.Fatalf("expected \"ping\", got %q", readBuf[:readN])
	}
}

// TestTLS12FullHandshakeAppDataRoundTrip is TestTLS13FullHandshakeAppDataRoundTrip's
// TLS 1.2 analogue: an ECDHE-ECDSA handshake followed by an application
// data exchange in the server-to-client direction.
func TestTLS12FullHandshakeAppDataRoundTrip(t *testing.T) {
	ca, err := testfixture.NewCA("round-trip-12 root")
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	leaf, err := ca.IssueLeaf("roundtrip12.example", []string{"roundtrip12.example"}, testfixture.ECDSAP256)
	if err != nil {
		t.Fatalf("IssueLeaf: %v", err)
	}

	clientParams := &tlscore.ClientParams{
		ServerName: "roundtrip12.example",
		CommonParams: tlscore.CommonParams{
			SupportedVersions:     []protocol.NegotiatedVersion{protocol.VersionTLS12},
			CipherSuitePreference: []ciphersuite.ID{ciphersuite.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256},
			SupportedGroups:       []extension.NamedGroup{extension.Secp256r1},
			SignatureSchemes:      []extension.SignatureScheme{extension.ECDSAWithP256AndSHA256},
			InsecureSkipVerify:    true,
		},
	}
	serverParams := &tlscore.ServerParams{
		CommonParams: tlscore.CommonParams{
			SupportedVersions:     []protocol.NegotiatedVersion{protocol.VersionTLS12},
			CipherSuitePreference: []ciphersuite.ID{ciphersuite.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256},
			SupportedGroups:       []extension.NamedGroup{extension.Secp256r1},
			SignatureSchemes:      []extension.SignatureScheme{extension.ECDSAWithP256AndSHA256},
			Certificates:          []tlscore.Certificate{*leaf},
		},
	}

	client, server := runPairedHandshake(t, clientParams, serverParams)
	defer client.Close()
	defer server.Close()

	if client.ConnectionState().Version != protocol.VersionTLS12 {
		t.Fatalf("expected VersionTLS12, got %v", client.ConnectionState().Version)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var readBuf [64]byte
	var readN int
	var readErr error
	go func() {
		defer wg.Done()
		readN, readErr = client.Read(readBuf[:])
	}()

	if _, err := server.Write([]byte("pong")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	wg.Wait()
	if readErr != nil {
		t.Fatalf("Read: %v", readErr)
	}
	if string(readBuf[:readN]) != "pong" {
		t.Fatalf("expected \"pong\", got %q", readBuf[:readN])
	}
}

// fixedSessionManager resumes every lookup with the same SessionData,
// modeling a PSK both sides already agree on (e.g. an out-of-band
// pre-shared key) without needing a prior full handshake to mint one.
type fixedSessionManager struct {
	data *tlscore.SessionData
}

func (m *fixedSessionManager) Resume([]byte) (*tlscore.SessionData, bool)     { return m.data, true }
func (m *fixedSessionManager) ResumeOnce([]byte) (*tlscore.SessionData, bool) { return m.data, true }
func (m *fixedSessionManager) Establish(id []byte, data *tlscore.SessionData) ([]byte, error) {
	return nil, nil
}
func (m *fixedSessionManager) Invalidate([]byte) error { return nil }
func (m *fixedSessionManager) UseTicket() bool         { return false }

// TestTLS13PSKResumptionSkipsCertificate checks RFC 8446 §4.4.1's PSK
// shortcut: when the server accepts a pre_shared_key identity it never
// sends a Certificate/CertificateVerify pair, since the PSK itself
// authenticates the connection.
func TestTLS13PSKResumptionSkipsCertificate(t *testing.T) {
	ca, err := testfixture.NewCA("psk root")
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	leaf, err := ca.IssueLeaf("psk.example", []string{"psk.example"}, testfixture.Ed25519)
	if err != nil {
		t.Fatalf("IssueLeaf: %v", err)
	}

	sessionData := &tlscore.SessionData{
		Version:      protocol.VersionTLS13,
		CipherSuite:  ciphersuite.TLS_AES_128_GCM_SHA256,
		MasterSecret: []byte("a fixed shared secret, 32 bytes."),
	}
	ticket := []byte("opaque-test-ticket")
	manager := &fixedSessionManager{data: sessionData}

	sawCertificate := false
	clientParams := &tlscore.ClientParams{
		ServerName:    "psk.example",
		SessionTicket: ticket,
		CommonParams: tlscore.CommonParams{
			SupportedVersions:     []protocol.NegotiatedVersion{protocol.VersionTLS13},
			CipherSuitePreference: []ciphersuite.ID{ciphersuite.TLS_AES_128_GCM_SHA256},
			SupportedGroups:       []extension.NamedGroup{extension.X25519},
			SignatureSchemes:      []extension.SignatureScheme{extension.Ed25519},
			InsecureSkipVerify:    true,
			SessionManager:        manager,
			Hooks: &tlscore.Hooks{
				OnRecvHandshake13: func(msg handshake.Message) handshake.Message {
					if _, ok := msg.(*handshake.MessageCertificate); ok {
						sawCertificate = true
					}
					return msg
				},
			},
		},
	}
	serverParams := &tlscore.ServerParams{
		CommonParams: tlscore.CommonParams{
			SupportedVersions:     []protocol.NegotiatedVersion{protocol.VersionTLS13},
			CipherSuitePreference: []ciphersuite.ID{ciphersuite.TLS_AES_128_GCM_SHA256},
			SupportedGroups:       []extension.NamedGroup{extension.X25519},
			SignatureSchemes:      []extension.SignatureScheme{extension.Ed25519},
			Certificates:          []tlscore.Certificate{*leaf},
			SessionManager:        manager,
		},
	}

	client, server := runPairedHandshake(t, clientParams, serverParams)
	defer client.Close()
	defer server.Close()

	if sawCertificate {
		t.Fatal("a PSK-resumed handshake must not send a Certificate message")
	}
}
