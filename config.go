// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"crypto"
	"io"
	"time"

	"github.com/pion/logging"

	"github.com/transportsec/tlscore/pkg/crypto/ciphersuite"
	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/extension"
)

// ChainValidator is the caller-supplied certificate-chain validator
// (spec.md §1: X.509 parsing/validation is deliberately out of scope).
// It returns nil to accept, or an error (any error becomes
// CertificateInvalid) to reject.
type ChainValidator func(chain [][]byte) error

// Certificate pairs a DER chain with the crypto.Signer holding its
// private key, mirroring crypto/tls.Certificate's shape without
// depending on it.
type Certificate struct {
	Chain      [][]byte
	PrivateKey crypto.Signer
}

// Params is the tagged-variant configuration contract spec.md §9
// describes: one concrete type per role, both satisfying this
// interface so contextNew can dispatch without a vtable.
type Params interface {
	isParams()
	role() Role
}

// CommonParams holds configuration shared by both roles.
type CommonParams struct {
	// SupportedVersions lists acceptable negotiated versions, highest
	// preference first. Defaults to {TLS 1.3, TLS 1.2}.
	SupportedVersions []protocol.NegotiatedVersion

	// CipherSuitePreference is the server-preference cipher suite
	// order (spec.md's Non-goals require forward-secret suites only).
	CipherSuitePreference []ciphersuite.ID

	// SupportedGroups is the supported_groups / key_share preference
	// order.
	SupportedGroups []extension.NamedGroup

	// SignatureSchemes is the signature_algorithms preference order.
	SignatureSchemes []extension.SignatureScheme

	// Certificates is this endpoint's chain(s); GetCertificate
	// overrides per-SNI/per-CertificateRequest selection when set.
	Certificates   []Certificate
	GetCertificate func(serverName string) (*Certificate, error)

	// VerifyPeerChain validates the peer's certificate chain.
	VerifyPeerChain ChainValidator

	// ALPN is the advertised/accepted application protocol list.
	ALPN []string

	// SessionManager is the pluggable resumption store (spec.md §4.6);
	// defaults to DefaultSessionManager{}.
	SessionManager SessionManager

	// Hooks installs observation callbacks (spec.md §4.7).
	Hooks *Hooks

	// LoggerFactory builds the structured logger this connection uses.
	LoggerFactory logging.LoggerFactory

	// KeyLogWriter receives NSS Key Log Format lines; equivalent to
	// setting Hooks.KeyLogWriter, kept as a top-level convenience field
	// the way crypto/tls.Config.KeyLogWriter does.
	KeyLogWriter io.Writer

	// InsecureSkipVerify disables VerifyPeerChain entirely. Test-only;
	// never set this in a production configuration.
	InsecureSkipVerify bool

	// Rand is not consulted by the handshake: hello randoms, session
	// IDs, ticket values and ephemeral keys are all drawn from
	// crypto/rand, so setting it does not make a run deterministic.
	Rand io.Reader

	// HandshakeTimeout bounds how long Handshake may block; zero means
	// no timeout is imposed by the core (spec.md §5: the core itself
	// imposes no timeouts, but an embedder commonly wants one).
	HandshakeTimeout time.Duration
}

// ClientParams is the client-role configuration record.
type ClientParams struct {
	CommonParams

	// ServerName is sent, IDNA-normalized, in the server_name extension
	// (SNI) and reported in ConnectionState. It is not checked against
	// the peer certificate: VerifyPeerChain receives only the chain.
	ServerName string

	// SessionTicket, if non-empty, is looked up with
	// SessionManager.Resume; a hit is offered as the TLS 1.3 PSK
	// identity and, for a TLS 1.2 session whose ticket fits in 32
	// bytes, as the legacy session ID. Nothing is offered without it.
	SessionTicket []byte

	// EnableEarlyData is not consulted by the handshake: the client
	// never sends 0-RTT data.
	EnableEarlyData bool

	// ClientCertificate is offered only if the server sends a
	// CertificateRequest (mTLS).
	ClientCertificate *Certificate
}

func (*ClientParams) isParams()  {}
func (*ClientParams) role() Role { return RoleClient }

// ServerParams is the server-role configuration record.
type ServerParams struct {
	CommonParams

	// ClientAuth controls whether a CertificateRequest is sent.
	ClientAuth ClientAuthType

	// MaxEarlyDataSize is not consulted by the handshake: issued
	// NewSessionTicket messages carry no early_data extension and
	// 0-RTT data is never accepted.
	MaxEarlyDataSize uint32
}

func (*ServerParams) isParams()  {}
func (*ServerParams) role() Role { return RoleServer }

// ClientAuthType controls server-side client-certificate behavior.
type ClientAuthType int

// Client authentication policies.
const (
	NoClientAuth ClientAuthType = iota
	RequestClientAuth
	RequireClientAuth
)

// Role distinguishes the two handshake roles a Context may play.
type Role int

// The two roles.
const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

func defaultSupportedVersions() []protocol.NegotiatedVersion {
	return []protocol.NegotiatedVersion{protocol.VersionTLS13, protocol.VersionTLS12}
}

func defaultCipherSuitePreference() []ciphersuite.ID {
	return []ciphersuite.ID{
		ciphersuite.TLS_AES_128_GCM_SHA256,
		ciphersuite.TLS_AES_256_GCM_SHA384,
		ciphersuite.TLS_CHACHA20_POLY1305_SHA256,
		ciphersuite.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		ciphersuite.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	}
}

func defaultSupportedGroups() []extension.NamedGroup {
	return []extension.NamedGroup{extension.X25519, extension.Secp256r1, extension.Secp384r1}
}

func defaultSignatureSchemes() []extension.SignatureScheme {
	return []extension.SignatureScheme{
		extension.Ed25519,
		extension.ECDSAWithP256AndSHA256,
		extension.RSAPSSWithSHA256,
	}
}

// applyDefaults fills unset CommonParams fields, mirroring the
// teacher's validateConfig/default-filling convention in createConn.
func (c *CommonParams) applyDefaults() {
	if len(c.SupportedVersions) == 0 {
		c.SupportedVersions = defaultSupportedVersions()
	}
	if len(c.CipherSuitePreference) == 0 {
		c.CipherSuitePreference = defaultCipherSuitePreference()
	}
	if len(c.SupportedGroups) == 0 {
		c.SupportedGroups = defaultSupportedGroups()
	}
	if len(c.SignatureSchemes) == 0 {
		c.SignatureSchemes = defaultSignatureSchemes()
	}
	if c.SessionManager == nil {
		c.SessionManager = DefaultSessionManager{}
	}
	if c.LoggerFactory == nil {
		c.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if c.Hooks == nil {
		c.Hooks = &Hooks{}
	}
	if c.KeyLogWriter != nil && c.Hooks.KeyLogWriter == nil {
		c.Hooks.KeyLogWriter = c.KeyLogWriter
	}
}
