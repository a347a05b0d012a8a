// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package testfixture issues throwaway CA and leaf certificates for
// end-to-end scenarios that need a real X.509 chain (spec.md §8
// scenarios S1/S2: a full TLS 1.3 and a full TLS 1.2 handshake, each
// authenticated by an ECDSA or Ed25519 server leaf). It
// exists so e2e tests never hard-code a PEM blob: every run gets a
// freshly issued, freshly expiring chain, the way keploy's proxy/tls
// package mints a server certificate per intercepted hostname rather
// than shipping one in the repository.
package testfixture

import (
	"crypto"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/cloudflare/cfssl/csr"
	"github.com/cloudflare/cfssl/helpers"
	"github.com/cloudflare/cfssl/initca"
	"github.com/cloudflare/cfssl/signer"
	"github.com/cloudflare/cfssl/signer/local"

	"github.com/transportsec/tlscore"
)

// KeyAlgorithm selects the leaf key type a CA issues, covering both
// signature families spec.md's SignatureSchemes defaults prefer.
type KeyAlgorithm int

// Supported leaf key algorithms.
const (
	ECDSAP256 KeyAlgorithm = iota
	Ed25519
)

// CA is a throwaway certificate authority: its root cert plus the
// cfssl local.Signer that issues leaves under it.
type CA struct {
	RootCertDER []byte
	RootCertPEM []byte
	signer      *local.Signer
}

// NewCA mints a self-signed root CA, grounded on cfssl's initca
// package the way keploy's SetupCA pregenerates one (keploy embeds a
// fixed ca.crt/ca.key pair; this mints a fresh one per test run
// instead, since these certs never need to be trusted outside the
// process under test).
func NewCA(commonName string) (*CA, error) {
	req := &csr.CertificateRequest{
		CN:         commonName,
		KeyRequest: csr.NewKeyRequest(),
	}

	rootCertPEM, _, rootKeyPEM, err := initca.New(req)
	if err != nil {
		return nil, fmt.Errorf("testfixture: generate root CA: %w", err)
	}

	rootCert, err := helpers.ParseCertificatePEM(rootCertPEM)
	if err != nil {
		return nil, fmt.Errorf("testfixture: parse root CA cert: %w", err)
	}
	rootKey, err := helpers.ParsePrivateKeyPEM(rootKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("testfixture: parse root CA key: %w", err)
	}
	rootSigner, ok := rootKey.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("testfixture: root CA key is not a crypto.Signer")
	}

	sig, err := local.NewSigner(rootSigner, rootCert, signer.DefaultSigAlgo(rootSigner), nil)
	if err != nil {
		return nil, fmt.Errorf("testfixture: build signer: %w", err)
	}

	return &CA{
		RootCertDER: rootCert.Raw,
		RootCertPEM: rootCertPEM,
		signer:      sig,
	}, nil
}

// IssueLeaf signs a leaf certificate for hosts under ca, returning it
// in the tlscore.Certificate shape: a DER chain (leaf then root) and
// the crypto.Signer holding the leaf's private key.
func (ca *CA) IssueLeaf(commonName string, hosts []string, alg KeyAlgorithm) (*tlscore.Certificate, error) {
	keyReq := csr.NewKeyRequest()
	if alg == Ed25519 {
		keyReq = &csr.KeyRequest{A: "ed25519", S: ed25519.SeedSize * 8}
	}

	req := &csr.CertificateRequest{
		CN:         commonName,
		Hosts:      hosts,
		KeyRequest: keyReq,
	}
	csrPEM, leafKeyPEM, err := csr.ParseRequest(req)
	if err != nil {
		return nil, fmt.Errorf("testfixture: build leaf CSR: %w", err)
	}

	leafKey, err := helpers.ParsePrivateKeyPEM(leafKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("testfixture: parse leaf key: %w", err)
	}
	leafSigner, ok := leafKey.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("testfixture: leaf key is not a crypto.Signer")
	}

	leafCertPEM, err := ca.signer.Sign(signer.SignRequest{
		Hosts:     hosts,
		Request:   string(csrPEM),
		Profile:   "web",
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("testfixture: sign leaf: %w", err)
	}

	leafBlock, _ := pem.Decode(leafCertPEM)
	if leafBlock == nil {
		return nil, fmt.Errorf("testfixture: decode signed leaf PEM")
	}
	leafCert, err := x509.ParseCertificate(leafBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("testfixture: parse signed leaf: %w", err)
	}

	return &tlscore.Certificate{
		Chain:      [][]byte{leafCert.Raw, ca.RootCertDER},
		PrivateKey: leafSigner,
	}, nil
}
