// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"encoding/binary"

	"github.com/transportsec/tlscore/pkg/protocol/extension"
)

// ClientCertificateType identifies the type of client certificate
// being requested (RFC 5246 §7.4.4). TLS 1.3 drops this field in
// favor of signature_algorithms alone.
type ClientCertificateType byte

// Client certificate types still in use.
const (
	ClientCertificateTypeRSASign   ClientCertificateType = 1
	ClientCertificateTypeECDSASign ClientCertificateType = 64
)

// MessageCertificateRequest is sent by a server that wants to
// authenticate the client via a certificate.
//
// https://tools.ietf.org/html/rfc5246#section-7.4.4
// https://tools.ietf.org/html/rfc8446#section-4.3.2
type MessageCertificateRequest struct {
	CertificateTypes       []ClientCertificateType
	SignatureHashAlgorithm []uint16

	// CertificateRequestContext and Extensions are TLS 1.3 only.
	CertificateRequestContext []byte
	Extensions                []extension.Extension

	isTLS13 bool
}

// SetTLS13 toggles the TLS 1.3 wire shape.
func (m *MessageCertificateRequest) SetTLS13(v bool) { m.isTLS13 = v }

// Type implements Message.
func (m MessageCertificateRequest) Type() Type { return TypeCertificateRequest }

// Marshal encodes the CertificateRequest.
func (m *MessageCertificateRequest) Marshal() ([]byte, error) {
	if m.isTLS13 {
		out := append([]byte{byte(len(m.CertificateRequestContext))}, m.CertificateRequestContext...)
		exts, err := extension.Marshal(m.Extensions)
		if err != nil {
			return nil, err
		}
		return append(out, exts...), nil
	}

	out := []byte{byte(len(m.CertificateTypes))}
	for _, ct := range m.CertificateTypes {
		out = append(out, byte(ct))
	}

	sigAlgs := make([]byte, 2+2*len(m.SignatureHashAlgorithm))
	binary.BigEndian.PutUint16(sigAlgs, uint16(2*len(m.SignatureHashAlgorithm)))
	for i, alg := range m.SignatureHashAlgorithm {
		binary.BigEndian.PutUint16(sigAlgs[2+2*i:], alg)
	}
	out = append(out, sigAlgs...)

	// CAs (distinguished_names): we act as a relying party that does
	// not constrain the client to a CA set, so this is always empty.
	return append(out, 0x00, 0x00), nil
}

// Unmarshal decodes the CertificateRequest.
func (m *MessageCertificateRequest) Unmarshal(data []byte) error {
	if m.isTLS13 {
		if len(data) < 1 {
			return errBufferTooSmall
		}
		n := int(data[0])
		if len(data) < 1+n {
			return errBufferTooSmall
		}
		m.CertificateRequestContext = append([]byte{}, data[1:1+n]...)
		exts, err := extension.Unmarshal(data[1+n:])
		if err != nil {
			return err
		}
		m.Extensions = exts
		return nil
	}

	if len(data) < 1 {
		return errBufferTooSmall
	}
	n := int(data[0])
	offset := 1
	if len(data) < offset+n {
		return errBufferTooSmall
	}
	for _, b := range data[offset : offset+n] {
		m.CertificateTypes = append(m.CertificateTypes, ClientCertificateType(b))
	}
	offset += n

	if len(data) < offset+2 {
		return errBufferTooSmall
	}
	sigLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if len(data) < offset+sigLen || sigLen%2 != 0 {
		return errBufferTooSmall
	}
	for i := offset; i < offset+sigLen; i += 2 {
		m.SignatureHashAlgorithm = append(m.SignatureHashAlgorithm, binary.BigEndian.Uint16(data[i:]))
	}
	return nil
}
