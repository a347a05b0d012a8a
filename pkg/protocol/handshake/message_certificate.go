// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import "github.com/transportsec/tlscore/pkg/protocol/extension"

// MessageCertificate carries the sender's certificate chain. X.509
// parsing/validation is out of scope (spec.md §1): this engine only
// moves opaque DER blobs and hands the chain to the caller's
// validator callback.
//
// https://tools.ietf.org/html/rfc5246#section-7.4.2
// https://tools.ietf.org/html/rfc8446#section-4.4.2
type MessageCertificate struct {
	// RequestContext is non-empty only for TLS 1.3 post-handshake
	// (client) certificates; empty in every other case.
	RequestContext []byte
	Certificate    [][]byte

	// CertificateExtensions parallels Certificate one-to-one, TLS 1.3
	// only (RFC 8446 §4.4.2). Every entry may be empty.
	CertificateExtensions [][]extension.Extension

	isTLS13 bool
}

// Type implements Message.
func (m MessageCertificate) Type() Type { return TypeCertificate }

// SetTLS13 toggles the TLS 1.3 wire shape (request_context + a
// per-certificate extensions list) versus the TLS 1.2 shape (a bare
// 24-bit-length-prefixed chain).
func (m *MessageCertificate) SetTLS13(v bool) { m.isTLS13 = v }

// Marshal encodes the Certificate message.
func (m *MessageCertificate) Marshal() ([]byte, error) {
	var out []byte
	if m.isTLS13 {
		out = append(out, byte(len(m.RequestContext)))
		out = append(out, m.RequestContext...)
	}

	certList := make([]byte, 0, 512)
	for i, cert := range m.Certificate {
		entry := make([]byte, 3, 3+len(cert))
		entry[0] = byte(len(cert) >> 16)
		entry[1] = byte(len(cert) >> 8)
		entry[2] = byte(len(cert))
		entry = append(entry, cert...)
		certList = append(certList, entry...)

		if m.isTLS13 {
			var exts []extension.Extension
			if i < len(m.CertificateExtensions) {
				exts = m.CertificateExtensions[i]
			}
			extRaw, err := extension.Marshal(exts)
			if err != nil {
				return nil, err
			}
			certList = append(certList, extRaw...)
		}
	}

	lenPrefix := []byte{byte(len(certList) >> 16), byte(len(certList) >> 8), byte(len(certList))}
	out = append(out, lenPrefix...)
	return append(out, certList...), nil
}

// Unmarshal decodes the Certificate message.
func (m *MessageCertificate) Unmarshal(data []byte) error {
	offset := 0
	if m.isTLS13 {
		if len(data) < 1 {
			return errBufferTooSmall
		}
		n := int(data[0])
		offset = 1
		if len(data) < offset+n {
			return errBufferTooSmall
		}
		m.RequestContext = append([]byte{}, data[offset:offset+n]...)
		offset += n
	}

	if len(data) < offset+3 {
		return errBufferTooSmall
	}
	listLen := int(data[offset])<<16 | int(data[offset+1])<<8 | int(data[offset+2])
	offset += 3
	if len(data) < offset+listLen {
		return errBufferTooSmall
	}
	body := data[offset : offset+listLen]

	for len(body) > 0 {
		if len(body) < 3 {
			return errBufferTooSmall
		}
		certLen := int(body[0])<<16 | int(body[1])<<8 | int(body[2])
		body = body[3:]
		if len(body) < certLen {
			return errBufferTooSmall
		}
		m.Certificate = append(m.Certificate, append([]byte{}, body[:certLen]...))
		body = body[certLen:]

		if m.isTLS13 {
			exts, err := extension.Unmarshal(body)
			if err != nil {
				return err
			}
			m.CertificateExtensions = append(m.CertificateExtensions, exts)
			if len(body) < 2 {
				return errBufferTooSmall
			}
			extTotal := int(body[0])<<8 | int(body[1])
			body = body[2+extTotal:]
		}
	}
	return nil
}
