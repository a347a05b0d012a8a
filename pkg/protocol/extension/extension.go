// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package extension implements the TLS extension wire format
// (id uint16, length uint16, opaque data) and the mandatory
// extensions spec.md §6 names. Unknown extensions are preserved
// opaquely, per spec.md §4.1.
package extension

import (
	"encoding/binary"
)

// ID is the two-byte extension identifier.
type ID uint16

// Extension IDs this engine understands natively. Every other ID is
// preserved as a Raw extension.
const (
	IDServerName             ID = 0
	IDSupportedPointFormats  ID = 11
	IDSupportedGroups        ID = 10
	IDSignatureAlgorithms    ID = 13
	IDALPN                   ID = 16
	IDExtendedMasterSecret   ID = 23
	IDSessionTicket          ID = 35
	IDPreSharedKey           ID = 41
	IDEarlyData              ID = 42
	IDSupportedVersions      ID = 43
	IDCookie                 ID = 44
	IDPSKKeyExchangeModes    ID = 45
	IDKeyShare               ID = 51
	IDRenegotiationInfo      ID = 0xff01
)

// Extension is one parsed or opaque TLS extension.
type Extension interface {
	ID() ID
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// Raw is a preserved-opaquely extension: any ID this engine does not
// specifically model.
type Raw struct {
	ExtensionID ID
	Data        []byte
}

// ID implements Extension.
func (r *Raw) ID() ID { return r.ExtensionID }

// Marshal implements Extension.
func (r *Raw) Marshal() ([]byte, error) { return append([]byte{}, r.Data...), nil }

// Unmarshal implements Extension.
func (r *Raw) Unmarshal(data []byte) error {
	r.Data = append([]byte{}, data...)
	return nil
}

// Marshal encodes a list of extensions into the
// extensions<0..2^16-1> wire form (length-prefixed list of
// id/length/data triples); an empty list encodes as a zero length.
func Marshal(exts []Extension) ([]byte, error) {
	body := make([]byte, 0, 64)
	for _, e := range exts {
		data, err := e.Marshal()
		if err != nil {
			return nil, err
		}
		entry := make([]byte, 4)
		binary.BigEndian.PutUint16(entry, uint16(e.ID()))
		binary.BigEndian.PutUint16(entry[2:], uint16(len(data)))
		body = append(body, entry...)
		body = append(body, data...)
	}
	out := make([]byte, 2, 2+len(body))
	binary.BigEndian.PutUint16(out, uint16(len(body)))
	return append(out, body...), nil
}

// Unmarshal decodes the extensions<0..2^16-1> wire form.
func Unmarshal(data []byte) ([]Extension, error) {
	if len(data) < 2 {
		return nil, errBufferTooSmall
	}
	totalLen := int(binary.BigEndian.Uint16(data))
	if len(data) < 2+totalLen {
		return nil, errBufferTooSmall
	}
	body := data[2 : 2+totalLen]

	out := []Extension{}
	for len(body) > 0 {
		if len(body) < 4 {
			return nil, errBufferTooSmall
		}
		id := ID(binary.BigEndian.Uint16(body))
		length := int(binary.BigEndian.Uint16(body[2:]))
		if len(body) < 4+length {
			return nil, errBufferTooSmall
		}
		extData := body[4 : 4+length]

		ext, err := newExtension(id)
		if err != nil {
			return nil, err
		}
		if err := ext.Unmarshal(extData); err != nil {
			return nil, err
		}
		out = append(out, ext)
		body = body[4+length:]
	}
	return out, nil
}

func newExtension(id ID) (Extension, error) {
	switch id {
	case IDServerName:
		return &ServerName{}, nil
	case IDSupportedGroups:
		return &SupportedGroups{}, nil
	case IDSignatureAlgorithms:
		return &SignatureAlgorithms{}, nil
	case IDALPN:
		return &ALPN{}, nil
	case IDExtendedMasterSecret:
		return &UseExtendedMasterSecret{}, nil
	case IDSupportedVersions:
		return &SupportedVersions{}, nil
	case IDKeyShare:
		return &KeyShare{}, nil
	case IDPreSharedKey:
		return &PreSharedKey{}, nil
	case IDPSKKeyExchangeModes:
		return &PSKKeyExchangeModes{}, nil
	case IDCookie:
		return &Cookie{}, nil
	case IDRenegotiationInfo:
		return &RenegotiationInfo{}, nil
	case IDSupportedPointFormats:
		return &SupportedPointFormats{}, nil
	default:
		return &Raw{ExtensionID: id}, nil
	}
}
