// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// ALPN implements application_layer_protocol_negotiation, RFC 7301.
type ALPN struct {
	ProtocolNameList []string
}

// ID implements Extension.
func (a *ALPN) ID() ID { return IDALPN }

// Marshal encodes the ProtocolNameList.
func (a *ALPN) Marshal() ([]byte, error) {
	body := make([]byte, 0, 32)
	for _, p := range a.ProtocolNameList {
		body = append(body, byte(len(p)))
		body = append(body, p...)
	}
	out := make([]byte, 2, 2+len(body))
	binary.BigEndian.PutUint16(out, uint16(len(body)))
	return append(out, body...), nil
}

// Unmarshal decodes the ProtocolNameList.
func (a *ALPN) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return errBufferTooSmall
	}
	listLen := int(binary.BigEndian.Uint16(data))
	body := data[2:]
	if len(body) < listLen {
		return errBufferTooSmall
	}
	body = body[:listLen]

	var out []string
	for len(body) > 0 {
		n := int(body[0])
		if len(body) < 1+n {
			return errBufferTooSmall
		}
		out = append(out, string(body[1:1+n]))
		body = body[1+n:]
	}
	a.ProtocolNameList = out
	return nil
}
