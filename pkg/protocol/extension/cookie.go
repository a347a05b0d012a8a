// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// Cookie implements the TLS 1.3 cookie extension, RFC 8446 §4.2.2,
// carried on a HelloRetryRequest and echoed on the client's follow-up
// ClientHello2.
type Cookie struct {
	Data []byte
}

// ID implements Extension.
func (c *Cookie) ID() ID { return IDCookie }

// Marshal encodes the cookie.
func (c *Cookie) Marshal() ([]byte, error) {
	out := make([]byte, 2, 2+len(c.Data))
	binary.BigEndian.PutUint16(out, uint16(len(c.Data)))
	return append(out, c.Data...), nil
}

// Unmarshal decodes the cookie.
func (c *Cookie) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return errBufferTooSmall
	}
	n := int(binary.BigEndian.Uint16(data))
	if len(data) < 2+n {
		return errBufferTooSmall
	}
	c.Data = append([]byte{}, data[2:2+n]...)
	return nil
}
