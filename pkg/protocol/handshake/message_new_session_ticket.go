// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import (
	"encoding/binary"

	"github.com/transportsec/tlscore/pkg/protocol/extension"
)

// MessageNewSessionTicket is a TLS 1.3 post-handshake message the
// server uses to issue a resumption PSK (spec.md §4.5's "issue ticket"
// action). A TLS 1.2 server in this engine sends this same TLS 1.3
// wire shape, with an empty ticket_nonce, when its SessionManager's
// UseTicket reports true; RFC 5077's own TLS 1.2 layout (lifetime hint
// plus ticket) is not implemented.
//
// https://tools.ietf.org/html/rfc8446#section-4.6.1
type MessageNewSessionTicket struct {
	TicketLifetime uint32
	TicketAgeAdd   uint32
	TicketNonce    []byte
	Ticket         []byte
	Extensions     []extension.Extension
}

// Type implements Message.
func (m MessageNewSessionTicket) Type() Type { return TypeNewSessionTicket }

// Marshal encodes the NewSessionTicket.
func (m *MessageNewSessionTicket) Marshal() ([]byte, error) {
	out := make([]byte, 8)
	binary.BigEndian.PutUint32(out[0:], m.TicketLifetime)
	binary.BigEndian.PutUint32(out[4:], m.TicketAgeAdd)

	out = append(out, byte(len(m.TicketNonce)))
	out = append(out, m.TicketNonce...)

	ticketLen := make([]byte, 2)
	binary.BigEndian.PutUint16(ticketLen, uint16(len(m.Ticket)))
	out = append(out, ticketLen...)
	out = append(out, m.Ticket...)

	exts, err := extension.Marshal(m.Extensions)
	if err != nil {
		return nil, err
	}
	return append(out, exts...), nil
}

// Unmarshal decodes the NewSessionTicket.
func (m *MessageNewSessionTicket) Unmarshal(data []byte) error {
	if len(data) < 9 {
		return errBufferTooSmall
	}
	m.TicketLifetime = binary.BigEndian.Uint32(data[0:])
	m.TicketAgeAdd = binary.BigEndian.Uint32(data[4:])

	n := int(data[8])
	offset := 9
	if len(data) < offset+n {
		return errBufferTooSmall
	}
	m.TicketNonce = append([]byte{}, data[offset:offset+n]...)
	offset += n

	if len(data) < offset+2 {
		return errBufferTooSmall
	}
	ticketLen := int(binary.BigEndian.Uint16(data[offset:]))
	offset += 2
	if len(data) < offset+ticketLen {
		return errBufferTooSmall
	}
	m.Ticket = append([]byte{}, data[offset:offset+ticketLen]...)
	offset += ticketLen

	exts, err := extension.Unmarshal(data[offset:])
	if err != nil {
		return err
	}
	m.Extensions = exts
	return nil
}
