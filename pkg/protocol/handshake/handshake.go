// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import "github.com/transportsec/tlscore/pkg/protocol"

// Message is one handshake message body.
type Message interface {
	Type() Type
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// Handshake wraps a Message with its header, the unit the record
// layer carries as handshake-content record bodies.
type Handshake struct {
	Header  Header
	Message Message
}

// ContentType is the record content type a Handshake rides in.
func (h *Handshake) ContentType() protocol.ContentType { return protocol.ContentTypeHandshake }

// Marshal encodes the header and message body.
func (h *Handshake) Marshal() ([]byte, error) {
	body, err := h.Message.Marshal()
	if err != nil {
		return nil, err
	}
	h.Header.Type = h.Message.Type()
	h.Header.Length = uint32(len(body))

	headerRaw, err := h.Header.Marshal()
	if err != nil {
		return nil, err
	}
	return append(headerRaw, body...), nil
}

// Unmarshal decodes a handshake header and dispatches the body to the
// matching Message implementation.
func (h *Handshake) Unmarshal(data []byte) error {
	if err := h.Header.Unmarshal(data); err != nil {
		return err
	}
	if uint32(len(data)-HeaderSize) < h.Header.Length {
		return errBufferTooSmall
	}
	body := data[HeaderSize : HeaderSize+int(h.Header.Length)]

	msg, err := newMessage(h.Header.Type)
	if err != nil {
		return err
	}
	if err := msg.Unmarshal(body); err != nil {
		return err
	}
	h.Message = msg
	return nil
}

func newMessage(t Type) (Message, error) {
	switch t {
	case TypeClientHello:
		return &MessageClientHello{}, nil
	case TypeServerHello:
		return &MessageServerHello{}, nil
	case TypeNewSessionTicket:
		return &MessageNewSessionTicket{}, nil
	case TypeEncryptedExtensions:
		return &MessageEncryptedExtensions{}, nil
	case TypeCertificate:
		return &MessageCertificate{}, nil
	case TypeServerKeyExchange:
		return &MessageServerKeyExchange{}, nil
	case TypeCertificateRequest:
		return &MessageCertificateRequest{}, nil
	case TypeServerHelloDone:
		return &MessageServerHelloDone{}, nil
	case TypeCertificateVerify:
		return &MessageCertificateVerify{}, nil
	case TypeClientKeyExchange:
		return &MessageClientKeyExchange{}, nil
	case TypeFinished:
		return &MessageFinished{}, nil
	case TypeKeyUpdate:
		return &MessageKeyUpdate{}, nil
	default:
		return nil, errUnknownHandshakeType
	}
}
