// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// KeyShareEntry is one (group, key_exchange) pair.
type KeyShareEntry struct {
	Group       NamedGroup
	KeyExchange []byte
}

// KeyShare implements key_share, RFC 8446 §4.2.8. The same Go type
// covers all three wire shapes (ClientHello list, HelloRetryRequest
// single group, ServerHello single entry); Mode picks which.
type KeyShare struct {
	Mode    KeyShareMode
	Entries []KeyShareEntry // ClientHello
	Entry   KeyShareEntry   // ServerHello
	Group   NamedGroup      // HelloRetryRequest
}

// KeyShareMode selects which KeyShare wire shape to (un)marshal.
type KeyShareMode int

// KeyShare wire shapes.
const (
	KeyShareClientHello KeyShareMode = iota
	KeyShareServerHello
	KeyShareHelloRetryRequest
)

// ID implements Extension.
func (k *KeyShare) ID() ID { return IDKeyShare }

// Marshal encodes the selected KeyShare shape.
func (k *KeyShare) Marshal() ([]byte, error) {
	switch k.Mode {
	case KeyShareHelloRetryRequest:
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, uint16(k.Group))
		return out, nil
	case KeyShareServerHello:
		return marshalKeyShareEntry(k.Entry), nil
	default:
		body := make([]byte, 2)
		entries := make([]byte, 0, 64)
		for _, e := range k.Entries {
			entries = append(entries, marshalKeyShareEntry(e)...)
		}
		binary.BigEndian.PutUint16(body, uint16(len(entries)))
		return append(body, entries...), nil
	}
}

func marshalKeyShareEntry(e KeyShareEntry) []byte {
	out := make([]byte, 4+len(e.KeyExchange))
	binary.BigEndian.PutUint16(out, uint16(e.Group))
	binary.BigEndian.PutUint16(out[2:], uint16(len(e.KeyExchange)))
	copy(out[4:], e.KeyExchange)
	return out
}

// Unmarshal decodes a KeyShare, inferring the wire shape from the
// data and setting Mode to match (any Mode set beforehand is ignored):
// exactly 2 bytes is a HelloRetryRequest group; a leading list length
// that accounts for the rest of the buffer is a ClientHello list;
// anything else is read as a single ServerHello entry.
func (k *KeyShare) Unmarshal(data []byte) error {
	switch {
	case len(data) == 2:
		k.Mode = KeyShareHelloRetryRequest
		k.Group = NamedGroup(binary.BigEndian.Uint16(data))
		return nil
	case len(data) >= 2:
		// Disambiguate ClientHello (length-prefixed list) from
		// ServerHello (bare single entry) by checking whether the
		// first two bytes, read as a list length, account for the
		// rest of the buffer.
		n := int(binary.BigEndian.Uint16(data))
		if n == len(data)-2 {
			k.Mode = KeyShareClientHello
			body := data[2:]
			for len(body) > 0 {
				e, rest, err := unmarshalKeyShareEntry(body)
				if err != nil {
					return err
				}
				k.Entries = append(k.Entries, e)
				body = rest
			}
			return nil
		}
		k.Mode = KeyShareServerHello
		e, _, err := unmarshalKeyShareEntry(data)
		if err != nil {
			return err
		}
		k.Entry = e
		return nil
	default:
		return errBufferTooSmall
	}
}

func unmarshalKeyShareEntry(data []byte) (KeyShareEntry, []byte, error) {
	if len(data) < 4 {
		return KeyShareEntry{}, nil, errBufferTooSmall
	}
	group := NamedGroup(binary.BigEndian.Uint16(data))
	n := int(binary.BigEndian.Uint16(data[2:]))
	if len(data) < 4+n {
		return KeyShareEntry{}, nil, errBufferTooSmall
	}
	return KeyShareEntry{Group: group, KeyExchange: append([]byte{}, data[4:4+n]...)}, data[4+n:], nil
}
