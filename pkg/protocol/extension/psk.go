// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// PSKIdentity is one offered PSK identity plus its obfuscated ticket
// age, RFC 8446 §4.2.11.
type PSKIdentity struct {
	Identity            []byte
	ObfuscatedTicketAge uint32
}

// PreSharedKey implements pre_shared_key. In a ClientHello it carries
// the identity list and (separately, appended after binder
// computation) the binder list; in a ServerHello it carries the
// selected identity's index.
type PreSharedKey struct {
	IsClientHello    bool
	Identities       []PSKIdentity
	Binders          [][]byte
	SelectedIdentity uint16
}

// ID implements Extension.
func (p *PreSharedKey) ID() ID { return IDPreSharedKey }

// Marshal encodes PreSharedKey.
func (p *PreSharedKey) Marshal() ([]byte, error) {
	if !p.IsClientHello {
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, p.SelectedIdentity)
		return out, nil
	}
	identities := make([]byte, 0, 64)
	for _, id := range p.Identities {
		entry := make([]byte, 2+len(id.Identity)+4)
		binary.BigEndian.PutUint16(entry, uint16(len(id.Identity)))
		copy(entry[2:], id.Identity)
		binary.BigEndian.PutUint32(entry[2+len(id.Identity):], id.ObfuscatedTicketAge)
		identities = append(identities, entry...)
	}
	binders := make([]byte, 0, 64)
	for _, b := range p.Binders {
		binders = append(binders, byte(len(b)))
		binders = append(binders, b...)
	}
	out := make([]byte, 0, 4+len(identities)+len(binders))
	idLen := make([]byte, 2)
	binary.BigEndian.PutUint16(idLen, uint16(len(identities)))
	out = append(out, idLen...)
	out = append(out, identities...)
	bindLen := make([]byte, 2)
	binary.BigEndian.PutUint16(bindLen, uint16(len(binders)))
	out = append(out, bindLen...)
	out = append(out, binders...)
	return out, nil
}

// Unmarshal decodes PreSharedKey.
func (p *PreSharedKey) Unmarshal(data []byte) error {
	if len(data) == 2 {
		p.IsClientHello = false
		p.SelectedIdentity = binary.BigEndian.Uint16(data)
		return nil
	}
	if len(data) < 2 {
		return errBufferTooSmall
	}
	p.IsClientHello = true
	idListLen := int(binary.BigEndian.Uint16(data))
	if len(data) < 2+idListLen+2 {
		return errBufferTooSmall
	}
	body := data[2 : 2+idListLen]
	for len(body) > 0 {
		if len(body) < 2 {
			return errBufferTooSmall
		}
		n := int(binary.BigEndian.Uint16(body))
		if len(body) < 2+n+4 {
			return errBufferTooSmall
		}
		p.Identities = append(p.Identities, PSKIdentity{
			Identity:            append([]byte{}, body[2:2+n]...),
			ObfuscatedTicketAge: binary.BigEndian.Uint32(body[2+n:]),
		})
		body = body[2+n+4:]
	}

	rest := data[2+idListLen:]
	bindersLen := int(binary.BigEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) < bindersLen {
		return errBufferTooSmall
	}
	rest = rest[:bindersLen]
	for len(rest) > 0 {
		n := int(rest[0])
		if len(rest) < 1+n {
			return errBufferTooSmall
		}
		p.Binders = append(p.Binders, append([]byte{}, rest[1:1+n]...))
		rest = rest[1+n:]
	}
	return nil
}
