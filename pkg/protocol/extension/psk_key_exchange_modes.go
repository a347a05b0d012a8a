// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

// PSKKeyExchangeMode identifies how a PSK may be used, RFC 8446 §4.2.9.
type PSKKeyExchangeMode uint8

// The one mode this engine offers: PSK with an (EC)DHE share for
// forward secrecy. psk_ke (bare PSK, no forward secrecy) is never
// offered, consistent with the server-suite forward-secrecy
// requirement in spec.md §1.
const (
	PSKModeDHEKE PSKKeyExchangeMode = 1
)

// PSKKeyExchangeModes implements psk_key_exchange_modes.
type PSKKeyExchangeModes struct {
	Modes []PSKKeyExchangeMode
}

// ID implements Extension.
func (p *PSKKeyExchangeModes) ID() ID { return IDPSKKeyExchangeModes }

// Marshal encodes the mode list.
func (p *PSKKeyExchangeModes) Marshal() ([]byte, error) {
	out := make([]byte, 1+len(p.Modes))
	out[0] = byte(len(p.Modes))
	for i, m := range p.Modes {
		out[1+i] = byte(m)
	}
	return out, nil
}

// Unmarshal decodes the mode list.
func (p *PSKKeyExchangeModes) Unmarshal(data []byte) error {
	if len(data) < 1 {
		return errBufferTooSmall
	}
	n := int(data[0])
	if len(data) < 1+n {
		return errBufferTooSmall
	}
	for _, b := range data[1 : 1+n] {
		p.Modes = append(p.Modes, PSKKeyExchangeMode(b))
	}
	return nil
}
