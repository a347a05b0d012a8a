// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

// RenegotiationInfo implements the empty renegotiation_info extension,
// RFC 5746. This engine refuses renegotiation outright (spec.md §1
// non-goals); it parses a renegotiation_info a peer sends but never
// sends one itself.
type RenegotiationInfo struct {
	RenegotiatedConnection []byte
}

// ID implements Extension.
func (r *RenegotiationInfo) ID() ID { return IDRenegotiationInfo }

// Marshal encodes the single length-prefixed opaque field.
func (r *RenegotiationInfo) Marshal() ([]byte, error) {
	out := make([]byte, 1+len(r.RenegotiatedConnection))
	out[0] = byte(len(r.RenegotiatedConnection))
	copy(out[1:], r.RenegotiatedConnection)
	return out, nil
}

// Unmarshal decodes the single length-prefixed opaque field.
func (r *RenegotiationInfo) Unmarshal(data []byte) error {
	if len(data) < 1 {
		return errBufferTooSmall
	}
	n := int(data[0])
	if len(data) < 1+n {
		return errBufferTooSmall
	}
	r.RenegotiatedConnection = append([]byte{}, data[1:1+n]...)
	return nil
}
