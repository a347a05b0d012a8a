// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package recordlayer

import "github.com/transportsec/tlscore/pkg/protocol"

// InnerPlaintext is the TLS 1.3 TLSInnerPlaintext structure
// (RFC 8446 §5.2): the real content followed by its true content type
// and any amount of zero padding. The outer record's content type is
// always opaque_type = application_data once epoch > 0 under TLS 1.3.
type InnerPlaintext struct {
	Content  []byte
	RealType protocol.ContentType
	Zeros    uint
}

// Marshal encodes content || real_type || zero-padding.
func (i *InnerPlaintext) Marshal() ([]byte, error) {
	out := make([]byte, 0, len(i.Content)+1+int(i.Zeros))
	out = append(out, i.Content...)
	out = append(out, byte(i.RealType))
	out = append(out, make([]byte, i.Zeros)...)
	return out, nil
}

// Unmarshal strips trailing zero padding and recovers the true
// content type: the last non-zero byte.
func (i *InnerPlaintext) Unmarshal(data []byte) error {
	end := len(data)
	for end > 0 && data[end-1] == 0 {
		end--
	}
	if end == 0 {
		return errEmptyInnerPlaintext
	}
	i.RealType = protocol.ContentType(data[end-1])
	i.Content = append([]byte{}, data[:end-1]...)
	i.Zeros = uint(len(data) - end)
	return nil
}
