// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

// UseExtendedMasterSecret implements extended_master_secret, RFC 7627
// (TLS 1.2 only). This engine parses it when a peer sends it; its
// client does not offer it and its server neither requires nor
// echoes it.
type UseExtendedMasterSecret struct {
	Supported bool
}

// ID implements Extension.
func (u *UseExtendedMasterSecret) ID() ID { return IDExtendedMasterSecret }

// Marshal encodes the (empty) extension body.
func (u *UseExtendedMasterSecret) Marshal() ([]byte, error) { return []byte{}, nil }

// Unmarshal decodes the (empty) extension body.
func (u *UseExtendedMasterSecret) Unmarshal(data []byte) error {
	u.Supported = true
	return nil
}
