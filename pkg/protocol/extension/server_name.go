// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package extension

import "encoding/binary"

// ServerName implements the server_name (SNI) extension, RFC 6066 §3.
// The host_name is normalized (IDNA) before it ever reaches this type;
// see backend.go's use of golang.org/x/net/idna.
type ServerName struct {
	HostName string
}

// ID implements Extension.
func (s *ServerName) ID() ID { return IDServerName }

// Marshal encodes the server_name_list.
func (s *ServerName) Marshal() ([]byte, error) {
	name := []byte(s.HostName)
	entry := make([]byte, 3+len(name))
	entry[0] = 0x00 // name_type: host_name
	binary.BigEndian.PutUint16(entry[1:], uint16(len(name)))
	copy(entry[3:], name)

	out := make([]byte, 2, 2+len(entry))
	binary.BigEndian.PutUint16(out, uint16(len(entry)))
	return append(out, entry...), nil
}

// Unmarshal decodes the server_name_list, keeping the first host_name.
func (s *ServerName) Unmarshal(data []byte) error {
	if len(data) < 2 {
		return errBufferTooSmall
	}
	listLen := int(binary.BigEndian.Uint16(data))
	body := data[2:]
	if len(body) < listLen || listLen < 3 {
		return errBufferTooSmall
	}
	// name_type(1) + length(2) + name
	nameLen := int(binary.BigEndian.Uint16(body[1:3]))
	if len(body) < 3+nameLen {
		return errBufferTooSmall
	}
	s.HostName = string(body[3 : 3+nameLen])
	return nil
}
