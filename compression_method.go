// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import "github.com/transportsec/tlscore/pkg/protocol"

// defaultCompressionMethods lists the only method this engine ever
// offers or accepts: "null" (RFC 5246 §7.4.1.2 mandates it for TLS
// 1.2; RFC 8446 §4.1.2 requires TLS 1.3 ClientHellos carry exactly
// this one value for middlebox compatibility).
func defaultCompressionMethods() []*protocol.CompressionMethod {
	return []*protocol.CompressionMethod{
		{}, // CompressionMethod zero value is ID 0, "null"
	}
}
