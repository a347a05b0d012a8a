// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package handshake

import "errors"

var (
	errBufferTooSmall          = errors.New("handshake: buffer too small")
	errUnknownHandshakeType    = errors.New("handshake: unknown message type")
	errCipherSuiteUnset        = errors.New("handshake: cipher suite not set")
	errCompressionMethodUnset  = errors.New("handshake: compression method not set")
	errInvalidCompressionMethod = errors.New("handshake: invalid compression method")
	errLengthMismatch          = errors.New("handshake: encoded length does not match body")
)
