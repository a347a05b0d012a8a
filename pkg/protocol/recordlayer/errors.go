// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package recordlayer

import "errors"

var (
	// ErrInvalidPacketLength is returned when a buffer is shorter than
	// the record header it claims to contain.
	ErrInvalidPacketLength = errors.New("recordlayer: invalid packet length")
	// ErrRecordOverflow is returned when a record declares a length
	// longer than spec.md's 2^14+256 ceiling (alert 22).
	ErrRecordOverflow = errors.New("recordlayer: record_overflow")
)

var errEmptyInnerPlaintext = errors.New("recordlayer: TLSInnerPlaintext was all zero padding")
