// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import "errors"

var (
	errHandshakeInProgress = errors.New("tlscore: handshake has not completed")
	errDeadlineExceeded    = errors.New("tlscore: deadline exceeded")
	errBufferTooSmall      = errors.New("tlscore: buffer too small to hold decrypted record")
)
