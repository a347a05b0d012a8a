// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package signaturehash

import "errors"

var errVerifyFailed = errors.New("signaturehash: signature verification failed")
