// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package prf

import "errors"

var errInvalidNamedCurve = errors.New("prf: invalid or unsupported named curve")
