// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package e2e drives tlscore's public API across an in-memory pipe,
// the way backube-volsync's controller suites exercise a package from
// the outside through envtest rather than its internal unit tests.
package e2e

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "tlscore handshake end-to-end suite")
}
