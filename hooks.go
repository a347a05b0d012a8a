// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"io"
	"sync/atomic"

	"github.com/transportsec/tlscore/pkg/protocol/handshake"
)

// Hooks are observation/mutation callbacks a caller may install for
// test harnesses and diagnostics (spec.md §4.7). A nil field is a
// no-op. Hooks are swapped atomically under the State lock and are
// documented non-reentrant: a hook must not call back into the same
// Context.
type Hooks struct {
	// OnRecvHandshake fires for every handshake message received,
	// after decode, before FSM processing, except those handed to
	// OnRecvHandshake13; it may return a mutated message to support
	// protocol-fuzzing test harnesses. Hello messages received before
	// the version is negotiated always go here.
	OnRecvHandshake func(msg handshake.Message) handshake.Message

	// OnRecvHandshake13, if set, fires instead of OnRecvHandshake for
	// messages received once TLS 1.3 has been negotiated.
	OnRecvHandshake13 func(msg handshake.Message) handshake.Message

	// OnRecvCertificateChain fires once the peer's certificate chain
	// has been received, before the chain validator callback runs.
	OnRecvCertificateChain func(chain [][]byte)

	// KeyLogWriter receives NSS Key Log Format lines (CLIENT_RANDOM,
	// CLIENT_HANDSHAKE_TRAFFIC_SECRET, ...) as each secret is derived,
	// the way browsers/Wireshark expect for decrypting captures.
	KeyLogWriter io.Writer

	// Metrics, if set, receives handshake/record/alert observations.
	// A nil Metrics (the default) disables instrumentation entirely.
	Metrics *Metrics
}

// hookBox lets Hooks be swapped atomically without a lock of their own
// (the State lock still guards the swap itself, per spec.md §4.7).
type hookBox struct {
	v atomic.Value
}

func newHookBox(h *Hooks) *hookBox {
	if h == nil {
		h = &Hooks{}
	}
	b := &hookBox{}
	b.v.Store(h)
	return b
}

func (b *hookBox) load() *Hooks {
	h, _ := b.v.Load().(*Hooks)
	if h == nil {
		return &Hooks{}
	}
	return h
}

func (b *hookBox) store(h *Hooks) {
	if h == nil {
		h = &Hooks{}
	}
	b.v.Store(h)
}

// keyLogLabel names the NSS Key Log Format labels this engine emits.
type keyLogLabel string

// Labels defined by the NSS Key Log Format used by Wireshark/browsers.
const (
	keyLogClientRandom           keyLogLabel = "CLIENT_RANDOM"
	keyLogClientHandshakeTraffic keyLogLabel = "CLIENT_HANDSHAKE_TRAFFIC_SECRET"
	keyLogServerHandshakeTraffic keyLogLabel = "SERVER_HANDSHAKE_TRAFFIC_SECRET"
	keyLogClientTraffic          keyLogLabel = "CLIENT_TRAFFIC_SECRET_0"
	keyLogServerTraffic          keyLogLabel = "SERVER_TRAFFIC_SECRET_0"
	keyLogExporterSecret         keyLogLabel = "EXPORTER_SECRET"
)

func writeKeyLog(w io.Writer, label keyLogLabel, clientRandom, secret []byte) {
	if w == nil {
		return
	}
	line := string(label) + " " + hexString(clientRandom) + " " + hexString(secret) + "\n"
	_, _ = io.WriteString(w, line)
}

func hexString(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}
