// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package closer provides a once-only close signal shared by the
// connection's read loop, handshake loop, and user-facing Close call.
package closer

import "sync"

// Closer is a broadcastable close signal: Close may be called many
// times, from many goroutines, and Done's channel closes exactly once.
type Closer struct {
	once sync.Once
	ch   chan struct{}
}

// NewCloser returns a ready-to-use Closer.
func NewCloser() *Closer {
	return &Closer{ch: make(chan struct{})}
}

// Close signals every waiter on Done. Safe to call more than once.
func (c *Closer) Close() {
	c.once.Do(func() { close(c.ch) })
}

// Done returns a channel that closes once Close has been called.
func (c *Closer) Done() <-chan struct{} {
	return c.ch
}
