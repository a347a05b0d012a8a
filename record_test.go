// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/pion/transport/v3/deadline"
)

// chunkedBackend is a minimal Backend that serves a fixed sequence of
// Recv chunks, the way a careful unit test feeds a decoder exact wire
// bytes without standing up a real transport.
type chunkedBackend struct {
	chunks [][]byte
}

func (b *chunkedBackend) Send([]byte) (int, error) { return 0, nil }

func (b *chunkedBackend) Recv(p []byte) (int, error) {
	if len(b.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := b.chunks[0]
	b.chunks = b.chunks[1:]
	return copy(p, chunk), nil
}

func (b *chunkedBackend) Close() error                { return nil }
func (b *chunkedBackend) SetDeadline(time.Time) error { return nil }

func newTestBackendPipe(t *testing.T) (Backend, Backend) {
	t.Helper()
	a, b := newHalfDuplexTestPair()
	return a, b
}

// newHalfDuplexTestPair wires two Backends over buffered channels, the
// root-package analogue of e2e's halfDuplexBackend, kept minimal since
// these tests only need a working Send/Recv round trip, not a
// half-close.
func newHalfDuplexTestPair() (Backend, Backend) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	return &chanBackend{out: ab, in: ba}, &chanBackend{out: ba, in: ab}
}

type chanBackend struct {
	out     chan []byte
	in      chan []byte
	recvBuf []byte
}

func (c *chanBackend) Send(p []byte) (int, error) {
	c.out <- append([]byte(nil), p...)
	return len(p), nil
}

func (c *chanBackend) Recv(p []byte) (int, error) {
	if len(c.recvBuf) == 0 {
		chunk, ok := <-c.in
		if !ok {
			return 0, io.EOF
		}
		c.recvBuf = chunk
	}
	n := copy(p, c.recvBuf)
	c.recvBuf = c.recvBuf[n:]
	return n, nil
}

func (c *chanBackend) Close() error                { close(c.out); return nil }
func (c *chanBackend) SetDeadline(time.Time) error { return nil }

func newTestConn(backend Backend) *Conn {
	var common CommonParams
	return newConn(backend, RoleClient, &common)
}

// TestReadRawRecordRejectsOversizedHeader pins the record_overflow
// property (spec.md §8 S6): a record whose declared length exceeds the
// ciphertext ceiling is rejected from the 5-byte header alone, before
// any body bytes are read.
func TestReadRawRecordRejectsOversizedHeader(t *testing.T) {
	backend := &chunkedBackend{chunks: [][]byte{{0x16, 0x03, 0x03, 0x42, 0x68}}}
	c := newTestConn(backend)

	d := deadline.New()
	d.Set(time.Now().Add(5 * time.Second))

	_, _, err := c.readRawRecord(d)
	if err == nil {
		t.Fatal("expected an error for an oversized declared record length")
	}
	var tlsErr *Error
	if !errors.As(err, &tlsErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if tlsErr.Kind != KindRecordOverflow {
		t.Fatalf("expected KindRecordOverflow, got %v", tlsErr.Kind)
	}
}

// TestReadFullAssemblesAcrossShortReads checks readFull's core
// contract: it keeps pulling from the backend until it has exactly n
// bytes, even when the backend hands them back in several small Recv
// calls (the way a real socket can return partial reads).
func TestReadFullAssemblesAcrossShortReads(t *testing.T) {
	backend := &chunkedBackend{chunks: [][]byte{{0x01, 0x02}, {0x03}, {0x04, 0x05, 0x06}}}
	c := newTestConn(backend)

	d := deadline.New()
	d.Set(time.Now().Add(5 * time.Second))

	out, err := c.readFull(d, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	if len(out) != len(want) {
		t.Fatalf("expected %v, got %v", want, out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}

	// The sixth byte pulled in by the last Recv call must remain
	// buffered for the next readFull rather than being dropped.
	rest, err := c.readFull(d, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rest) != 1 || rest[0] != 0x06 {
		t.Fatalf("expected leftover byte 0x06, got %v", rest)
	}
}

// TestReadFullReturnsBackendError checks that a Recv failure (stream
// ended) propagates rather than spinning.
func TestReadFullReturnsBackendError(t *testing.T) {
	backend := &chunkedBackend{}
	c := newTestConn(backend)

	d := deadline.New()
	d.Set(time.Now().Add(5 * time.Second))

	if _, err := c.readFull(d, 3); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
