// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package e2e

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	tlscore "github.com/transportsec/tlscore"
	"github.com/transportsec/tlscore/internal/testfixture"
)

// handshakeResult carries one side's outcome back from its goroutine.
type handshakeResult struct {
	conn *tlscore.Conn
	err  error
}

// runHandshake dials an in-memory net.Pipe and runs the client and
// server handshakes concurrently over it, the two halves blocking on
// each other exactly as two real TCP peers would.
func runHandshake(ctx context.Context, clientParams *tlscore.ClientParams, serverParams *tlscore.ServerParams) (clientConn, serverConn *tlscore.Conn, clientErr, serverErr error) {
	clientRaw, serverRaw := net.Pipe()

	clientCh := make(chan handshakeResult, 1)
	serverCh := make(chan handshakeResult, 1)

	go func() {
		conn, err := tlscore.Client(ctx, tlscore.NewNetConnBackend(clientRaw), clientParams)
		clientCh <- handshakeResult{conn, err}
	}()
	go func() {
		conn, err := tlscore.Server(ctx, tlscore.NewNetConnBackend(serverRaw), serverParams)
		serverCh <- handshakeResult{conn, err}
	}()

	cr := <-clientCh
	sr := <-serverCh
	return cr.conn, sr.conn, cr.err, sr.err
}

// halfDuplexBackend is one endpoint of a pair wired by
// newHalfDuplexPair. Unlike net.Pipe, Send enqueues onto a buffered
// channel rather than blocking for a concurrent reader (the way a real
// socket's send buffer lets a write succeed independent of whether the
// peer is reading right now), and Close only severs this endpoint's
// own outbound direction. The peer's Send path stays live until the
// peer closes its own endpoint. This models the TCP half-close a real
// close_notify exchange relies on (spec.md §8 S4: a peer that received
// close_notify must not lose its own ability to still write), which
// net.Pipe's atomic two-sided Close cannot express.
type halfDuplexBackend struct {
	out       chan []byte
	in        chan []byte
	recvBuf   []byte
	closeOnce sync.Once
}

func newHalfDuplexPair() (a, b tlscore.Backend) {
	ab := make(chan []byte, 64) // a -> b
	ba := make(chan []byte, 64) // b -> a
	return &halfDuplexBackend{out: ab, in: ba}, &halfDuplexBackend{out: ba, in: ab}
}

func (h *halfDuplexBackend) Send(p []byte) (int, error) {
	h.out <- append([]byte(nil), p...)
	return len(p), nil
}

func (h *halfDuplexBackend) Recv(p []byte) (int, error) {
	if len(h.recvBuf) == 0 {
		chunk, ok := <-h.in
		if !ok {
			return 0, io.EOF
		}
		h.recvBuf = chunk
	}
	n := copy(p, h.recvBuf)
	h.recvBuf = h.recvBuf[n:]
	return n, nil
}

func (h *halfDuplexBackend) Close() error {
	h.closeOnce.Do(func() { close(h.out) })
	return nil
}

func (h *halfDuplexBackend) SetDeadline(time.Time) error { return nil }

// issueLeaf mints a throwaway CA and a leaf certificate under it for
// commonName, in the shape tlscore.CommonParams.Certificates expects.
// The suite always pairs this with ClientParams.InsecureSkipVerify,
// since X.509 chain validation is a caller-supplied concern the core
// deliberately has no opinion on (spec.md keeps VerifyPeerChain
// pluggable rather than baking in a trust store).
func issueLeaf(commonName string, alg testfixture.KeyAlgorithm) (*tlscore.Certificate, error) {
	ca, err := testfixture.NewCA(commonName + " root")
	if err != nil {
		return nil, err
	}
	return ca.IssueLeaf(commonName, []string{commonName}, alg)
}
