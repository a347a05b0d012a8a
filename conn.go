// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package tlscore implements the handshake state machine, record
// layer and key schedule shared by TLS 1.2 (RFC 5246) and TLS 1.3
// (RFC 8446), independent of any particular transport.
package tlscore

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/deadline"

	"github.com/transportsec/tlscore/internal/closer"
	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/alert"
	"github.com/transportsec/tlscore/pkg/protocol/recordlayer"
)

const inboundBufferSize = 8192

// Conn is one established or establishing TLS connection. It wraps a
// Backend stream the way the teacher's Conn wraps a net.PacketConn,
// but without any of the datagram-specific machinery (fragment
// buffer, replay window, connection IDs) DTLS needs and TLS does not.
type Conn struct {
	ctx     *Context
	backend Backend

	log logging.LeveledLogger

	readDeadline  *deadline.Deadline
	writeDeadline *deadline.Deadline

	closed *closer.Closer

	handshakeCompleted atomic.Bool

	decrypted chan any // []byte or error, read out by Read

	recvBuf []byte // accumulates partial record bytes from backend.Recv
}

func newConn(backend Backend, role Role, common *CommonParams) *Conn {
	common.applyDefaults()
	logger := common.LoggerFactory.NewLogger("tlscore")

	c := &Conn{
		ctx:           contextNew(backend, role, common.SessionManager, common.Hooks),
		backend:       backend,
		log:           logger,
		readDeadline:  deadline.New(),
		writeDeadline: deadline.New(),
		closed:        closer.NewCloser(),
		decrypted:     make(chan any, 4),
	}
	return c
}

// Client performs the client side of a TLS handshake over backend,
// blocking until it completes or ctx is done.
func Client(ctx context.Context, backend Backend, params *ClientParams) (*Conn, error) {
	if params == nil {
		return nil, NewError(KindInternalError, fmt.Errorf("tlscore: nil ClientParams"))
	}
	c := newConn(backend, RoleClient, &params.CommonParams)
	start := time.Now()
	err := runClientHandshake(ctx, c, params)
	c.observeHandshakeOutcome(RoleClient, start, err)
	if err != nil {
		_ = c.backend.Close()
		return nil, err
	}
	c.log.Trace("client handshake completed")
	return c, nil
}

// Server performs the server side of a TLS handshake over backend.
func Server(ctx context.Context, backend Backend, params *ServerParams) (*Conn, error) {
	if params == nil {
		return nil, NewError(KindInternalError, fmt.Errorf("tlscore: nil ServerParams"))
	}
	c := newConn(backend, RoleServer, &params.CommonParams)
	start := time.Now()
	err := runServerHandshake(ctx, c, params)
	c.observeHandshakeOutcome(RoleServer, start, err)
	if err != nil {
		_ = c.backend.Close()
		return nil, err
	}
	c.log.Trace("server handshake completed")
	return c, nil
}

// observeHandshakeOutcome reports a completed handshake attempt to
// Hooks.Metrics, if one is installed.
func (c *Conn) observeHandshakeOutcome(role Role, start time.Time, err error) {
	h := c.ctx.hooks.load()
	if h == nil || h.Metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	h.Metrics.observeHandshake(role.String(), c.ctx.NegotiatedVersion().String(), result, time.Since(start))
}

// ConnID returns the correlation id generated for this connection.
func (c *Conn) ConnID() string {
	return c.ctx.ConnID()
}

// Read reads decrypted application data. It returns errHandshakeInProgress
// if called before the handshake has completed.
func (c *Conn) Read(p []byte) (int, error) {
	if !c.handshakeCompleted.Load() {
		return 0, errHandshakeInProgress
	}

	select {
	case <-c.readDeadline.Done():
		return 0, errDeadlineExceeded
	default:
	}

	for {
		rec, err := c.readApplicationRecord()
		if err != nil {
			return 0, err
		}
		if len(rec) == 0 {
			continue
		}
		if len(p) < len(rec) {
			return 0, errBufferTooSmall
		}
		return copy(p, rec), nil
	}
}

// readApplicationRecord reads and decrypts the next record, returning
// its plaintext if it is application data; a post-handshake
// NewSessionTicket/KeyUpdate is processed internally and this loops.
func (c *Conn) readApplicationRecord() ([]byte, error) {
	for {
		select {
		case <-c.readDeadline.Done():
			return nil, errDeadlineExceeded
		default:
		}

		contentType, payload, err := c.readRecord(c.readDeadline)
		if err != nil {
			return nil, err
		}

		switch contentType {
		case protocol.ContentTypeApplicationData:
			return payload, nil
		case protocol.ContentTypeAlert:
			return nil, c.handleIncomingAlert(payload)
		case protocol.ContentTypeHandshake:
			if err := c.handlePostHandshakeMessage(payload); err != nil {
				return nil, err
			}
			continue
		default:
			return nil, NewError(KindUnexpectedMessage, fmt.Errorf("tlscore: unexpected content type %d after handshake", contentType))
		}
	}
}

// Write encrypts and sends p as one or more application_data records.
func (c *Conn) Write(p []byte) (int, error) {
	if c.isConnectionClosed() {
		return 0, ErrConnectionClosed
	}
	if !c.handshakeCompleted.Load() {
		return 0, errHandshakeInProgress
	}

	select {
	case <-c.writeDeadline.Done():
		return 0, errDeadlineExceeded
	default:
	}

	written := 0
	for written < len(p) {
		chunk := p[written:]
		if len(chunk) > recordlayer.MaxPlaintextPayloadLen {
			chunk = chunk[:recordlayer.MaxPlaintextPayloadLen]
		}
		if err := c.writeRecord(protocol.ContentTypeApplicationData, chunk); err != nil {
			return written, err
		}
		written += len(chunk)
	}
	return written, nil
}

// Close sends a close_notify alert (best effort) and closes the
// underlying backend.
func (c *Conn) Close() error {
	c.ctx.stateLock.Lock()
	already := c.ctx.closed
	c.ctx.closed = true
	c.ctx.stateLock.Unlock()

	if !already && c.handshakeCompleted.Load() {
		_ = c.sendCloseNotify()
	}
	c.closed.Close()
	return c.backend.Close()
}

// ConnectionState reports a point-in-time snapshot of negotiated
// parameters, mirroring the teacher's Conn.ConnectionState.
type ConnectionState struct {
	Version     protocol.NegotiatedVersion
	CipherSuite uint16
	ServerName  string
	ALPN        string
}

// ConnectionState returns details about the negotiated connection.
func (c *Conn) ConnectionState() ConnectionState {
	c.ctx.stateLock.Lock()
	defer c.ctx.stateLock.Unlock()
	return ConnectionState{
		Version:     c.ctx.negotiatedVersion,
		CipherSuite: uint16(c.ctx.cipherSuite),
		ServerName:  c.ctx.negotiatedServerName,
		ALPN:        c.ctx.negotiatedALPN,
	}
}

// SetDeadline sets both read and write deadlines.
func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

// SetReadDeadline sets the deadline for future Read calls.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.readDeadline.Set(t)
	return nil
}

// SetWriteDeadline sets the deadline for future Write calls.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.writeDeadline.Set(t)
	return nil
}

func (c *Conn) isConnectionClosed() bool {
	select {
	case <-c.closed.Done():
		return true
	default:
		return false
	}
}

func (c *Conn) sendCloseNotify() error {
	return c.writeAlert(alert.Warning, alert.CloseNotify)
}

func (c *Conn) handleIncomingAlert(payload []byte) error {
	if len(payload) < 2 {
		return NewError(KindDecodeError, fmt.Errorf("tlscore: truncated alert"))
	}
	if h := c.ctx.hooks.load(); h != nil && h.Metrics != nil {
		h.Metrics.observeAlert("rx", alert.Description(payload[1]).String())
	}
	if alert.Description(payload[1]) == alert.CloseNotify {
		c.ctx.markEOF(nil)
		return io.EOF
	}
	return NewError(KindInternalError, fmt.Errorf("tlscore: received fatal alert %d", payload[1]))
}
