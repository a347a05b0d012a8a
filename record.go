// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"fmt"

	"github.com/pion/transport/v3/deadline"

	"github.com/transportsec/tlscore/pkg/protocol"
	"github.com/transportsec/tlscore/pkg/protocol/alert"
	"github.com/transportsec/tlscore/pkg/protocol/recordlayer"
)

// readFull blocks until n bytes have been read from the backend (or
// pulled from a previous over-read left in recvBuf), honoring d the
// way the teacher's netctx layer makes a blocking PacketConn read
// interruptible: the actual Recv runs in its own goroutine so a
// deadline firing doesn't have to wait on it.
func (c *Conn) readFull(d *deadline.Deadline, n int) ([]byte, error) {
	for len(c.recvBuf) < n {
		type result struct {
			buf []byte
			err error
		}
		done := make(chan result, 1)
		go func() {
			tmp := make([]byte, inboundBufferSize)
			rn, err := c.backend.Recv(tmp)
			done <- result{buf: tmp[:rn], err: err}
		}()

		select {
		case <-d.Done():
			return nil, errDeadlineExceeded
		case r := <-done:
			if r.err != nil {
				return nil, r.err
			}
			c.recvBuf = append(c.recvBuf, r.buf...)
		}
	}
	out := c.recvBuf[:n]
	c.recvBuf = c.recvBuf[n:]
	return out, nil
}

// readRawRecord reads one on-the-wire record (header + ciphertext or
// plaintext body) without touching cipher state; the caller decides
// whether/how to unprotect it. Used directly by the handshake flights,
// which must see ChangeCipherSpec and still-plaintext handshake
// records the high-level readRecord loop does not expect.
func (c *Conn) readRawRecord(d *deadline.Deadline) (recordlayer.Header, []byte, error) {
	headerRaw, err := c.readFull(d, recordlayer.FixedHeaderSize)
	if err != nil {
		return recordlayer.Header{}, nil, err
	}
	var header recordlayer.Header
	if err := header.Unmarshal(headerRaw); err != nil {
		return recordlayer.Header{}, nil, NewError(KindRecordOverflow, err)
	}
	body, err := c.readFull(d, int(header.ContentLen))
	if err != nil {
		return recordlayer.Header{}, nil, err
	}
	return header, append([]byte{}, body...), nil
}

// readRecord reads one record and, if the RX epoch is protected,
// unprotects it, returning the real content type and plaintext.
func (c *Conn) readRecord(d *deadline.Deadline) (protocol.ContentType, []byte, error) {
	header, body, err := c.readRawRecord(d)
	if err != nil {
		return 0, nil, err
	}

	c.ctx.readLock.Lock()
	epoch := &c.ctx.rxEpoch
	aead := epoch.aead
	seq := epoch.sequenceNumber
	if aead != nil {
		if seq == recordlayer.MaxSequenceNumber {
			c.ctx.readLock.Unlock()
			return 0, nil, ErrSeqOverflow
		}
		epoch.sequenceNumber++
	}
	isTLS13 := c.ctx.negotiatedVersion == protocol.VersionTLS13
	c.ctx.readLock.Unlock()

	if header.ContentType == protocol.ContentTypeChangeCipherSpec && aead == nil {
		return header.ContentType, body, nil
	}

	if aead == nil {
		return header.ContentType, body, nil
	}

	header.SequenceNumber = seq
	plain, err := aead.Decrypt(&header, seq, body)
	if err != nil {
		return 0, nil, NewError(KindBadRecordMac, err)
	}

	if !isTLS13 {
		c.observeRecord("rx", header.ContentType)
		return header.ContentType, plain, nil
	}

	var inner recordlayer.InnerPlaintext
	if err := inner.Unmarshal(plain); err != nil {
		return 0, nil, NewError(KindDecodeError, err)
	}
	c.observeRecord("rx", inner.RealType)
	return inner.RealType, inner.Content, nil
}

// observeRecord reports one processed record to Hooks.Metrics, if set.
func (c *Conn) observeRecord(direction string, contentType protocol.ContentType) {
	if h := c.ctx.hooks.load(); h != nil && h.Metrics != nil {
		h.Metrics.observeRecord(direction, contentType.String())
	}
}

// writeRecord protects (if the TX epoch is keyed) and sends payload
// as one record of the given content type.
func (c *Conn) writeRecord(contentType protocol.ContentType, payload []byte) error {
	c.ctx.writeLock.Lock()
	defer c.ctx.writeLock.Unlock()

	epoch := &c.ctx.txEpoch
	isTLS13 := c.ctx.negotiatedVersion == protocol.VersionTLS13

	plaintext := payload
	wireType := contentType
	if isTLS13 && epoch.aead != nil {
		inner := recordlayer.InnerPlaintext{Content: payload, RealType: contentType}
		raw, err := inner.Marshal()
		if err != nil {
			return NewError(KindInternalError, err)
		}
		plaintext = raw
		wireType = protocol.ContentTypeApplicationData
	}

	header := recordlayer.Header{
		ContentType:    wireType,
		Version:        protocol.Version1_2,
		SequenceNumber: epoch.sequenceNumber,
	}

	var wire []byte
	if epoch.aead != nil {
		if epoch.sequenceNumber == recordlayer.MaxSequenceNumber {
			return ErrSeqOverflow
		}
		header.ContentLen = uint16(len(plaintext) + epoch.aead.Overhead())
		headerRaw, err := header.Marshal()
		if err != nil {
			return NewError(KindInternalError, err)
		}
		header.ContentLen = uint16(len(plaintext) + epoch.aead.Overhead())
		ciphertext, err := epoch.aead.Encrypt(&header, epoch.sequenceNumber, plaintext)
		if err != nil {
			return NewError(KindInternalError, err)
		}
		wire = append(headerRaw, ciphertext...)
		epoch.sequenceNumber++
	} else {
		header.ContentLen = uint16(len(plaintext))
		headerRaw, err := header.Marshal()
		if err != nil {
			return NewError(KindInternalError, err)
		}
		wire = append(headerRaw, plaintext...)
	}

	if _, err := c.backend.Send(wire); err != nil {
		return err
	}
	c.observeRecord("tx", contentType)
	return nil
}

// writeAlert sends a two-byte Alert record.
func (c *Conn) writeAlert(level alert.Level, desc alert.Description) error {
	a := alert.Alert{Level: level, Description: desc}
	body, err := a.Marshal()
	if err != nil {
		return err
	}
	if h := c.ctx.hooks.load(); h != nil && h.Metrics != nil {
		h.Metrics.observeAlert("tx", desc.String())
	}
	return c.writeRecord(protocol.ContentTypeAlert, body)
}

// handlePostHandshakeMessage processes a TLS 1.3 post-handshake
// handshake-content record (NewSessionTicket or KeyUpdate) received
// interleaved with application data.
func (c *Conn) handlePostHandshakeMessage(payload []byte) error {
	if len(payload) == 0 {
		return NewError(KindDecodeError, fmt.Errorf("tlscore: empty post-handshake record"))
	}
	return handlePostHandshakeRecord(c, payload)
}
