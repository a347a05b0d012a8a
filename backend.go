// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"context"
	"net"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// Backend is the reliable, ordered byte-stream transport the engine
// reads and writes records over (spec.md §6). It is deliberately
// narrower than net.Conn: no addressing, no deadline methods — those
// stay in Conn, exactly as the teacher keeps epoch/deadline state out
// of its DTLS backend and in Conn itself.
type Backend interface {
	// Send writes b in full or returns an error; it never partially
	// writes without reporting how much was written.
	Send(b []byte) (n int, err error)

	// Recv reads at least one byte into b, blocking until data is
	// available, the deadline (if any) elapses, or the stream ends.
	Recv(b []byte) (n int, err error)

	// Close closes the underlying stream.
	Close() error

	// SetDeadline forwards a combined deadline to the underlying
	// stream when it supports one; a Backend over a medium without
	// deadlines (e.g. an in-memory pipe) may no-op.
	SetDeadline(t time.Time) error
}

// netConnBackend adapts a net.Conn (TCP, Unix, or any net.Conn-like
// stream) to Backend, the way the teacher's udpConn adapts a
// net.PacketConn.
type netConnBackend struct {
	conn net.Conn
}

// NewNetConnBackend wraps an established net.Conn as a Backend. The
// conn is typically a *net.TCPConn obtained from net.Dial or from an
// Accept loop; tlscore never dials or listens on its own.
func NewNetConnBackend(conn net.Conn) Backend {
	return &netConnBackend{conn: conn}
}

func (b *netConnBackend) Send(p []byte) (int, error) { return b.conn.Write(p) }
func (b *netConnBackend) Recv(p []byte) (int, error) { return b.conn.Read(p) }
func (b *netConnBackend) Close() error               { return b.conn.Close() }
func (b *netConnBackend) SetDeadline(t time.Time) error {
	return b.conn.SetDeadline(t)
}

// normalizeServerName applies IDNA normalization to a client's
// configured ServerName before it is placed in the server_name
// extension, the way browsers normalize internationalized hostnames
// before sending SNI.
func normalizeServerName(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	return idna.Lookup.ToASCII(name)
}

// Resolver resolves a hostname to connectable addresses using a
// caller-chosen DNS path, for a caller that dials its own net.Conn and
// needs a specific view of DNS (split-horizon test harnesses, DoH/DoT
// front-ends already speaking the miekg/dns wire format). Nothing
// inside tlscore calls it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// miekgResolver resolves via a caller-supplied upstream nameserver
// using github.com/miekg/dns instead of the OS resolver.
type miekgResolver struct {
	server string
}

// NewMiekgResolver builds a Resolver that queries server (host:port)
// directly over the DNS wire protocol.
func NewMiekgResolver(server string) Resolver {
	return &miekgResolver{server: server}
}

func (r *miekgResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	fqdn := dns.Fqdn(host)
	client := new(dns.Client)

	var addrs []string
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(fqdn, qtype)
		resp, _, err := client.ExchangeContext(ctx, msg, r.server)
		if err != nil {
			continue
		}
		for _, rr := range resp.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				addrs = append(addrs, rec.A.String())
			case *dns.AAAA:
				addrs = append(addrs, rec.AAAA.String())
			}
		}
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}
