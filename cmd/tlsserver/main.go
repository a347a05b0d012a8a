// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Command tlsserver listens on TCP and runs the server side of a
// tlscore handshake on each accepted connection, echoing whatever the
// peer sends. Its accept loop mirrors the teacher's own example
// servers: one goroutine per connection, logged by connection id.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pion/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	tlscore "github.com/transportsec/tlscore"
	"github.com/transportsec/tlscore/internal/pemutil"
	"github.com/transportsec/tlscore/pkg/protocol"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TLSSERVER")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "tlsserver",
		Short: "Accept TCP connections and run tlscore server handshakes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, v)
		},
	}

	flags := pflag.NewFlagSet("tlsserver", pflag.ExitOnError)
	flags.String("listen", ":4433", "address to listen on")
	flags.String("cert", "", "PEM certificate chain to present (required)")
	flags.String("key", "", "PEM private key for --cert (required)")
	flags.StringSlice("alpn", nil, "ALPN protocols accepted, in preference order")
	flags.StringSlice("versions", []string{"1.3", "1.2"}, "acceptable negotiated versions, in preference order")
	flags.String("client-auth", "none", "client certificate policy: none, request, or require")
	flags.Duration("handshake-timeout", 10*time.Second, "abort a handshake that has not completed within this long")
	flags.String("keylog-file", "", "write NSS Key Log Format lines here (for Wireshark)")
	cmd.Flags().AddFlagSet(flags)
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		panic(err)
	}

	return cmd
}

func runServer(cmd *cobra.Command, v *viper.Viper) error {
	certFile, keyFile := v.GetString("cert"), v.GetString("key")
	if certFile == "" || keyFile == "" {
		return fmt.Errorf("tlsserver: --cert and --key are required")
	}
	cert, err := pemutil.LoadCertificate(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("tlsserver: load certificate: %w", err)
	}

	clientAuth, err := parseClientAuth(v.GetString("client-auth"))
	if err != nil {
		return err
	}

	common := tlscore.CommonParams{
		Certificates:      []tlscore.Certificate{*cert},
		ALPN:              v.GetStringSlice("alpn"),
		SupportedVersions: parseVersions(v.GetStringSlice("versions")),
		LoggerFactory:     logging.NewDefaultLoggerFactory(),
		HandshakeTimeout:  v.GetDuration("handshake-timeout"),
	}

	if keylogPath := v.GetString("keylog-file"); keylogPath != "" {
		f, err := os.Create(keylogPath)
		if err != nil {
			return fmt.Errorf("tlsserver: open keylog file: %w", err)
		}
		defer f.Close()
		common.KeyLogWriter = f
	}

	ln, err := net.Listen("tcp", v.GetString("listen"))
	if err != nil {
		return fmt.Errorf("tlsserver: listen: %w", err)
	}
	defer ln.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "tlsserver: listening on %s\n", ln.Addr())

	logger := common.LoggerFactory.NewLogger("tlsserver")
	for {
		tcpConn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("tlsserver: accept: %w", err)
		}
		go handleConn(cmd.Context(), tcpConn, &tlscore.ServerParams{
			CommonParams: common,
			ClientAuth:   clientAuth,
		}, logger)
	}
}

func handleConn(ctx context.Context, tcpConn net.Conn, params *tlscore.ServerParams, logger logging.LeveledLogger) {
	defer tcpConn.Close()

	handshakeCtx := ctx
	var cancel context.CancelFunc
	if params.HandshakeTimeout > 0 {
		handshakeCtx, cancel = context.WithTimeout(ctx, params.HandshakeTimeout)
		defer cancel()
	}

	conn, err := tlscore.Server(handshakeCtx, tlscore.NewNetConnBackend(tcpConn), params)
	if err != nil {
		logger.Errorf("handshake with %s failed: %v", tcpConn.RemoteAddr(), err)
		return
	}
	defer conn.Close()

	state := conn.ConnectionState()
	logger.Infof("connection %s from %s established: version=%s cipher=%#04x alpn=%q",
		conn.ConnID(), tcpConn.RemoteAddr(), state.Version, state.CipherSuite, state.ALPN)

	if _, err := io.Copy(conn, conn); err != nil && err != io.EOF {
		logger.Warnf("connection %s: echo loop: %v", conn.ConnID(), err)
	}
}

func parseClientAuth(s string) (tlscore.ClientAuthType, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return tlscore.NoClientAuth, nil
	case "request":
		return tlscore.RequestClientAuth, nil
	case "require":
		return tlscore.RequireClientAuth, nil
	default:
		return 0, fmt.Errorf("tlsserver: unknown --client-auth %q", s)
	}
}

func parseVersions(raw []string) []protocol.NegotiatedVersion {
	var out []protocol.NegotiatedVersion
	for _, v := range raw {
		switch strings.TrimSpace(v) {
		case "1.3", "tls1.3", "TLS1.3":
			out = append(out, protocol.VersionTLS13)
		case "1.2", "tls1.2", "TLS1.2":
			out = append(out, protocol.VersionTLS12)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
