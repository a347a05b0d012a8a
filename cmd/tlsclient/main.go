// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Command tlsclient dials a TCP endpoint and runs the client side of a
// tlscore handshake over it, the minimal exerciser spec.md's
// transport-agnostic core needs to actually touch a network. Structured
// the way backube-volsync's kubectl-volsync root command is: a pflag
// flag set wired into one cobra.Command, config additionally bindable
// through a file or environment via viper.
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
	v.SetEnvPrefix("TLSCLIENT")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "tlsclient",
		Short: "Dial a server and run a tlscore client handshake",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd, v)
		},
	}

	flags := pflag.NewFlagSet("tlsclient", pflag.ExitOnError)
	flags.String("addr", "localhost:4433", "host:port to dial")
	flags.String("server-name", "", "SNI / expected server name (defaults to the host half of --addr)")
	flags.StringSlice("alpn", nil, "ALPN protocols to offer, in preference order")
	flags.StringSlice("versions", []string{"1.3", "1.2"}, "acceptable negotiated versions, in preference order")
	flags.Bool("insecure-skip-verify", false, "disable peer certificate chain validation (debug only)")
	flags.String("client-cert", "", "PEM certificate chain to offer if the server requests client auth")
	flags.String("client-key", "", "PEM private key for --client-cert")
	flags.Duration("handshake-timeout", 10*time.Second, "abort if the handshake has not completed within this long")
	flags.String("keylog-file", "", "write NSS Key Log Format lines here (for Wireshark)")
	cmd.Flags().AddFlagSet(flags)
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		panic(err)
	}

	return cmd
}

func runClient(cmd *cobra.Command, v *viper.Viper) error {
	addr := v.GetString("addr")
	serverName := v.GetString("server-name")
	if serverName == "" {
		if host, _, err := net.SplitHostPort(addr); err == nil {
			serverName = host
		} else {
			serverName = addr
		}
	}

	params := &tlscore.ClientParams{
		ServerName: serverName,
		CommonParams: tlscore.CommonParams{
			ALPN:              v.GetStringSlice("alpn"),
			SupportedVersions: parseVersions(v.GetStringSlice("versions")),
			LoggerFactory:     logging.NewDefaultLoggerFactory(),
			HandshakeTimeout:  v.GetDuration("handshake-timeout"),
			InsecureSkipVerify: v.GetBool("insecure-skip-verify"),
		},
	}

	if keylogPath := v.GetString("keylog-file"); keylogPath != "" {
		f, err := os.Create(keylogPath)
		if err != nil {
			return fmt.Errorf("tlsclient: open keylog file: %w", err)
		}
		defer f.Close()
		params.KeyLogWriter = f
	}

	if certFile, keyFile := v.GetString("client-cert"), v.GetString("client-key"); certFile != "" && keyFile != "" {
		cert, err := pemutil.LoadCertificate(certFile, keyFile)
		if err != nil {
			return fmt.Errorf("tlsclient: load client certificate: %w", err)
		}
		params.ClientCertificate = cert
	}

	dialCtx, cancel := context.WithTimeout(cmd.Context(), params.HandshakeTimeout+5*time.Second)
	defer cancel()

	var d net.Dialer
	tcpConn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tlsclient: dial %s: %w", addr, err)
	}

	conn, err := tlscore.Client(dialCtx, tlscore.NewNetConnBackend(tcpConn), params)
	if err != nil {
		tcpConn.Close()
		return fmt.Errorf("tlsclient: handshake: %w", err)
	}
	defer conn.Close()

	state := conn.ConnectionState()
	fmt.Fprintf(cmd.OutOrStdout(), "connection %s established: version=%s cipher=%#04x alpn=%q\n",
		conn.ConnID(), state.Version, state.CipherSuite, state.ALPN)

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(cmd.OutOrStdout(), conn)
		done <- err
	}()
	if _, err := io.Copy(conn, cmd.InOrStdin()); err != nil && err != io.EOF {
		return fmt.Errorf("tlsclient: write: %w", err)
	}
	conn.Close()
	if err := <-done; err != nil && err != io.EOF {
		return fmt.Errorf("tlsclient: read: %w", err)
	}
	return nil
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
