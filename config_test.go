// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package tlscore

import (
	"testing"

	"github.com/transportsec/tlscore/pkg/protocol"
)

func TestApplyDefaultsFillsUnsetFields(t *testing.T) {
	var c CommonParams
	c.applyDefaults()

	if len(c.SupportedVersions) == 0 {
		t.Fatal("SupportedVersions must default to a non-empty preference list")
	}
	if len(c.CipherSuitePreference) == 0 {
		t.Fatal("CipherSuitePreference must default to a non-empty preference list")
	}
	if len(c.SupportedGroups) == 0 {
		t.Fatal("SupportedGroups must default to a non-empty preference list")
	}
	if len(c.SignatureSchemes) == 0 {
		t.Fatal("SignatureSchemes must default to a non-empty preference list")
	}
	if c.SessionManager == nil {
		t.Fatal("SessionManager must default to DefaultSessionManager")
	}
	if _, ok := c.SessionManager.(DefaultSessionManager); !ok {
		t.Fatalf("expected DefaultSessionManager, got %T", c.SessionManager)
	}
	if c.LoggerFactory == nil {
		t.Fatal("LoggerFactory must be filled in")
	}
	if c.Hooks == nil {
		t.Fatal("Hooks must be filled in with a non-nil, empty Hooks")
	}
}

func TestApplyDefaultsLeavesSetFieldsAlone(t *testing.T) {
	custom := []protocol.NegotiatedVersion{protocol.VersionTLS12}
	c := CommonParams{SupportedVersions: custom, SessionManager: DefaultSessionManager{}}
	c.applyDefaults()

	if len(c.SupportedVersions) != 1 || c.SupportedVersions[0] != protocol.VersionTLS12 {
		t.Fatalf("applyDefaults must not overwrite an already-set SupportedVersions, got %v", c.SupportedVersions)
	}
}

func TestApplyDefaultsPromotesTopLevelKeyLogWriter(t *testing.T) {
	w := &discardWriter{}
	c := CommonParams{KeyLogWriter: w}
	c.applyDefaults()

	if c.Hooks.KeyLogWriter != w {
		t.Fatal("a top-level KeyLogWriter must be copied into Hooks.KeyLogWriter when Hooks didn't already set one")
	}
}

func TestApplyDefaultsNeverOverwritesHooksKeyLogWriter(t *testing.T) {
	hookWriter := &discardWriter{}
	topWriter := &discardWriter{}
	c := CommonParams{KeyLogWriter: topWriter, Hooks: &Hooks{KeyLogWriter: hookWriter}}
	c.applyDefaults()

	if c.Hooks.KeyLogWriter != hookWriter {
		t.Fatal("an explicitly set Hooks.KeyLogWriter must take priority over the top-level convenience field")
	}
}

type discardWriter struct{}

func (*discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestRoleString(t *testing.T) {
	if RoleClient.String() != "client" {
		t.Fatalf("expected \"client\", got %q", RoleClient.String())
	}
	if RoleServer.String() != "server" {
		t.Fatalf("expected \"server\", got %q", RoleServer.String())
	}
}

func TestParamsRoleDispatch(t *testing.T) {
	var cp Params = &ClientParams{}
	var sp Params = &ServerParams{}
	if cp.role() != RoleClient {
		t.Fatal("*ClientParams must report RoleClient")
	}
	if sp.role() != RoleServer {
		t.Fatal("*ServerParams must report RoleServer")
	}
}
