package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"verify", "discover", "serve", "runs", "ping"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "brand-verifier", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestVerifyCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "output", "parallel", "workers", "preset", "limit", "no-store"} {
		require.NotNil(t, verifyCmd.Flags().Lookup(name), "verify command should have --%s flag", name)
	}
	assert.Equal(t, "false", verifyCmd.Flags().Lookup("parallel").DefValue)
	assert.Equal(t, "0", verifyCmd.Flags().Lookup("limit").DefValue)
}

func TestDiscoverCommand_Flags(t *testing.T) {
	assert.Equal(t, "holdings_brands.csv", discoverCmd.Flags().Lookup("holdings-output").DefValue)
	assert.Equal(t, "sub_brands.csv", discoverCmd.Flags().Lookup("subbrands-output").DefValue)
	require.NotNil(t, discoverCmd.Flags().Lookup("input"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "prune-cache"} {
		assert.True(t, names[name], "expected runs subcommand %q", name)
	}
}
