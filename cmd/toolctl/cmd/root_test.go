package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()

	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "toolctl", "help should mention program name")
	assert.Contains(t, output, "Usage:", "help should show usage")
}

func TestRootCmd_ShowsVersion(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--version"})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "toolctl version")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	subcommands := cmd.Commands()

	var names []string
	for _, subcmd := range subcommands {
		names = append(names, subcmd.Name())
	}

	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "search")
	assert.Contains(t, names, "ingest")
	assert.Contains(t, names, "index")
	assert.Contains(t, names, "logs")
}

func TestRootCmd_HasPersistentFlags(t *testing.T) {
	cmd := NewRootCmd()

	for _, name := range []string{"config", "profile-cpu", "profile-mem", "profile-trace", "debug"} {
		flag := cmd.PersistentFlags().Lookup(name)
		assert.NotNil(t, flag, "expected persistent flag %q", name)
	}
}

func TestServeCmd_ShowsHelp(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"serve", "--help"})

	err := cmd.Execute()

	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), "MCP"))
}

func TestIndexCmd_HasInfoAndBuildSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"index", "--help"})

	err := cmd.Execute()

	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "info")
	assert.Contains(t, output, "build")
}

func TestSearchCmd_RequiresQueryArgument(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"search"})

	err := cmd.Execute()

	require.Error(t, err, "search with no query should fail argument validation")
}

func TestIngestCmd_RequiresDirectoryArgument(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"ingest"})

	err := cmd.Execute()

	require.Error(t, err, "ingest with no directory should fail argument validation")
}
