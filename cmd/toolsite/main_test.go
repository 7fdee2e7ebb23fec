package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrintRoutes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRoutes(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 15)
	require.Equal(t, []string{"PATH", "VIEW"}, strings.Fields(lines[0]))
	require.Equal(t, []string{"/", "Home"}, strings.Fields(lines[1]))
	require.Equal(t, []string{"/homepage", "Home"}, strings.Fields(lines[2]))
	require.Equal(t, []string{"*", "Not", "Found"}, strings.Fields(lines[14]))
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	require.Equal(t, "toolsite dev (none)\n", buf.String())
}

func TestUnknownCommand(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"bogus"})
	require.Error(t, cmd.Execute())
}
