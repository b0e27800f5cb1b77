package cmd

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runVersion(t *testing.T, version string, args ...string) string {
	t.Helper()
	original := GetVersion()
	defer SetVersion(original)
	SetVersion(version)

	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return buf.String()
}

func TestVersionCmd_Full(t *testing.T) {
	out := runVersion(t, "1.4.0")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

	require.Len(t, lines, 4)
	assert.Equal(t, "tradestation version 1.4.0", lines[0])
	assert.Contains(t, lines[1], runtime.Version())
	assert.Contains(t, lines[2], runtime.GOOS+"/"+runtime.GOARCH)
	assert.Contains(t, lines[3], "tradestation-cli/1.4.0")
}

func TestVersionCmd_Short(t *testing.T) {
	assert.Equal(t, "2.0.0-rc1\n", runVersion(t, "2.0.0-rc1", "--short"))
}

func TestVersionCmd_EmptyVersion(t *testing.T) {
	assert.Equal(t, "unknown\n", runVersion(t, "", "--short"))
	assert.Contains(t, runVersion(t, ""), "user agent: tradestation-cli/unknown")
}

func TestVersionCmd_RejectsArguments(t *testing.T) {
	cmd := newVersionCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}

func TestPrintBuildInfo(t *testing.T) {
	info := buildInfo{Version: "0.9.1", GoVersion: "go1.25.6", Platform: "linux/arm64", UserAgent: "tradestation-cli/0.9.1"}

	var buf bytes.Buffer
	printBuildInfo(&buf, info, false)
	want := "tradestation version 0.9.1\n" +
		"  go:         go1.25.6\n" +
		"  platform:   linux/arm64\n" +
		"  user agent: tradestation-cli/0.9.1\n"
	if buf.String() != want {
		t.Errorf("printBuildInfo() = %q, want %q", buf.String(), want)
	}
}
