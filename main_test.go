package main

import (
	"runtime/debug"
	"testing"

	"tradestation/cmd"
)

func buildInfoWith(version string, ok bool) func() (*debug.BuildInfo, bool) {
	return func() (*debug.BuildInfo, bool) {
		if !ok {
			return nil, false
		}
		return &debug.BuildInfo{Main: debug.Module{Path: "tradestation", Version: version}}, true
	}
}

func TestResolveVersion(t *testing.T) {
	tests := []struct {
		name      string
		injected  string
		buildInfo func() (*debug.BuildInfo, bool)
		want      string
	}{
		{"ldflags win", "v1.2.0", buildInfoWith("v1.1.0", true), "v1.2.0"},
		{"module version for go install", "dev", buildInfoWith("v1.1.0", true), "v1.1.0"},
		{"local build", "dev", buildInfoWith("(devel)", true), "dev"},
		{"no build info", "dev", buildInfoWith("", false), "dev"},
		{"empty injected", "", buildInfoWith("", true), "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveVersion(tt.injected, tt.buildInfo); got != tt.want {
				t.Errorf("resolveVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolvedVersionReachesCLI(t *testing.T) {
	original := cmd.GetVersion()
	defer cmd.SetVersion(original)

	cmd.SetVersion(resolveVersion("v3.0.0", buildInfoWith("", false)))
	if got := cmd.GetVersion(); got != "v3.0.0" {
		t.Errorf("GetVersion() = %q, want v3.0.0", got)
	}
}
