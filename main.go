package main

import (
	"runtime/debug"

	"tradestation/cmd"
)

// version is injected with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd.SetVersion(resolveVersion(version, debug.ReadBuildInfo))
	cmd.Execute()
}

// resolveVersion prefers the linker-injected version. A plain "go install"
// build leaves it at "dev", so the module version from the build info is used
// when one is recorded.
func resolveVersion(injected string, readBuildInfo func() (*debug.BuildInfo, bool)) string {
	if injected != "" && injected != "dev" {
		return injected
	}
	if info, ok := readBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
