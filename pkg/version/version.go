// Package version identifies the sleuth binary in the CLI banner and in
// run metadata. The commit hash comes from an -ldflags override when the
// build has no .git (container builds), from the embedded VCS stamp
// otherwise, and falls back to "dev".
package version

import "runtime/debug"

// AppName prefixes every version string the binary prints.
const AppName = "sleuth"

// gitCommitOverride is injected with
// -ldflags "-X github.com/osinthq/sleuth/pkg/version.gitCommitOverride=...".
var gitCommitOverride string

// GitCommit is the short (8 char) commit hash, or "dev" when no VCS
// information is available, as under `go test`.
var GitCommit = initGitCommit()

func initGitCommit() string {
	if gitCommitOverride != "" {
		if len(gitCommitOverride) > 8 {
			return gitCommitOverride[:8]
		}
		return gitCommitOverride
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 8 {
				return s.Value[:8]
			}
			return s.Value
		}
	}
	return "dev"
}

// Full returns "sleuth/<commit>", the form the CLI banner prints.
func Full() string {
	return AppName + "/" + GitCommit
}
