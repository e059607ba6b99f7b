// Package version provides build version information for wikid.
// Variables are set at build time via ldflags:
//
//	go build -ldflags="-X github.com/jpl-au/wikid/internal/version.Version=v1.0.0 \
//	  -X github.com/jpl-au/wikid/internal/version.GitCommit=abc123 \
//	  -X github.com/jpl-au/wikid/internal/version.BuildTime=2026-01-15T10:30:00Z"
//
// Without ldflags, Get falls back to the module build info recorded by
// "go install".
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Build information. Set via ldflags at build time.
var (
	Version   = "dev"     // Version tag (e.g., "v1.0.0")
	GitCommit = "unknown" // Short git commit hash
	BuildTime = "unknown" // RFC3339 build timestamp
)

// Info holds structured version information.
type Info struct {
	BuildTag  string `json:"build_tag"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"` // OS and architecture (e.g., "darwin arm64")
}

// Get returns the current version information.
func Get() Info {
	i := Info{
		BuildTag:  Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH),
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return i
	}
	if i.BuildTag == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.BuildTag = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && i.GitCommit == "unknown":
			i.GitCommit = s.Value[:min(len(s.Value), 7)]
		case s.Key == "vcs.time" && i.BuildTime == "unknown":
			i.BuildTime = s.Value
		}
	}
	return i
}

// String returns a formatted version string suitable for display.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Build Tag:    %s\n", i.BuildTag)
	fmt.Fprintf(&b, "Build Time:   %s\n", i.BuildTime)
	fmt.Fprintf(&b, "Go Version:   %s\n", i.GoVersion)
	fmt.Fprintf(&b, "Platform:     %s\n", i.Platform)
	fmt.Fprintf(&b, "Git Commit:   %s\n", i.GitCommit)
	return b.String()
}

// Short returns just the version string (e.g., "v1.0.0" or "dev").
func Short() string {
	return Get().BuildTag
}
