// Package version reports camctl build metadata.
//
// Release builds stamp the variables below:
//
//	go build -ldflags "-X github.com/smazurov/camctl/internal/version.Version=v0.3.0 \
//	  -X github.com/smazurov/camctl/internal/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Plain `go build` from a checkout leaves them unset; the commit and date
// then come from the VCS stamp the toolchain embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const unset = "unknown"

var (
	Version   = "dev"
	GitCommit = unset
	BuildDate = unset
	// BuildID tells apart builds of the same commit, e.g. a CI run number.
	BuildID = unset
)

// Info is served at GET /api/version.
type Info struct {
	Version   string `json:"version" example:"v0.3.0" doc:"camctl release"`
	GitCommit string `json:"git_commit" example:"3f2a9c1" doc:"Source revision"`
	Modified  bool   `json:"modified,omitempty" doc:"Built from a tree with local changes"`
	BuildDate string `json:"build_date" example:"2026-10-19T08:00:00Z" doc:"Build or commit time"`
	BuildID   string `json:"build_id" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"GOOS/GOARCH"`
}

// Get returns the stamped values, filling gaps from the embedded VCS stamp.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		BuildID:   BuildID,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromVCS(&info, bi.Settings)
	}
	return info
}

func fillFromVCS(info *Info, settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == unset && len(s.Value) >= 7 {
				info.GitCommit = s.Value[:7]
			}
		case "vcs.time":
			if info.BuildDate == unset {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

// String is the text printed by `camctl --version`.
func String() string {
	info := Get()
	s := fmt.Sprintf("%s (commit %s, built %s)", info.Version, info.GitCommit, info.BuildDate)
	if info.Modified {
		s += " modified"
	}
	return s
}
