package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Set at build time using -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info is the payload of the /version endpoint.
type Info struct {
	Service    string    `json:"service"`
	Version    string    `json:"version"`
	APIVersion string    `json:"api_version"`
	GitCommit  string    `json:"git_commit,omitempty"`
	GoVersion  string    `json:"go_version"`
	BuildDate  time.Time `json:"build_date,omitempty"`
	Dirty      bool      `json:"dirty"`
}

// Get collects build information for service exposing apiVersion.
// Values not stamped with -ldflags fall back to the embedded VCS data.
func Get(service, apiVersion string) Info {
	info := Info{
		Service:    service,
		Version:    Version,
		APIVersion: apiVersion,
		GitCommit:  GitCommit,
	}
	if BuildTime != "" {
		if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
			info.BuildDate = t
		}
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = shortCommit(s.Value)
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		case "vcs.time":
			if info.BuildDate.IsZero() {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					info.BuildDate = t
				}
			}
		}
	}
	return info
}

// String renders info as "service version (commit)".
func (i Info) String() string {
	s := fmt.Sprintf("%s %s", i.Service, i.Version)
	if i.GitCommit != "" {
		s += " (" + i.GitCommit
		if i.Dirty {
			s += "-dirty"
		}
		s += ")"
	}
	return s
}

func shortCommit(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
