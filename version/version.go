package version

import (
	"runtime/debug"
)

var (
	// Version is the release, "dev" for local builds.
	Version = "dev"
	// Commit is the source revision.
	Commit = ""
)

// Info is the build description.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Dirty     bool   `json:"dirty,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
}

// Get returns the linked version, completed from the embedded build info.
func Get() Info {
	info := Info{Version: Version, Commit: Commit}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	return info
}

// String returns "version", "version-commit" or "version-commit-dirty"
// with the commit shortened to seven characters.
func (i Info) String() string {
	if i.Commit == "" {
		return i.Version
	}
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	if i.Dirty {
		return i.Version + "-" + commit + "-dirty"
	}
	return i.Version + "-" + commit
}

// Short is Get().String().
func Short() string { return Get().String() }
