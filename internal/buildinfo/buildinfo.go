// Package buildinfo carries version fields set with -ldflags at build time.
package buildinfo

import "runtime"

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

type Info struct {
    Version   string `json:"version"`
    Commit    string `json:"commit,omitempty"`
    BuiltAt   string `json:"builtAt,omitempty"`
    GoVersion string `json:"goVersion"`
}

func Current() Info {
    return Info{Version: Version, Commit: Commit, BuiltAt: BuiltAt, GoVersion: runtime.Version()}
}
