// Package buildinfo carries version data stamped in with -ldflags, e.g.
//
//	-X 'github.com/m3rciful/quicklink/core/buildinfo.Version=v1.2.3'
//	-X 'github.com/m3rciful/quicklink/core/buildinfo.Commit=abcdef0'
package buildinfo

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
	// Date is the build time in RFC3339.
	Date = ""
)

// String renders "version (commit, date)". Without a stamped commit the VCS
// revision recorded by the go tool is used, if any.
func String() string {
	commit := Commit
	if commit == "" {
		commit = vcsRevision()
	}
	s := Version + " (" + commit
	if Date != "" {
		s += ", " + Date
	}
	return s + ")"
}

func vcsRevision() string {
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, kv := range bi.Settings {
			if kv.Key == "vcs.revision" && kv.Value != "" {
				if len(kv.Value) > 7 {
					return kv.Value[:7]
				}
				return kv.Value
			}
		}
	}
	return "local"
}
