// Package version holds build metadata stamped in by -ldflags at release
// build time; the defaults below are what a `go build` without those
// flags produces.
package version

var (
	version = "dev"
	branch  = "unknown"
	commit  = "unknown"
	date    = "unknown"
)

func Version() string { return version }
func Branch() string   { return branch }
func Revision() string { return commit }
func Date() string     { return date }
