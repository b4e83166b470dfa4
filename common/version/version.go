// Package version holds build metadata injected via -ldflags.
package version

var (
	// Version is the semantic version of the kioku binary.
	Version = "v0.0.0-dev"

	// GitCommit is the short commit hash the binary was built from.
	GitCommit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Info returns "<version> (<commit>) built at <time>".
func Info() string {
	return Version + " (" + GitCommit + ") built at " + BuildTime
}
