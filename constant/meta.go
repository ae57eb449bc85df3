// Package constant defines immutable application-level identifiers and configuration defaults.
package constant

const (
	// Reels is the canonical application identifier used for filesystem paths and CLI branding.
	Reels = "reels"

	// Version is the current application semantic version string.
	Version = "0.3.0"

	// UserAgent is sent with catalog and stream requests.
	UserAgent = "reels/" + Version + " (+https://github.com/reels-cli/reels)"
)

// Build metadata, injected with -ldflags at release time.
var (
	BuiltAt  = "unknown"
	BuiltBy  = "unknown"
	Revision = "unknown"
)
