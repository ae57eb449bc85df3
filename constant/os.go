package constant

// Platform identifiers for runtime.GOOS comparisons.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// MIME types the display sink is asked about before the engine is bypassed.
const (
	MimeHLS = "application/vnd.apple.mpegurl"
	MimeMP4 = "video/mp4"
)
