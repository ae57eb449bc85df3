// Package key names every configuration field reels understands.
package key

// Catalog - where the feed comes from.
const (
	CatalogEndpoint = "catalog.endpoint"
	CatalogTimeout  = "catalog.timeout"
)

// Player - the mpv sink each session drives.
const (
	PlayerMPV        = "player.mpv"
	PlayerAutoplay   = "player.autoplay"
	PlayerNativeHLS  = "player.native_hls"
	PlayerRetryLimit = "player.retry_limit"
)

// Network - how connection quality is measured.
const (
	NetworkProbe         = "network.probe"
	NetworkEffectiveType = "network.effective_type"
	NetworkDownlink      = "network.downlink"
)

// Engine - the in-process HLS origin.
const (
	EngineOriginAddr = "engine.origin_addr"
)

const (
	MetricsEnabled = "metrics.enabled"
)

// Location - the shareable ?id= address of the active reel.
const (
	LocationBase     = "location.base"
	LocationRemember = "location.remember"
)

// TUI
const (
	TUIScrollStep = "tui.scroll_step"
	TUIShowURLs   = "tui.show_urls"
)

const (
	IconsVariant = "icons.variant"
)

// Logging - diagnostics written to the logs directory.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

const (
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
)
