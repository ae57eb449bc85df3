package config

import "github.com/reels-cli/reels/key"

// Default is every known key with its default value.
var Default = make(map[string]Field)

// EnvExposed lists the keys that can be set from REELS_* variables.
var EnvExposed []string

func init() {
	register := func(k string, v any, desc string) {
		if _, exists := Default[k]; exists {
			panic("config key registered twice: " + k)
		}
		Default[k] = Field{Key: k, Value: v, Description: desc}
		EnvExposed = append(EnvExposed, k)
	}

	register(key.CatalogEndpoint, "https://dev-api.wedzat.com/hub/master-playlists", "Endpoint returning the JSON array of playlist URLs that makes up the feed")
	register(key.CatalogTimeout, 15, "Seconds to wait for the catalog before giving up")
	register(key.PlayerMPV, "mpv", "mpv executable used to display reels.\nEither a name on $PATH or an absolute path")
	register(key.PlayerAutoplay, true, "Allow playback to start without a key press.\nWhen disabled the first reel waits for space")
	register(key.PlayerNativeHLS, false, "Let mpv fetch HLS itself instead of the built-in engine.\nBuffer, quality and network readings become coarser")
	register(key.PlayerRetryLimit, 6, "Non-fatal network errors tolerated per reel before it is marked failed")
	register(key.NetworkProbe, "auto", "How connection quality is measured.\nAvailable options are: auto (measured throughput), static (network.* values), none (always high)")
	register(key.NetworkEffectiveType, "4g", "Effective connection type used by the static probe.\nAvailable options are: slow-2g, 2g, 3g, 4g")
	register(key.NetworkDownlink, 10.0, "Downlink in Mbps used by the static probe")
	register(key.EngineOriginAddr, "127.0.0.1:0", "Loopback address the HLS origin listens on")
	register(key.MetricsEnabled, false, "Serve Prometheus metrics at /metrics on the origin")
	register(key.LocationBase, "reels://shorts", "Base of the shareable location of the active reel")
	register(key.LocationRemember, true, "Remember the last active reel for --continue")
	register(key.TUIScrollStep, 0.34, "Fraction of a reel one mouse wheel notch scrolls")
	register(key.TUIShowURLs, false, "Show the playlist URL of the active reel")
	register(key.IconsVariant, "plain", "Icons variant.\nAvailable options are: emoji, kaomoji, plain, squares, nerd (nerd-font required)")
	register(key.LogsWrite, false, "Write logs")
	register(key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace")
	register(key.LogsJson, false, "Use json format for logs")
	register(key.CliColored, true, "Enable colored CLI output")
	register(key.CliVersionCheck, true, "Check for a new version when showing help or version info")
}
