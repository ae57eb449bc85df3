// Package where resolves the directories and files reels keeps on disk.
package where

import (
	"os"
	"path/filepath"

	"github.com/reels-cli/reels/constant"
	"github.com/reels-cli/reels/filesystem"
	"github.com/samber/lo"
)

// EnvConfigPath overrides the config directory.
const EnvConfigPath = "REELS_CONFIG_PATH"

func ensureDir(path string) string {
	lo.Must0(filesystem.API().MkdirAll(path, os.ModePerm))
	return path
}

// Config is the directory holding reels.toml, logs and the saved location.
// REELS_CONFIG_PATH takes precedence over the platform config dir.
func Config() string {
	if custom, ok := os.LookupEnv(EnvConfigPath); ok {
		return ensureDir(custom)
	}

	base := lo.Must(os.UserConfigDir())
	return ensureDir(filepath.Join(base, constant.Reels))
}

// Cache is the platform cache directory for reels, falling back to ./cache.
func Cache() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = filepath.Join(".", "cache")
	}
	return ensureDir(filepath.Join(base, constant.Reels))
}

func Logs() string {
	return ensureDir(filepath.Join(Config(), "logs"))
}

// Location is the file the last active reel is remembered in.
func Location() string {
	return filepath.Join(Config(), "location.json")
}

// Sockets is where per-session mpv IPC sockets are created.
func Sockets() string {
	return ensureDir(filepath.Join(Temp(), "ipc"))
}

func Temp() string {
	return ensureDir(filepath.Join(os.TempDir(), constant.Reels))
}
