// Package config resolves fetchcore's on-disk locations and persisted
// settings: the engine's config directory, its logs directory, the
// catalog database path, and the JSON-backed Settings struct.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const dirName = ".fetchcore"

// Dir returns the root configuration directory path; it does not
// create the directory. Defaults to ~/.fetchcore; honors FETCHCORE_HOME
// for tests and containerized runs.
func Dir() string {
	if home := os.Getenv("FETCHCORE_HOME"); home != "" {
		return home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, dirName)
}

// GetLogsDir returns the directory debug logs are written to.
func GetLogsDir() string {
	return filepath.Join(Dir(), "logs")
}

// CatalogPath returns the path to the SQLite catalog database file.
func CatalogPath() string {
	return filepath.Join(Dir(), "catalog.db")
}

// Settings holds user-adjustable engine defaults.
type Settings struct {
	DownloadDir      string `json:"download_dir"`
	DefaultSegments  int    `json:"default_segments"`
	MaxConcurrent    int    `json:"max_concurrent"`
	SpeedLimitBytes  uint64 `json:"speed_limit_bytes"` // 0 means unlimited
	RetainLogFiles   int    `json:"retain_log_files"`
	VerifyChecksum   bool   `json:"verify_checksum"`
}

// DefaultSettings returns the built-in defaults used when no settings
// file exists yet.
func DefaultSettings() Settings {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return Settings{
		DownloadDir:     filepath.Join(home, "Downloads"),
		DefaultSegments: 8,
		MaxConcurrent:   3,
		SpeedLimitBytes: 0,
		RetainLogFiles:  10,
		VerifyChecksum:  true,
	}
}

func settingsPath() string {
	return filepath.Join(Dir(), "settings.json")
}

// LoadSettings reads settings.json, falling back to defaults when the
// file does not exist.
func LoadSettings() (Settings, error) {
	path := settingsPath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// SaveSettings writes settings to settings.json, creating the config
// directory if needed.
func SaveSettings(s Settings) error {
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(settingsPath(), data, 0o644)
}
