package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that relocate the client's files.
const (
	ConfigPathEnv = "SDR_CONFIG_PATH"
	HomeEnv       = "SDR_HOME"
)

// Paths are the locations the client reads and writes. Everything except
// the config file lives under BaseDir.
type Paths struct {
	ConfigFile string
	BaseDir    string
	LogDir     string
	TokenFile  string
	HistoryDir string
}

// PathsUnder lays out the data locations below baseDir.
func PathsUnder(baseDir string) Paths {
	return Paths{
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		TokenFile:  filepath.Join(baseDir, "token"),
		HistoryDir: baseDir,
	}
}

// ResolvePaths finds the config file and base directory. SDR_CONFIG_PATH and
// SDR_HOME win; otherwise the XDG config and data homes are used, falling
// back to ~/.config/sdr.toml and ~/.local/share/sdr.
func ResolvePaths() (Paths, error) {
	configFile := os.Getenv(ConfigPathEnv)
	if configFile == "" {
		dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
		if err != nil {
			return Paths{}, err
		}
		configFile = filepath.Join(dir, "sdr.toml")
	}

	baseDir := os.Getenv(HomeEnv)
	if baseDir == "" {
		dir, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
		if err != nil {
			return Paths{}, err
		}
		baseDir = filepath.Join(dir, "sdr")
	}

	p := PathsUnder(baseDir)
	p.ConfigFile = configFile
	return p, nil
}

// xdgDir returns $env when it holds an absolute path, else fallback under
// the home directory.
func xdgDir(env, fallback string) (string, error) {
	if dir := os.Getenv(env); filepath.IsAbs(dir) {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, fallback), nil
}
