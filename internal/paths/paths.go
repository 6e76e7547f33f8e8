// Package paths resolves where duet keeps its configuration and its data.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "duet"

// CWD-relative directory names.
const (
	DefaultConfigDirName = ".duet"
	DefaultDataDirName   = ".duet-db"
)

// ConfigFileName is the file read from the config directory.
const ConfigFileName = "config.yaml"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "DUET_CONFIG_DIR"
	EnvDataDir   = "DUET_DATA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/duet (fallback ~/.config/duet)
// macOS:   ~/Library/Application Support/duet
// Windows: %APPDATA%/duet
func DefaultConfigDir() (string, error) {
	return platformPath("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform data directory.
//
// Linux:   $XDG_DATA_HOME/duet (fallback ~/.local/share/duet)
// macOS and Windows: same as DefaultConfigDir
func DefaultDataDir() (string, error) {
	return platformPath("XDG_DATA_HOME", ".local", "share")
}

func platformPath(xdgEnv string, homeRel ...string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, homeRel...), appName)...), nil
}

// ResolveConfigDir returns the configuration directory:
// flag > DUET_CONFIG_DIR > DefaultConfigDir(). The result is absolute.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory:
// flag > config value > DUET_DATA_DIR > $(CWD)/.duet-db. The result is
// absolute.
func ResolveDataDir(flag, configValue string) (string, error) {
	for _, candidate := range []string{flag, configValue, os.Getenv(EnvDataDir)} {
		if candidate != "" {
			return filepath.Abs(candidate)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ConfigFile returns the config file path inside configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}
