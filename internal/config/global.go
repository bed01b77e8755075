package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// GlobalConfig holds per-user settings from $XDG_CONFIG_HOME/pubs/config.yml.
type GlobalConfig struct {
	// LibraryPath is used when no .pubs directory is found above the
	// working directory.
	LibraryPath string `yaml:"library_path,omitempty"`
}

const (
	GlobalConfigDir  = "pubs"
	GlobalConfigFile = "config.yml"
)

// ErrLibraryPathNotExist is returned when the configured library_path has no .pubs directory.
var ErrLibraryPathNotExist = errors.New("library_path is not a publications library")

var globalCache struct {
	sync.Mutex
	path string
	cfg  *GlobalConfig
}

// GlobalConfigPath returns the user config file, honoring XDG_CONFIG_HOME.
// It is empty when no home directory can be determined.
func GlobalConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig reads the user config once per path. A missing file
// yields an empty config.
func LoadGlobalConfig() (*GlobalConfig, error) {
	path := GlobalConfigPath()

	globalCache.Lock()
	defer globalCache.Unlock()
	if globalCache.cfg != nil && globalCache.path == path {
		return globalCache.cfg, nil
	}

	cfg, err := readGlobalConfig(path)
	if err != nil {
		return nil, err
	}
	globalCache.path, globalCache.cfg = path, cfg
	return cfg, nil
}

func readGlobalConfig(path string) (*GlobalConfig, error) {
	cfg := &GlobalConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading global config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing global config %s: %w", path, err)
	}

	cfg.LibraryPath = ExpandPath(cfg.LibraryPath)
	return cfg, nil
}

// ResetGlobalConfigCache forces the next LoadGlobalConfig to read the file.
func ResetGlobalConfigCache() {
	globalCache.Lock()
	globalCache.path, globalCache.cfg = "", nil
	globalCache.Unlock()
}

// GetLibraryPath returns library_path, or "" when unset or unreadable.
func GetLibraryPath() string {
	if cfg, err := LoadGlobalConfig(); err == nil {
		return cfg.LibraryPath
	}
	return ""
}

// ResolveLibrary finds the library for start, falling back to library_path
// when no .pubs directory is found walking up.
func ResolveLibrary(start string) (string, error) {
	root, err := FindLibrary(start)
	if !errors.Is(err, ErrNoLibrary) {
		return root, err
	}

	path := GetLibraryPath()
	switch {
	case path == "":
		return "", ErrNoLibrary
	case !IsLibrary(path):
		return "", fmt.Errorf("%w: %s", ErrLibraryPathNotExist, path)
	}
	return path, nil
}

// HelpfulConfigMessage explains how to create or point at a library.
func HelpfulConfigMessage() string {
	path := GlobalConfigPath()
	return fmt.Sprintf(`No publications library found.

Run 'pubs init' in the directory that should hold the library, or create
%s to set a default:
  mkdir -p %s
  echo 'library_path: /path/to/your/library' > %s`,
		path, filepath.Dir(path), path)
}
