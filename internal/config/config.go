// Package config loads cmd/casdb's optional human-edited settings
// file, following a global-then-project-then-flag precedence chain.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// ErrDataDirEmpty is returned by Load when the resolved data_dir is
// empty. A config file that sets data_dir to the empty string does
// not cause it: an empty value is treated as unset and the value from
// the lower-precedence source is kept.
var ErrDataDirEmpty = errors.New("data-dir cannot be empty")

// ErrConfigFileNotFound is returned when an explicit config path
// (LoadInput.ConfigPath) does not exist.
var ErrConfigFileNotFound = errors.New("config file not found")

// ErrConfigInvalid is returned when a config file's contents are not
// valid JSONC or do not match the expected shape.
var ErrConfigInvalid = errors.New("invalid config file")

// Config holds cmd/casdb's resolved settings.
type Config struct {
	// DataDir is the data_dir setting. It is loaded and merged like the
	// other settings, but cmd/casdb does not apply it: store paths are
	// used exactly as given on the command line.
	DataDir string `json:"data_dir"`

	// DefaultCapacity is the capacity, in bytes, used for `casdb
	// create` when -c/--capacity is not given.
	DefaultCapacity uint64 `json:"default_capacity"`

	// DefaultKeySize is the key size, in bytes, used for `casdb
	// create` when -k/--key-size is not given.
	DefaultKeySize uint32 `json:"default_key_size"`

	// Sources tracks which config files were loaded, for diagnostics.
	Sources Sources `json:"-"`
}

// Sources records the paths of the config files that contributed to a
// resolved Config.
type Sources struct {
	Global  string
	Project string
}

// ConfigFileName is the default project config file name, looked for
// in the current directory.
const ConfigFileName = ".casdb.json"

const (
	defaultDataDir         = "."
	defaultCapacity uint64 = 1 << 30
	defaultKeySize  uint32 = 32
)

// Default returns the built-in settings used when no config file and
// no flag overrides anything.
func Default() Config {
	return Config{
		DataDir:         defaultDataDir,
		DefaultCapacity: defaultCapacity,
		DefaultKeySize:  defaultKeySize,
	}
}

// globalConfigPath returns $XDG_CONFIG_HOME/casdb/config.json, or
// ~/.config/casdb/config.json if XDG_CONFIG_HOME is unset. It returns
// the empty string if neither can be determined.
func globalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "casdb", "config.json")
	}
	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "casdb", "config.json")
	}
	return ""
}

// LoadInput holds the inputs to Load.
type LoadInput struct {
	// WorkDir overrides os.Getwd for locating the project config file.
	WorkDir string
	// ConfigPath is an explicit config file path, read in place of the
	// project config file; it must exist if given. cmd/casdb has no
	// flag that sets it.
	ConfigPath string
	// Env supplies the environment Load reads XDG_CONFIG_HOME/HOME
	// from, so tests can pass a fake one.
	Env map[string]string
}

// Load resolves Config with precedence (highest wins):
//  1. Default()
//  2. Global config file
//  3. Project config file (.casdb.json in WorkDir) or an explicit
//     ConfigPath file
//
// Flag overrides on top of the result are the CLI's own job; Load
// only merges file-based settings.
func Load(in LoadInput) (Config, error) {
	workDir := in.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("config: getwd: %w", err)
		}
	}

	cfg := Default()

	globalCfg, globalPath, err := loadGlobal(in.Env)
	if err != nil {
		return Config{}, err
	}
	cfg.Sources.Global = globalPath
	cfg = merge(cfg, globalCfg)

	projectCfg, projectPath, err := loadProject(workDir, in.ConfigPath)
	if err != nil {
		return Config{}, err
	}
	cfg.Sources.Project = projectPath
	cfg = merge(cfg, projectCfg)

	if cfg.DataDir == "" {
		return Config{}, ErrDataDirEmpty
	}
	return cfg, nil
}

func loadGlobal(env map[string]string) (Config, string, error) {
	path := globalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}
	cfg, loaded, err := loadFile(path, false)
	if err != nil || !loaded {
		return Config{}, "", err
	}
	return cfg, path, nil
}

func loadProject(workDir, explicitPath string) (Config, string, error) {
	path := explicitPath
	mustExist := path != ""
	if path == "" {
		path = filepath.Join(workDir, ConfigFileName)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	if mustExist {
		if _, err := os.Stat(path); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, explicitPath)
		}
	}

	cfg, loaded, err := loadFile(path, mustExist)
	if err != nil || !loaded {
		return Config{}, "", err
	}
	return cfg, path, nil
}

func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("config: read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}
	return cfg, true, nil
}

func merge(base, overlay Config) Config {
	if overlay.DataDir != "" {
		base.DataDir = overlay.DataDir
	}
	if overlay.DefaultCapacity != 0 {
		base.DefaultCapacity = overlay.DefaultCapacity
	}
	if overlay.DefaultKeySize != 0 {
		base.DefaultKeySize = overlay.DefaultKeySize
	}
	return base
}
