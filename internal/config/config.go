package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
	"github.com/bridjelang/bridje/internal/slog"
	"github.com/goccy/go-yaml"
)

const (
	APP_NAME = "brj"

	PROJECT_CONFIG_FILE = "brj.yaml"
	USER_CONFIG_RELPATH = APP_NAME + "/config.yaml"
	HISTORY_RELPATH     = APP_NAME + "/history"

	DEFAULT_SOURCE_ROOT    = "src"
	DEFAULT_LOG_LEVEL      = "info"
	DEFAULT_WATCH_DEBOUNCE = 100 * time.Millisecond

	COLOR_AUTO   = "auto"
	COLOR_ALWAYS = "always"
	COLOR_NEVER  = "never"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")

	COLOR_MODES = []string{COLOR_AUTO, COLOR_ALWAYS, COLOR_NEVER}
)

type Config struct {
	SourceRoots   []string
	LogLevel      string
	Color         string
	WatchDebounce time.Duration
	HistoryFile   string //empty: the history file is located in the XDG data directory
}

// fileConfig is the content of a configuration file, absent fields do not override the
// values of the previous layer.
type fileConfig struct {
	SourceRoots   []string `yaml:"source-roots"`
	LogLevel      *string  `yaml:"log-level"`
	Color         *string  `yaml:"color"`
	WatchDebounce *string  `yaml:"watch-debounce"`
	HistoryFile   *string  `yaml:"history-file"`
}

func Default() Config {
	return Config{
		SourceRoots:   []string{DEFAULT_SOURCE_ROOT},
		LogLevel:      DEFAULT_LOG_LEVEL,
		Color:         COLOR_AUTO,
		WatchDebounce: DEFAULT_WATCH_DEBOUNCE,
	}
}

// Load returns the default configuration overridden by the user file
// ($XDG_CONFIG_HOME/brj/config.yaml) and then by the brj.yaml file of projectDir.
// Both files are optional.
func Load(projectDir string) (Config, error) {
	config := Default()

	if userFile, err := xdg.SearchConfigFile(USER_CONFIG_RELPATH); err == nil {
		if err := config.mergeFile(userFile); err != nil {
			return Config{}, err
		}
	}

	projectFile := filepath.Join(projectDir, PROJECT_CONFIG_FILE)
	if err := config.mergeFile(projectFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) mergeFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := c.merge(content); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (c *Config) merge(content []byte) error {
	var file fileConfig
	if err := yaml.UnmarshalWithOptions(content, &file, yaml.Strict()); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if file.SourceRoots != nil {
		c.SourceRoots = file.SourceRoots
	}
	if file.LogLevel != nil {
		c.LogLevel = *file.LogLevel
	}
	if file.Color != nil {
		c.Color = *file.Color
	}
	if file.HistoryFile != nil {
		c.HistoryFile = *file.HistoryFile
	}
	if file.WatchDebounce != nil {
		d, err := time.ParseDuration(*file.WatchDebounce)
		if err != nil {
			return fmt.Errorf("%w: watch-debounce: %w", ErrInvalidConfig, err)
		}
		c.WatchDebounce = d
	}
	return nil
}

func (c Config) Validate() error {
	if len(c.SourceRoots) == 0 {
		return fmt.Errorf("%w: at least one source root is required", ErrInvalidConfig)
	}
	if _, err := slog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !slices.Contains(COLOR_MODES, c.Color) {
		return fmt.Errorf("%w: color should be one of %v, got %q", ErrInvalidConfig, COLOR_MODES, c.Color)
	}
	if c.WatchDebounce <= 0 {
		return fmt.Errorf("%w: watch-debounce should be positive", ErrInvalidConfig)
	}
	return nil
}

// HistoryPath returns the path of the REPL history file, the XDG data directory is created
// if necessary.
func (c Config) HistoryPath() (string, error) {
	if c.HistoryFile != "" {
		return c.HistoryFile, nil
	}
	return xdg.DataFile(HISTORY_RELPATH)
}
