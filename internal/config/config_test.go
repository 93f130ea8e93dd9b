package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bridjelang/bridje/internal/testconfig"
	"github.com/stretchr/testify/assert"
)

func TestMerge(t *testing.T) {
	testconfig.AllowParallelization(t)

	t.Run("absent fields are kept", func(t *testing.T) {
		config := Default()
		err := config.merge([]byte("log-level: debug\n"))
		if !assert.NoError(t, err) {
			return
		}

		assert.Equal(t, "debug", config.LogLevel)
		assert.Equal(t, []string{DEFAULT_SOURCE_ROOT}, config.SourceRoots)
		assert.Equal(t, COLOR_AUTO, config.Color)
		assert.Equal(t, DEFAULT_WATCH_DEBOUNCE, config.WatchDebounce)
	})

	t.Run("all fields", func(t *testing.T) {
		config := Default()
		err := config.merge([]byte(`
source-roots: [src, lib]
log-level: warn
color: never
watch-debounce: 1s
history-file: /tmp/history
`))
		if !assert.NoError(t, err) {
			return
		}

		assert.Equal(t, Config{
			SourceRoots:   []string{"src", "lib"},
			LogLevel:      "warn",
			Color:         COLOR_NEVER,
			WatchDebounce: time.Second,
			HistoryFile:   "/tmp/history",
		}, config)
	})

	t.Run("unknown field", func(t *testing.T) {
		config := Default()
		err := config.merge([]byte("unknown: 1\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("invalid duration", func(t *testing.T) {
		config := Default()
		err := config.merge([]byte("watch-debounce: soon\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestValidate(t *testing.T) {
	testconfig.AllowParallelization(t)

	assert.NoError(t, Default().Validate())

	invalid := map[string]func(c *Config){
		"no source roots":   func(c *Config) { c.SourceRoots = nil },
		"invalid log level": func(c *Config) { c.LogLevel = "verbose" },
		"invalid color":     func(c *Config) { c.Color = "sometimes" },
		"negative debounce": func(c *Config) { c.WatchDebounce = -time.Second },
	}

	for name, modify := range invalid {
		t.Run(name, func(t *testing.T) {
			config := Default()
			modify(&config)
			assert.ErrorIs(t, config.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	testconfig.AllowParallelization(t)

	t.Run("without project file", func(t *testing.T) {
		config, err := Load(t.TempDir())
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, []string{DEFAULT_SOURCE_ROOT}, config.SourceRoots)
	})

	t.Run("project file", func(t *testing.T) {
		dir := t.TempDir()
		err := os.WriteFile(filepath.Join(dir, PROJECT_CONFIG_FILE), []byte("source-roots: [lib]\n"), 0o600)
		if !assert.NoError(t, err) {
			return
		}

		config, err := Load(dir)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, []string{"lib"}, config.SourceRoots)
	})

	t.Run("invalid project file", func(t *testing.T) {
		dir := t.TempDir()
		err := os.WriteFile(filepath.Join(dir, PROJECT_CONFIG_FILE), []byte("color: sometimes\n"), 0o600)
		if !assert.NoError(t, err) {
			return
		}

		_, err = Load(dir)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestShouldColorize(t *testing.T) {
	testconfig.AllowParallelization(t)

	env := func(vars map[string]string) ColorEnv {
		return ReadColorEnv(func(name string) (string, bool) {
			v, ok := vars[name]
			return v, ok
		})
	}

	assert.True(t, env(nil).ShouldColorize(COLOR_ALWAYS, false))
	assert.False(t, env(map[string]string{"FORCE_COLOR": "1"}).ShouldColorize(COLOR_NEVER, true))

	assert.False(t, env(nil).ShouldColorize(COLOR_AUTO, true))
	assert.True(t, env(map[string]string{"TERM": "xterm-256color"}).ShouldColorize(COLOR_AUTO, true))
	assert.False(t, env(map[string]string{"TERM": "xterm-256color"}).ShouldColorize(COLOR_AUTO, false))
	assert.True(t, env(map[string]string{"COLORTERM": "truecolor"}).ShouldColorize(COLOR_AUTO, true))
	assert.True(t, env(map[string]string{"FORCE_COLOR": "1"}).ShouldColorize(COLOR_AUTO, false))
	assert.False(t, env(map[string]string{"FORCE_COLOR": "0"}).ShouldColorize(COLOR_AUTO, false))
	assert.False(t, env(map[string]string{"NO_COLOR": "1", "TERM": "xterm-256color"}).ShouldColorize(COLOR_AUTO, true))
}
