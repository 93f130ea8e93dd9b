package slog

import (
	"bytes"
	"testing"

	"github.com/bridjelang/bridje/internal/testconfig"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	testconfig.AllowParallelization(t)

	level, err := ParseLevel("")
	assert.NoError(t, err)
	assert.Equal(t, InfoLevel, level)

	level, err = ParseLevel(" DEBUG ")
	assert.NoError(t, err)
	assert.Equal(t, DebugLevel, level)

	_, err = ParseLevel("verbose")
	assert.ErrorContains(t, err, `invalid log level "verbose"`)
}

func TestChildLoggerForSource(t *testing.T) {
	testconfig.AllowParallelization(t)

	buf := &bytes.Buffer{}
	logger := zerolog.New(buf)

	child := ChildLoggerForSource(logger, "engine")
	child.Info().Msg("installed")
	assert.JSONEq(t, `{"lvl":"info","src":"engine","msg":"installed"}`, buf.String())
}
