package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "pricebench/internal/errors"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug().Str("provider", "P1").Msg("lookup")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "debug", line["level"])
	require.Equal(t, "P1", line["provider"])
	require.Equal(t, "lookup", line["message"])
	require.Contains(t, line, "time")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "WARN", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	require.Zero(t, buf.Len())
	logger.Warn().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestNew_ConsoleDefault(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("hello")
	require.Contains(t, buf.String(), "hello")
	require.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Config{Level: "loud"}, &bytes.Buffer{})
	var ce apperrors.ConfigError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "log.level", ce.Field)

	_, err = New(Config{Format: "xml"}, &bytes.Buffer{})
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "log.format", ce.Field)
}
