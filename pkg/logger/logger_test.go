package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikusl4ju/myinvoice-sync/pkg/logger"
)

func TestComponent_AgregaCampo(t *testing.T) {
	var buf bytes.Buffer
	log := logger.FromZerolog(zerolog.New(&buf)).Component("scheduler")

	log.Info().Str("pass", "sync").Msg("pasada iniciada")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "scheduler", line["component"])
	assert.Equal(t, "sync", line["pass"])
	assert.Equal(t, "pasada iniciada", line["message"])
}

func TestNop_NoEscribeNada(t *testing.T) {
	l := logger.Nop()
	assert.NotPanics(t, func() { l.Error().Msg("ignorado") })
}
