package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("production", &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("slot_id", "s1").Msg("slot created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "slot created", entry["message"])
	assert.Equal(t, "s1", entry["slot_id"])
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestSetupDevelopmentIsVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("development", &buf)
	assert.Equal(t, zerolog.DebugLevel, logger.GetLevel())

	logger.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestGinMode(t *testing.T) {
	assert.Equal(t, gin.DebugMode, GinMode("development"))
	assert.Equal(t, gin.TestMode, GinMode("test"))
	assert.Equal(t, gin.ReleaseMode, GinMode("production"))
}
