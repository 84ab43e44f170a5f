package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fjod/agromarket/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithOutput(config.Log{Level: "debug", Format: "json"}, &buf)

	logger.WithField("checkout_id", "c1").Debug("charging")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "charging", entry["msg"])
	assert.Equal(t, "c1", entry["checkout_id"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithOutput(config.Log{Level: "info", Format: "TEXT"}, &buf)

	logger.Info("ready")
	assert.Contains(t, buf.String(), `msg=ready`)
}

func TestNew_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithOutput(config.Log{Level: "chatty"}, &buf)

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.Contains(t, buf.String(), "unknown log level")
}
