package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-portal/internal/config"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("entity", "topic").Info("create")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "create", entry["msg"])
	assert.Equal(t, "topic", entry["entity"])
}

func TestNew_Defaults(t *testing.T) {
	log, err := NewWithWriter(config.LogConfig{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, log.Formatter)
}

func TestNew_Invalid(t *testing.T) {
	_, err := NewWithWriter(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
	_, err = NewWithWriter(config.LogConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
