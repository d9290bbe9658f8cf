package ulogger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewZeroLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := NewZeroLogger("test", WithWriter(&buf), WithLevel("DEBUG"))
	require.NotNil(t, logger)

	logger.Debugf("hello %s", "world")
	assert.Contains(t, buf.String(), "hello world")
	assert.Contains(t, buf.String(), `"service":"test"`)
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := NewZeroLogger("test", WithWriter(&buf), WithLevel("WARN"))

	logger.Infof("should not appear")
	assert.Empty(t, buf.String())

	logger.Warnf("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestDuplicateKeepsWriter(t *testing.T) {
	var buf bytes.Buffer

	logger := NewZeroLogger("test", WithWriter(&buf), WithLevel("INFO"))
	dup := logger.Duplicate(WithLevel("DEBUG"))

	dup.Debugf("from the duplicate")
	assert.Contains(t, buf.String(), "from the duplicate")
}
