package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
)

func TestNewWritesPrefixedOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, Prefix: "radiod"})
	logger.Info("tuning", "hz", 14200000)

	out := buf.String()
	assert.Contains(t, out, "radiod")
	assert.Contains(t, out, "tuning")
	assert.Contains(t, out, "14200000")
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf, Level: log.WarnLevel})
	logger.Info("should not appear")
	logger.Warn("should appear")

	out := buf.String()
	assert.False(t, strings.Contains(out, "should not appear"))
	assert.True(t, strings.Contains(out, "should appear"))
}
