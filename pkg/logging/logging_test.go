package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	originalOutput := logger.Out
	logger.SetOutput(&buf)
	defer logger.SetOutput(originalOutput)

	SetLevel(InfoLevel)

	Debugf("debug message")
	assert.Empty(t, buf.String())

	buf.Reset()
	Infof("info message")
	assert.Contains(t, buf.String(), "info message")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	originalOutput := logger.Out
	logger.SetOutput(&buf)
	defer logger.SetOutput(originalOutput)

	SetLevel(DebugLevel)

	WithComponent("transport").Info("component message")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "component message")
	assert.Contains(t, logOutput, "component=transport")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	originalOutput := logger.Out
	logger.SetOutput(&buf)
	defer logger.SetOutput(originalOutput)

	SetLevel(DebugLevel)

	WithFields(logrus.Fields{"remote": "127.0.0.1:9000", "seq": 7}).Info("field message")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "field message")
	assert.Contains(t, logOutput, "remote=\"127.0.0.1:9000\"")
	assert.Contains(t, logOutput, "seq=7")
}

func TestFileLogging(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "logging_test")
	assert.NoError(t, err)
	defer os.RemoveAll(tempDir)

	err = EnableFileLogging(tempDir, "test.log", 10, 3, 7)
	assert.NoError(t, err)

	Infof("file log test message")

	content, err := os.ReadFile(filepath.Join(tempDir, "test.log"))
	assert.NoError(t, err)
	assert.Contains(t, string(content), "file log test message")

	logger.SetOutput(os.Stdout)
}
