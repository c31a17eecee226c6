package helpers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "sjsage522/listingwatcher/pkg/errors"
)

func TestLogger(t *testing.T) {
	// Create a temporary file for testing
	tmpFile := filepath.Join(t.TempDir(), "test_error.log")

	// Create a logger
	logger := NewLogger(tmpFile)

	// Log an error
	logger.LogError("cars", errors.New("test error"))
	logger.LogError("bikes", apperrors.NewBotDetected("bikes", "ShieldSquare Captcha"))

	// Check that the file was created and contains the errors
	data, err := os.ReadFile(tmpFile)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "[cars] test error")
	assert.Contains(t, string(data), "[bikes] [bot_detected]")

	// Info messages are logged to stdout, not the file
	logger.LogInfo("Test info message: %s", "hello")
}

func TestLoggerWithoutFile(t *testing.T) {
	logger := NewLogger("")
	logger.LogError("cars", errors.New("test error"))
}
