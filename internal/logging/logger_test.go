package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json format", func(t *testing.T) {
		logger, err := New(Config{Level: "info", Format: "json"})
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("console format", func(t *testing.T) {
		logger, err := New(Config{Level: "debug", Format: "console"})
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("all levels parse", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			_, err := New(Config{Level: level, Format: "json"})
			assert.NoError(t, err, level)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := New(Config{Level: "verbose", Format: "json"})
		assert.Error(t, err)
	})
}
