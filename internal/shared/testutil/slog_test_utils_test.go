package testutil

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler_Capture(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.Info("test message", slog.String("key", "value"))
	logger.Error("error message", slog.Int("code", 500))

	assert.Len(t, handler.GetRecords(), 2)
	assert.True(t, handler.ContainsMessage("test message"))
	assert.True(t, handler.ContainsAttr("key", "value"))
	assert.True(t, handler.ContainsAttr("code", int64(500)))
	assert.False(t, handler.ContainsAttr("key", "other"))
}

func TestBufferedSlogHandler_LevelFilter(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.Debug("debug msg")
	logger.Info("info msg")
	logger.Warn("warn msg")
	logger.Error("error msg")

	assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
	assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
	assert.Equal(t, 4, handler.Count())
}

func TestBufferedSlogHandler_AssertionHelpers(t *testing.T) {
	logger, handler := NewTestLogger(t)

	logger.Info("important message", slog.String("component", "test"))
	logger.Warn("warning message", slog.Int("retry", 3))

	AssertLogContains(t, handler, slog.LevelInfo, "important")
	AssertNoErrors(t, handler)
}

func TestBufferedSlogHandler_ConcurrentWrites(t *testing.T) {
	logger, handler := NewTestLogger(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Info("concurrent log", slog.Int("goroutine", n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, handler.Count())
}

func TestDatasetFixtures(t *testing.T) {
	t.Run("sequence csv", func(t *testing.T) {
		assert.Equal(t, "value\n1\n2\n3\n", SequenceCSV(3))
	})

	t.Run("workbook bytes present", func(t *testing.T) {
		data := ValidWorkbook(t)
		require.NotEmpty(t, data)
	})
}
