package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestModelKind(t *testing.T) {
	assert.True(t, ModelDual.Valid())
	assert.False(t, ModelKind("Bogus").Valid())
	assert.False(t, ModelKind("olmodel").Valid())

	assert.Equal(t, "OL", ModelOllama.ProcessorName())
	assert.Equal(t, "MLX", ModelMLX.ProcessorName())
	assert.Len(t, ModelKindNames(), 6)
}

func TestSwapExt(t *testing.T) {
	tests := []struct {
		path, ext, want string
	}{
		{"/data/a.png", ".txt", "/data/a.txt"},
		{"/data/a.b.png", ".txt", "/data/a.b.txt"},
		{"/data/a.PNG", ".txt", "/data/a.txt"},
		{"/data/noext", ".txt", "/data/noext.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SwapExt(tt.path, tt.ext), tt.path)
	}
}

func TestCaptionTask_DisplayName(t *testing.T) {
	task := CaptionTask{ImagePath: "/d/x.png", TextPath: "/d/x.txt"}
	assert.Equal(t, "x.png", task.DisplayName(ModeDirect))
	assert.Equal(t, "x.txt", task.DisplayName(ModePromptComparison))
}

func TestRunStats(t *testing.T) {
	start := time.Now()
	stats := &RunStats{StartTime: start}
	assert.False(t, stats.HasFailures())

	stats.RecordFailure("a.txt", errors.New("boom"))
	assert.True(t, stats.HasFailures())
	assert.Equal(t, 1, stats.FailedItems)
	assert.Equal(t, "a.txt", stats.Failures[0].Path)

	stats.EndTime = start.Add(2 * time.Second)
	assert.Equal(t, 2*time.Second, stats.Duration())
}
