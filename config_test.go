package percept

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {

	cfg := DefaultConfig()

	assert.Equal(t, "cpu", cfg.Backend)
	assert.True(t, cfg.Async)
	assert.True(t, cfg.Scoped)
	assert.False(t, cfg.VideoOptimized)

	assert.True(t, cfg.Face.Enabled)
	assert.True(t, cfg.Body.Enabled)
	assert.True(t, cfg.Hand.Enabled)
	assert.True(t, cfg.Object.Enabled)
	assert.True(t, cfg.Gesture.Enabled)

	assert.False(t, cfg.Face.Embedding.Enabled)
	assert.False(t, cfg.Face.Describe.Enabled)

	assert.Equal(t, 61, cfg.Object.BackgroundClass)
	assert.InDelta(t, 0.45, cfg.Object.IoUThreshold, 1e-6)
}

func TestConfigSnapshotDoesNotMutateBase(t *testing.T) {

	base := DefaultConfig()

	snap := base.snapshot(
		WithAsync(false),
		WithVideoOptimized(true),
		WithSkipFrames(3),
		WithObjectThresholds(0.5, 0.3, 20),
	)

	assert.False(t, snap.Async)
	assert.True(t, snap.VideoOptimized)
	assert.Equal(t, 3, snap.Object.SkipFrames)
	assert.InDelta(t, 0.5, snap.Object.MinConfidence, 1e-6)
	assert.InDelta(t, 0.3, snap.Object.IoUThreshold, 1e-6)
	assert.Equal(t, 20, snap.Object.MaxResults)

	// base configuration is untouched by per call overrides
	assert.True(t, base.Async)
	assert.False(t, base.VideoOptimized)
	assert.Equal(t, 0, base.Object.SkipFrames)
	assert.Equal(t, 10, base.Object.MaxResults)
}

func TestLoadConfigFile(t *testing.T) {

	yaml := `
backend: npu
async: false
videoOptimized: true
face:
  enabled: false
object:
  skipFrames: 4
  minConfidence: 0.35
`

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "npu", cfg.Backend)
	assert.False(t, cfg.Async)
	assert.True(t, cfg.VideoOptimized)
	assert.False(t, cfg.Face.Enabled)
	assert.Equal(t, 4, cfg.Object.SkipFrames)
	assert.InDelta(t, 0.35, cfg.Object.MinConfidence, 1e-6)

	// fields absent from the file keep their defaults
	assert.True(t, cfg.Body.Enabled)
	assert.Equal(t, 61, cfg.Object.BackgroundClass)
	assert.Equal(t, "models/nanodet.onnx", cfg.Object.ModelPath)
}

func TestLoadConfigFileMissing(t *testing.T) {

	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
