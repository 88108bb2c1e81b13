package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Simulated(), "no camera device configured, expected simulator mode")
	assert.Equal(t, 1000, cfg.TableWidth)
	assert.Equal(t, 500, cfg.TableHeight)
	assert.Equal(t, 1.2, cfg.Game().PocketSlop)
	assert.False(t, cfg.NotifyEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POOLMIND_CAMERA_DEVICE", "rtsp://cam.local/table")
	t.Setenv("POOLMIND_CAMERA_FPS", "30")
	t.Setenv("POOLMIND_MARKER_IDS", "10,11,12,13")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Simulated(), "camera device set, expected live mode")
	assert.Equal(t, 30, cfg.Capture().FPS)
	assert.Equal(t, [4]int{10, 11, 12, 13}, cfg.Calibration().CornerIDs)
}

func TestNotifyRequiresBothCredentials(t *testing.T) {
	t.Setenv("POOLMIND_TELEGRAM_TOKEN", "tok")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.NotifyEnabled())

	t.Setenv("POOLMIND_TELEGRAM_CHAT", "42")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.NotifyEnabled())
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("POOLMIND_MARKER_IDS", "1,2,3")
	_, err := Load()
	assert.Error(t, err, "accepted 3 marker IDs")

	t.Setenv("POOLMIND_MARKER_IDS", "0,1,2,3")
	t.Setenv("POOLMIND_BALL_MIN_RADIUS", "30")
	t.Setenv("POOLMIND_BALL_MAX_RADIUS", "10")
	_, err = Load()
	assert.Error(t, err, "accepted inverted radius band")
}
