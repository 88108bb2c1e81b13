// Package config loads runtime configuration from the environment and
// maps it onto the per-component config structs.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"poolmind/internal/calib"
	"poolmind/internal/capture"
	"poolmind/internal/detect"
	"poolmind/internal/game"
	"poolmind/internal/notify"
	"poolmind/internal/table"
	"poolmind/internal/track"
	"poolmind/internal/vision"
)

// Config is the full runtime configuration. Every knob has a usable
// default so a bare `poolmind` starts in simulator mode.
type Config struct {
	// Capture
	CameraDevice string `env:"POOLMIND_CAMERA_DEVICE" envDefault:""`
	CameraFPS    int    `env:"POOLMIND_CAMERA_FPS" envDefault:"15"`
	CameraWidth  int    `env:"POOLMIND_CAMERA_WIDTH" envDefault:"1280"`
	CameraHeight int    `env:"POOLMIND_CAMERA_HEIGHT" envDefault:"720"`

	// Canonical table space
	TableWidth   int     `env:"POOLMIND_TABLE_WIDTH" envDefault:"1000"`
	TableHeight  int     `env:"POOLMIND_TABLE_HEIGHT" envDefault:"500"`
	TableMargin  int     `env:"POOLMIND_TABLE_MARGIN" envDefault:"30"`
	PocketRadius float64 `env:"POOLMIND_POCKET_RADIUS" envDefault:"36"`
	PocketSlop   float64 `env:"POOLMIND_POCKET_SLOP" envDefault:"1.2"`

	// Calibration
	CalibAlpha   float64 `env:"POOLMIND_CALIB_ALPHA" envDefault:"0.2"`
	MarkerIDs    []int   `env:"POOLMIND_MARKER_IDS" envSeparator:"," envDefault:"0,1,2,3"`
	MarkerMinPix int     `env:"POOLMIND_MARKER_MIN_PIXELS" envDefault:"16"`

	// Detection
	BallMinRadius  float64 `env:"POOLMIND_BALL_MIN_RADIUS" envDefault:"8"`
	BallMaxRadius  float64 `env:"POOLMIND_BALL_MAX_RADIUS" envDefault:"22"`
	BallMinSpacing float64 `env:"POOLMIND_BALL_MIN_SPACING" envDefault:"16"`
	BlurSigma      float64 `env:"POOLMIND_BLUR_SIGMA" envDefault:"0"`

	// Tracking
	TrackMaxDistance   float64 `env:"POOLMIND_TRACK_MAX_DISTANCE" envDefault:"40"`
	TrackMaxDisappear  int     `env:"POOLMIND_TRACK_MAX_DISAPPEARED" envDefault:"8"`
	TrackHistoryLen    int     `env:"POOLMIND_TRACK_HISTORY" envDefault:"120"`
	ReappearWindow     int     `env:"POOLMIND_REAPPEAR_WINDOW" envDefault:"90"`
	ReappearRadius     float64 `env:"POOLMIND_REAPPEAR_RADIUS" envDefault:"30"`

	// Server
	ListenAddr   string `env:"POOLMIND_LISTEN_ADDR" envDefault:":8080"`
	JWTSecret    string `env:"POOLMIND_JWT_SECRET" envDefault:""`
	AdminUser    string `env:"POOLMIND_ADMIN_USER" envDefault:"admin"`
	AdminPassRaw string `env:"POOLMIND_ADMIN_PASSWORD" envDefault:""`
	EventLogSize int    `env:"POOLMIND_EVENT_LOG" envDefault:"200"`

	// Storage
	DBPath string `env:"POOLMIND_DB_PATH" envDefault:"poolmind.db"`

	// Replay clips
	ReplayEnabled   bool    `env:"POOLMIND_REPLAY_ENABLED" envDefault:"false"`
	ReplayDir       string  `env:"POOLMIND_REPLAY_DIR" envDefault:"replays"`
	ReplayThreshold float64 `env:"POOLMIND_REPLAY_THRESHOLD" envDefault:"8"`
	ReplayCooldown  int     `env:"POOLMIND_REPLAY_COOLDOWN_SEC" envDefault:"10"`

	// Telegram announcements, disabled unless both are set
	TelegramToken    string `env:"POOLMIND_TELEGRAM_TOKEN" envDefault:""`
	TelegramChatID   string `env:"POOLMIND_TELEGRAM_CHAT" envDefault:""`
	TelegramCooldown int    `env:"POOLMIND_TELEGRAM_COOLDOWN_SEC" envDefault:"30"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the component configs cannot
// see on their own.
func (c Config) Validate() error {
	if len(c.MarkerIDs) != 4 {
		return fmt.Errorf("config: exactly 4 marker IDs required, got %d", len(c.MarkerIDs))
	}
	if c.BallMinRadius > c.BallMaxRadius {
		return fmt.Errorf("config: ball radius band inverted (%v > %v)", c.BallMinRadius, c.BallMaxRadius)
	}
	if c.CameraFPS <= 0 {
		return fmt.Errorf("config: camera fps must be positive, got %d", c.CameraFPS)
	}
	return nil
}

// Simulated reports whether the pipeline should run on the synthetic
// table instead of a camera.
func (c Config) Simulated() bool { return c.CameraDevice == "" }

// Capture returns the ffmpeg source parameters.
func (c Config) Capture() capture.FFmpegConfig {
	return capture.FFmpegConfig{
		Device: c.CameraDevice,
		FPS:    c.CameraFPS,
		Width:  c.CameraWidth,
		Height: c.CameraHeight,
	}
}

// Calibration returns the calibrator parameters. Marker color ranges are
// not environment-tunable; callers supply them per deployment.
func (c Config) Calibration() calib.Config {
	var corners [4]int
	copy(corners[:], c.MarkerIDs)
	return calib.Config{
		CornerIDs: corners,
		TableW:    c.TableWidth,
		TableH:    c.TableHeight,
		Alpha:     c.CalibAlpha,
	}
}

// Table returns the canonical table geometry.
func (c Config) Table() table.Config {
	return table.Config{
		Width:        c.TableWidth,
		Height:       c.TableHeight,
		Margin:       c.TableMargin,
		PocketRadius: c.PocketRadius,
	}
}

// Detection returns the ball detector parameters over the given cloth
// color range.
func (c Config) Detection(cloth vision.HSVRange) detect.Config {
	return detect.Config{
		Cloth:         cloth,
		MinRadius:     c.BallMinRadius,
		MaxRadius:     c.BallMaxRadius,
		MinSeparation: c.BallMinSpacing,
		BlurSigma:     float32(c.BlurSigma),
		Rules:         detect.DefaultRules(),
	}
}

// Tracking returns the tracker parameters.
func (c Config) Tracking() track.Config {
	return track.Config{
		MaxMatchDistance: c.TrackMaxDistance,
		MaxDisappeared:   c.TrackMaxDisappear,
		HistoryLen:       c.TrackHistoryLen,
	}
}

// NotifyEnabled reports whether Telegram announcements are configured.
func (c Config) NotifyEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

// Notify returns the Telegram notifier parameters.
func (c Config) Notify() notify.Config {
	return notify.Config{
		BotToken: c.TelegramToken,
		ChatID:   c.TelegramChatID,
		Cooldown: time.Duration(c.TelegramCooldown) * time.Second,
	}
}

// Game returns the rule engine parameters.
func (c Config) Game() game.Config {
	return game.Config{
		PocketSlop:     c.PocketSlop,
		ReappearWindow: c.ReappearWindow,
		ReappearRadius: c.ReappearRadius,
	}
}
