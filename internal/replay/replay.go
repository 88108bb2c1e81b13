// Package replay watches the rectified frames for bursts of table motion
// and captures a clip (or a frame snapshot) for later review.
package replay

import (
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Config tunes the recorder.
type Config struct {
	// Dir receives the captured clips and snapshots.
	Dir string
	// Threshold is the mean per-pixel luminance delta (0-255) that
	// counts as table motion.
	Threshold float64
	// Cooldown suppresses retriggers after a capture.
	Cooldown time.Duration
	// ClipSeconds is the clip length recorded from Device.
	ClipSeconds int
	// Device is the camera source to clip from. Empty falls back to
	// saving the triggering frame as a JPEG.
	Device string
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("replay: directory is required")
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("replay: threshold must be positive, got %v", c.Threshold)
	}
	return nil
}

// Recorder detects activity between consecutive frames. It is owned by
// the pipeline goroutine.
type Recorder struct {
	cfg       Config
	prev      *image.RGBA
	lastShot  time.Time
	triggered int
}

// NewRecorder builds a recorder and ensures the output directory exists.
func NewRecorder(cfg Config) (*Recorder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}
	if cfg.ClipSeconds <= 0 {
		cfg.ClipSeconds = 6
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("replay: create dir: %w", err)
	}
	return &Recorder{cfg: cfg}, nil
}

// Triggered returns how many captures have fired.
func (r *Recorder) Triggered() int { return r.triggered }

// Observe feeds one frame. When motion against the previous frame
// crosses the threshold and the cooldown has elapsed, a capture fires.
func (r *Recorder) Observe(frame *image.RGBA, now time.Time) {
	prev := r.prev
	r.prev = frame
	if prev == nil || !prev.Bounds().Eq(frame.Bounds()) {
		return
	}

	diff := meanLumaDiff(prev, frame)
	if diff < r.cfg.Threshold {
		return
	}
	if now.Sub(r.lastShot) < r.cfg.Cooldown {
		return
	}

	r.lastShot = now
	r.triggered++
	log.Printf("[Replay] Motion %.1f over threshold %.1f, capturing", diff, r.cfg.Threshold)
	r.capture(frame, now)
}

func (r *Recorder) capture(frame *image.RGBA, now time.Time) {
	stamp := now.Format("20060102-150405")
	if r.cfg.Device == "" {
		path := filepath.Join(r.cfg.Dir, fmt.Sprintf("shot-%s.jpg", stamp))
		f, err := os.Create(path)
		if err != nil {
			log.Printf("[Replay] Error creating snapshot: %v", err)
			return
		}
		defer f.Close()
		if err := jpeg.Encode(f, frame, &jpeg.Options{Quality: 85}); err != nil {
			log.Printf("[Replay] Error encoding snapshot: %v", err)
		}
		return
	}

	// Clip recording is best effort; a failed ffmpeg run never disturbs
	// the pipeline.
	path := filepath.Join(r.cfg.Dir, fmt.Sprintf("clip-%s.mp4", stamp))
	cmd := exec.Command("ffmpeg",
		"-y",
		"-i", r.cfg.Device,
		"-t", fmt.Sprintf("%d", r.cfg.ClipSeconds),
		"-c:v", "libx264",
		"-preset", "ultrafast",
		path,
	)
	go func() {
		if err := cmd.Run(); err != nil {
			log.Printf("[Replay] Error recording clip: %v", err)
			return
		}
		log.Printf("[Replay] Saved clip %s", path)
	}()
}

// meanLumaDiff computes the mean absolute luminance difference between
// two equally sized frames, sampled on a stride to stay cheap.
func meanLumaDiff(a, b *image.RGBA) float64 {
	const stride = 4
	bounds := a.Bounds()

	var sum, n float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			la := luma(a, x, y)
			lb := luma(b, x, y)
			d := la - lb
			if d < 0 {
				d = -d
			}
			sum += d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / n
}

func luma(img *image.RGBA, x, y int) float64 {
	i := img.PixOffset(x, y)
	p := img.Pix[i : i+3 : i+3]
	return 0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2])
}
