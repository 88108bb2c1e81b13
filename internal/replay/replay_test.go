package replay

import (
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func uniformFrame(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func newTestRecorder(t *testing.T, threshold float64, cooldown time.Duration) *Recorder {
	t.Helper()
	r, err := NewRecorder(Config{
		Dir:       t.TempDir(),
		Threshold: threshold,
		Cooldown:  cooldown,
	})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	return r
}

func TestMeanLumaDiff(t *testing.T) {
	black := uniformFrame(color.RGBA{0, 0, 0, 255})
	white := uniformFrame(color.RGBA{255, 255, 255, 255})

	if d := meanLumaDiff(black, black); d != 0 {
		t.Fatalf("identical frames diff = %v", d)
	}
	if d := meanLumaDiff(black, white); d < 250 {
		t.Fatalf("black/white diff = %v, want ~255", d)
	}
}

func TestObserveTriggersAboveThreshold(t *testing.T) {
	r := newTestRecorder(t, 50, time.Minute)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	r.Observe(uniformFrame(color.RGBA{0, 0, 0, 255}), now)
	if r.Triggered() != 0 {
		t.Fatal("triggered on first frame")
	}

	r.Observe(uniformFrame(color.RGBA{255, 255, 255, 255}), now.Add(time.Second))
	if r.Triggered() != 1 {
		t.Fatalf("triggered = %d, want 1", r.Triggered())
	}
}

func TestObserveRespectsCooldown(t *testing.T) {
	r := newTestRecorder(t, 50, time.Minute)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	black := color.RGBA{0, 0, 0, 255}
	white := color.RGBA{255, 255, 255, 255}

	r.Observe(uniformFrame(black), now)
	r.Observe(uniformFrame(white), now.Add(time.Second))
	r.Observe(uniformFrame(black), now.Add(2*time.Second))
	if r.Triggered() != 1 {
		t.Fatalf("cooldown ignored: triggered = %d", r.Triggered())
	}

	r.Observe(uniformFrame(white), now.Add(2*time.Minute))
	if r.Triggered() != 2 {
		t.Fatalf("triggered after cooldown = %d, want 2", r.Triggered())
	}
}

func TestObserveIgnoresQuietFrames(t *testing.T) {
	r := newTestRecorder(t, 50, time.Minute)
	now := time.Now()

	r.Observe(uniformFrame(color.RGBA{100, 100, 100, 255}), now)
	r.Observe(uniformFrame(color.RGBA{104, 104, 104, 255}), now.Add(time.Second))
	if r.Triggered() != 0 {
		t.Fatalf("triggered on sub-threshold change: %d", r.Triggered())
	}
}

func TestSnapshotWrittenWithoutDevice(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(Config{Dir: dir, Threshold: 50, Cooldown: time.Minute})
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r.Observe(uniformFrame(color.RGBA{0, 0, 0, 255}), now)
	r.Observe(uniformFrame(color.RGBA{255, 255, 255, 255}), now.Add(time.Second))

	matches, err := filepath.Glob(filepath.Join(dir, "shot-*.jpg"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(matches))
	}
	info, err := os.Stat(matches[0])
	if err != nil || info.Size() == 0 {
		t.Fatalf("snapshot stat: %v size=%d", err, info.Size())
	}
}

func TestValidate(t *testing.T) {
	if _, err := NewRecorder(Config{Threshold: 5}); err == nil {
		t.Fatal("accepted empty dir")
	}
	if _, err := NewRecorder(Config{Dir: t.TempDir(), Threshold: 0}); err == nil {
		t.Fatal("accepted zero threshold")
	}
}
