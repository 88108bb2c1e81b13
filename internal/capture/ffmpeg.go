package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"io"
	"log"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"poolmind/internal/vision"
)

// ErrSourceClosed reports that the capture process has ended.
var ErrSourceClosed = errors.New("capture: source closed")

// FFmpegConfig describes a camera device. Device may be an rtsp:// or
// http(s):// URL or a local V4L2 path; plain HTTP still-image endpoints
// are polled instead of piped through ffmpeg.
type FFmpegConfig struct {
	Device string
	FPS    int
	Width  int
	Height int
}

// FFmpegSource captures JPEG frames from a camera by running ffmpeg in
// image2pipe mode and demuxing its stdout.
type FFmpegSource struct {
	cfg    FFmpegConfig
	cmd    *exec.Cmd
	frames chan []byte
	stopCh chan struct{}
	once   sync.Once
	seq    atomic.Uint64

	statsMu sync.Mutex
	stats   Stats
}

var _ Source = (*FFmpegSource)(nil)

// NewFFmpegSource starts the capture loop immediately.
func NewFFmpegSource(cfg FFmpegConfig) (*FFmpegSource, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("capture: device is required")
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 15
	}
	s := &FFmpegSource{
		cfg:    cfg,
		frames: make(chan []byte, 4),
		stopCh: make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Next returns the next decoded frame.
func (s *FFmpegSource) Next(ctx context.Context) (vision.Frame, error) {
	for {
		select {
		case <-ctx.Done():
			return vision.Frame{}, ctx.Err()
		case data, ok := <-s.frames:
			if !ok {
				return vision.Frame{}, ErrSourceClosed
			}
			img, err := jpeg.Decode(bytes.NewReader(data))
			if err != nil {
				log.Printf("[Capture] Dropping undecodable frame: %v", err)
				continue
			}
			rgba, okRGBA := img.(*image.RGBA)
			if !okRGBA {
				rgba = image.NewRGBA(img.Bounds())
				draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
			}
			return vision.Frame{Image: rgba, Seq: s.seq.Add(1), Timestamp: time.Now()}, nil
		}
	}
}

// Close stops the capture process.
func (s *FFmpegSource) Close() error {
	s.once.Do(func() {
		close(s.stopCh)
		if s.cmd != nil && s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
	})
	return nil
}

// Stats returns a copy of the capture counters.
func (s *FFmpegSource) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *FFmpegSource) run() {
	defer close(s.frames)

	if s.isHTTPImageEndpoint() {
		s.pollHTTP()
		return
	}
	s.pipeFFmpeg()
}

func (s *FFmpegSource) isHTTPImageEndpoint() bool {
	d := s.cfg.Device
	return (strings.HasPrefix(d, "http://") || strings.HasPrefix(d, "https://")) &&
		(strings.Contains(d, ".jpg") || strings.Contains(d, ".jpeg") || strings.Contains(d, "image"))
}

func (s *FFmpegSource) pollHTTP() {
	client := &http.Client{Timeout: 10 * time.Second}
	interval := time.Second / time.Duration(s.cfg.FPS)
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			resp, err := client.Get(s.cfg.Device)
			if err != nil {
				log.Printf("[Capture] Error fetching frame from %s: %v", s.cfg.Device, err)
				continue
			}
			data, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				log.Printf("[Capture] Error reading frame body: %v", err)
				continue
			}
			s.deliver(data)
		}
	}
}

func (s *FFmpegSource) pipeFFmpeg() {
	args := s.ffmpegArgs()
	s.cmd = exec.Command("ffmpeg", args...)

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		log.Printf("[Capture] Error creating stdout pipe: %v", err)
		return
	}
	stderr, err := s.cmd.StderrPipe()
	if err != nil {
		log.Printf("[Capture] Error creating stderr pipe: %v", err)
		return
	}
	if err := s.cmd.Start(); err != nil {
		log.Printf("[Capture] Error starting ffmpeg: %v", err)
		return
	}

	// ffmpeg chatters on stderr; drain it so the process never blocks.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
		}
	}()

	buffer := make([]byte, 0, 1024*1024)
	chunk := make([]byte, 8192)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		n, err := stdout.Read(chunk)
		if err != nil {
			if err != io.EOF {
				log.Printf("[Capture] Error reading ffmpeg output: %v", err)
			}
			return
		}
		buffer = append(buffer, chunk[:n]...)
		for {
			frame := extractJPEGFrame(&buffer)
			if frame == nil {
				break
			}
			s.deliver(frame)
		}
	}
}

func (s *FFmpegSource) ffmpegArgs() []string {
	d := s.cfg.Device
	switch {
	case strings.HasPrefix(d, "rtsp://"):
		return []string{
			"-rtsp_transport", "tcp",
			"-i", d,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", s.cfg.FPS),
			"-q:v", "5",
			"-",
		}
	case strings.HasPrefix(d, "http://"), strings.HasPrefix(d, "https://"):
		return []string{
			"-i", d,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-r", fmt.Sprintf("%d", s.cfg.FPS),
			"-q:v", "5",
			"-",
		}
	default: // V4L2 device
		return []string{
			"-f", "v4l2",
			"-video_size", fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
			"-framerate", fmt.Sprintf("%d", s.cfg.FPS),
			"-i", d,
			"-f", "image2pipe",
			"-vcodec", "mjpeg",
			"-q:v", "5",
			"-",
		}
	}
}

// deliver hands a raw JPEG to the consumer, dropping it when the
// consumer is behind.
func (s *FFmpegSource) deliver(data []byte) {
	s.statsMu.Lock()
	s.stats.FramesCaptured++
	s.stats.LastFrameUnix = time.Now().Unix()
	s.statsMu.Unlock()

	select {
	case s.frames <- data:
	case <-s.stopCh:
	default:
		s.statsMu.Lock()
		s.stats.FramesDropped++
		s.statsMu.Unlock()
	}
}

// extractJPEGFrame cuts one complete JPEG (FFD8..FFD9) out of buffer.
func extractJPEGFrame(buffer *[]byte) []byte {
	if len(*buffer) < 4 {
		return nil
	}

	startIdx := -1
	for i := 0; i < len(*buffer)-1; i++ {
		if (*buffer)[i] == 0xFF && (*buffer)[i+1] == 0xD8 {
			startIdx = i
			break
		}
	}
	if startIdx == -1 {
		return nil
	}

	endIdx := -1
	for i := startIdx + 2; i < len(*buffer)-1; i++ {
		if (*buffer)[i] == 0xFF && (*buffer)[i+1] == 0xD9 {
			endIdx = i + 2
			break
		}
	}
	if endIdx == -1 {
		return nil
	}

	frame := make([]byte, endIdx-startIdx)
	copy(frame, (*buffer)[startIdx:endIdx])
	*buffer = (*buffer)[endIdx:]
	return frame
}
