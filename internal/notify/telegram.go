// Package notify pushes notable game events to a Telegram chat.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"poolmind/internal/game"
)

const defaultBaseURL = "https://api.telegram.org"

// Config holds the bot credentials and pacing.
type Config struct {
	BotToken string
	ChatID   string
	// Cooldown suppresses repeat announcements of the same event type.
	Cooldown time.Duration
	// BaseURL overrides the Telegram API host, for tests.
	BaseURL string
}

// Validate checks the credentials.
func (c Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("notify: telegram bot token is required")
	}
	if c.ChatID == "" {
		return fmt.Errorf("notify: telegram chat ID is required")
	}
	return nil
}

type notice struct {
	event game.Event
	frame []byte
}

// Notifier delivers announcements from a background worker so the frame
// loop never waits on the network.
type Notifier struct {
	cfg        Config
	httpClient *http.Client
	queue      chan notice
	done       chan struct{}
	closeOnce  sync.Once

	mu       sync.Mutex
	lastSent map[game.EventType]time.Time
}

// NewNotifier builds a notifier and starts its delivery worker.
func NewNotifier(cfg Config) (*Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	n := &Notifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		queue:      make(chan notice, 16),
		done:       make(chan struct{}),
		lastSent:   make(map[game.EventType]time.Time),
	}
	go n.worker()
	return n, nil
}

// Close stops the delivery worker. Queued announcements are dropped.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() { close(n.done) })
}

// Announce enqueues the notable events from a frame. The frame JPEG is
// attached to game-over announcements. Never blocks.
func (n *Notifier) Announce(events []game.Event, frame []byte) {
	for _, ev := range events {
		if !notable(ev.Type) {
			continue
		}
		if !n.passCooldown(ev.Type) {
			continue
		}
		nt := notice{event: ev}
		if ev.Type == game.EventGameOver {
			nt.frame = frame
		}
		select {
		case n.queue <- nt:
		default:
			log.Printf("[Notify] Queue full, dropping %s announcement", ev.Type)
		}
	}
}

// notable picks the event types worth a chat message. Per-ball events
// would flood the chat.
func notable(t game.EventType) bool {
	switch t {
	case game.EventBreak, game.EventGroupAssigned, game.EventFoul, game.EventGameOver:
		return true
	}
	return false
}

// passCooldown reports whether an event type may be announced now and
// records the attempt. Game over always passes.
func (n *Notifier) passCooldown(t game.EventType) bool {
	if t == game.EventGameOver {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if last, ok := n.lastSent[t]; ok && time.Since(last) < n.cfg.Cooldown {
		return false
	}
	n.lastSent[t] = time.Now()
	return true
}

func (n *Notifier) worker() {
	for {
		select {
		case <-n.done:
			return
		case nt := <-n.queue:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			var err error
			if len(nt.frame) > 0 {
				err = n.sendPhoto(ctx, nt.frame, caption(nt.event))
			} else {
				err = n.sendMessage(ctx, caption(nt.event))
			}
			cancel()
			if err != nil {
				log.Printf("[Notify] Error announcing %s: %v", nt.event.Type, err)
			}
		}
	}
}

// caption formats an event as a short HTML message.
func caption(ev game.Event) string {
	stamp := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case game.EventGameOver:
		return fmt.Sprintf("🏆 <b>Game over</b>\nPlayer %d wins\n%s\n🕐 %s", ev.Player, ev.Detail, stamp)
	case game.EventFoul:
		return fmt.Sprintf("⚠️ <b>Foul</b> by player %d\n%s\n🕐 %s", ev.Player, ev.Detail, stamp)
	case game.EventGroupAssigned:
		return fmt.Sprintf("🎱 <b>Groups assigned</b>\n%s\n🕐 %s", ev.Detail, stamp)
	case game.EventBreak:
		return fmt.Sprintf("💥 <b>Break</b> by player %d\n%s\n🕐 %s", ev.Player, ev.Detail, stamp)
	default:
		return fmt.Sprintf("<b>%s</b>\n%s\n🕐 %s", ev.Type, ev.Detail, stamp)
	}
}

func (n *Notifier) sendMessage(ctx context.Context, text string) error {
	payload := map[string]interface{}{
		"chat_id":    n.cfg.ChatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.cfg.BaseURL, n.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	return handleResponse(resp)
}

func (n *Notifier) sendPhoto(ctx context.Context, photo []byte, caption string) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("chat_id", n.cfg.ChatID); err != nil {
		return fmt.Errorf("failed to write chat_id field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("failed to write caption field: %w", err)
		}
		if err := writer.WriteField("parse_mode", "HTML"); err != nil {
			return fmt.Errorf("failed to write parse_mode field: %w", err)
		}
	}
	part, err := writer.CreateFormFile("photo", "table_frame.jpg")
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(photo); err != nil {
		return fmt.Errorf("failed to write photo data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendPhoto", n.cfg.BaseURL, n.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	defer resp.Body.Close()

	return handleResponse(resp)
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func handleResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	var r apiResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if !r.OK {
		return fmt.Errorf("telegram API error %d: %s", r.ErrorCode, r.Description)
	}
	return nil
}
