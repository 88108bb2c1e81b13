package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"
)

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>poolmind</title>
<style>
body { background: #111; color: #ddd; font-family: monospace; margin: 2em; }
img { border: 1px solid #333; max-width: 100%; }
pre { background: #1a1a1a; padding: 1em; }
</style>
</head>
<body>
<h1>poolmind</h1>
<img src="/stream.mjpg" alt="table">
<pre id="state">connecting...</pre>
<script>
const pre = document.getElementById('state');
function connect() {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  ws.onmessage = (e) => { pre.textContent = JSON.stringify(JSON.parse(e.data).state.game, null, 2); };
  ws.onclose = () => setTimeout(connect, 2000);
}
connect();
</script>
</body>
</html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

// handleMJPEG streams annotated frames as multipart JPEG.
func (s *Server) handleMJPEG(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	log.Printf("[Web] MJPEG client connected from %s", r.RemoteAddr)
	defer log.Printf("[Web] MJPEG client disconnected from %s", r.RemoteAddr)

	ticker := time.NewTicker(time.Second / time.Duration(s.cfg.StreamFPS))
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap, ok := s.hub.Latest()
			if !ok || snap.FrameSeq == lastSeq {
				continue
			}
			frame, ok := s.hub.Frame()
			if !ok {
				continue
			}
			lastSeq = snap.FrameSeq

			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
			if _, err := w.Write(frame); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")
			flusher.Flush()
		}
	}
}

// handleFrame serves the latest annotated frame as a single JPEG.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.hub.Frame()
	if !ok {
		http.Error(w, "No frame available", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
	w.Write(frame)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, hasFrame := s.hub.Latest()
	resp := map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"has_frame":      hasFrame,
	}
	if hasFrame {
		resp["frame_seq"] = snap.FrameSeq
		resp["fps"] = snap.FPS
		resp["calibrated"] = snap.Calibration.Established
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMetrics exposes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.hub.Latest()
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# TYPE poolmind_uptime_seconds counter\n")
	fmt.Fprintf(w, "poolmind_uptime_seconds %d\n", int(time.Since(s.started).Seconds()))
	fmt.Fprintf(w, "# TYPE poolmind_ws_clients gauge\n")
	fmt.Fprintf(w, "poolmind_ws_clients %d\n", s.ws.ClientCount())
	fmt.Fprintf(w, "# TYPE poolmind_events_retained gauge\n")
	fmt.Fprintf(w, "poolmind_events_retained %d\n", s.hub.EventCount())
	if !ok {
		return
	}
	fmt.Fprintf(w, "# TYPE poolmind_frames_total counter\n")
	fmt.Fprintf(w, "poolmind_frames_total %d\n", snap.FrameSeq)
	fmt.Fprintf(w, "# TYPE poolmind_fps gauge\n")
	fmt.Fprintf(w, "poolmind_fps %g\n", snap.FPS)
	fmt.Fprintf(w, "# TYPE poolmind_active_tracks gauge\n")
	fmt.Fprintf(w, "poolmind_active_tracks %d\n", len(snap.Tracks))
	fmt.Fprintf(w, "# TYPE poolmind_balls_potted_total counter\n")
	fmt.Fprintf(w, "poolmind_balls_potted_total %d\n", snap.Game.TotalPotted)
	calibrated := 0
	if snap.Calibration.Established {
		calibrated = 1
	}
	fmt.Fprintf(w, "# TYPE poolmind_calibrated gauge\n")
	fmt.Fprintf(w, "poolmind_calibrated %d\n", calibrated)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.hub.Latest()
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "no frame committed yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	n := 0
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v < 0 {
			writeJSONError(w, http.StatusBadRequest, "n must be a non-negative integer")
			return
		}
		n = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": s.hub.RecentEvents(n)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, expiresAt, err := s.authn.Authenticate(creds.Username, creds.Password)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expires_at": expiresAt})
}

func (s *Server) handleGameReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	s.controls.ResetGame()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reset requested"})
}

func (s *Server) handleEndTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	s.controls.EndTurn()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "turn change requested"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Web] Error encoding response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
