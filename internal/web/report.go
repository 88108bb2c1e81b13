package web

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"poolmind/internal/game"
)

// reportedTypes fixes the chart's category order.
var reportedTypes = []game.EventType{
	game.EventPot,
	game.EventLegalPot,
	game.EventFoul,
	game.EventVanish,
	game.EventReturn,
	game.EventTurnChange,
	game.EventGroupAssigned,
	game.EventGameOver,
}

// handleReport renders an event breakdown chart for a session. Without a
// session query parameter the most recent session is used.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessions, err := s.store.ListSessions()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list sessions: %v", err))
			return
		}
		if len(sessions) == 0 {
			writeJSONError(w, http.StatusNotFound, "no sessions recorded")
			return
		}
		sessionID = sessions[0].ID
	}

	counts, err := s.store.CountEventsByType(sessionID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to count events: %v", err))
		return
	}

	labels := make([]string, 0, len(reportedTypes))
	data := make([]opts.BarData, 0, len(reportedTypes))
	for _, typ := range reportedTypes {
		labels = append(labels, string(typ))
		data = append(data, opts.BarData{Value: counts[typ]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "poolmind session report", Theme: "dark", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Game events", Subtitle: fmt.Sprintf("session=%s", sessionID)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("events", data)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleReportSessions lists recorded sessions as JSON.
func (s *Server) handleReportSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list sessions: %v", err))
		return
	}

	type sessionJSON struct {
		ID          string `json:"id"`
		StartedAt   string `json:"started_at"`
		EndedAt     string `json:"ended_at,omitempty"`
		Winner      int    `json:"winner"`
		TotalPotted int    `json:"total_potted"`
		EventCount  int    `json:"event_count"`
	}

	out := make([]sessionJSON, 0, len(sessions))
	for _, sum := range sessions {
		sj := sessionJSON{
			ID:          sum.ID,
			StartedAt:   sum.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			Winner:      sum.Winner,
			TotalPotted: sum.TotalPotted,
			EventCount:  sum.EventCount,
		}
		if sum.EndedAt.Valid {
			sj.EndedAt = sum.EndedAt.Time.Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, sj)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}
