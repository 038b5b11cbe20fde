package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pavelanni/timedexam/internal/exam"
	"github.com/pavelanni/timedexam/internal/model"
)

const wsWriteWait = 10 * time.Second

// timerMessage is one countdown update for the browser.
type timerMessage struct {
	State       model.SessionState `json:"state"`
	HMS         string             `json:"hms"`
	RemainingMs int64              `json:"remaining_ms"`
	Progress    float64            `json:"progress"`
	Warning     bool               `json:"warning"`
}

func timerPayload(ctl *exam.Controller) timerMessage {
	cd := ctl.Tick()
	return timerMessage{
		State:       ctl.State(),
		HMS:         cd.HMS(),
		RemainingMs: cd.Remaining.Milliseconds(),
		Progress:    cd.Progress,
		Warning:     cd.Warning,
	}
}

func (h *Handler) handleTimer(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(timerPayload(controllerFrom(r))); err != nil {
		slog.Error("encode timer", "error", err)
	}
}

// handleTimerFeed pushes a countdown update every tick until the session leaves
// the in-progress state or the client disconnects.
func (h *Handler) handleTimerFeed(w http.ResponseWriter, r *http.Request) {
	ctl := controllerFrom(r)
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	// reading is required to notice close frames
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func() bool {
		msg := timerPayload(ctl)
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("timer feed write failed", "session", ctl.ID(), "error", err)
			}
			return false
		}
		return msg.State == model.StateInProgress
	}

	if !send() {
		return
	}
	done := ctl.Done()
	ticker := time.NewTicker(exam.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			send()
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
