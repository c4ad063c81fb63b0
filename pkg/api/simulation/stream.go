package simulation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const maxPace = 10 * time.Second

// HandleStreamSimulation replays a stored transcript as server-sent events,
// one message per data event, then a completed status event. ?pace=ms
// spaces the messages out for front ends that animate the courtroom.
func (h *Handler) HandleStreamSimulation(w http.ResponseWriter, r *http.Request) {
	cors(w, "GET, OPTIONS")
	if !h.readable(w, r) {
		return
	}

	var pace time.Duration
	if raw := r.URL.Query().Get("pace"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			writeError(w, http.StatusBadRequest, "pace must be a non-negative number of milliseconds")
			return
		}
		pace = min(time.Duration(ms)*time.Millisecond, maxPace)
	}

	doc, err := h.deps.Store.GetSimulation(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Content-Type", "text/event-stream")

	notify := r.Context().Done()
	for i, msg := range doc.ChatHistory {
		if i > 0 && pace > 0 {
			timer := time.NewTimer(pace)
			select {
			case <-timer.C:
			case <-notify:
				timer.Stop()
				return
			}
		}
		if err := sendSSE(w, flusher, msg); err != nil {
			h.logger.Warn("failed to stream message", "simulation", doc.ID, "error", err)
			return
		}
	}
	sendSSEEvent(w, flusher, "status", string(doc.Status))
}

func sendSSE(w http.ResponseWriter, flusher http.Flusher, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()
	return nil
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
