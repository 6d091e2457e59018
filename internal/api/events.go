package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobEventsHandler dispatches /v1/jobs/{id}/events/stream (SSE) and
// /v1/jobs/{id}/events/ws (WebSocket).
func (s *Server) JobEventsHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "events" {
		writeProblem(w, http.StatusNotFound, "not found", "", r.URL.Path)
		return
	}
	jobID, err := uuid.Parse(parts[0])
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid job id", parts[0], r.URL.Path)
		return
	}
	switch parts[2] {
	case "stream":
		s.jobEventsSSE(w, r, jobID.String())
	case "ws":
		s.jobEventsWS(w, r, jobID.String())
	default:
		writeProblem(w, http.StatusNotFound, "not found", "", r.URL.Path)
	}
}

// jobEventsSSE streams job events as server-sent events until the client
// disconnects. A periodic comment line keeps idle proxies from timing out.
func (s *Server) jobEventsSSE(w http.ResponseWriter, r *http.Request, jobID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.Broker.Subscribe(jobID)
	defer s.Broker.Unsubscribe(jobID, ch)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		}
	}
}
