package api

import (
	"encoding/json"
	"net/http"

	"fleetroute/internal/model"
)

// CoordinateOptimizeHandler runs the synchronous optimization path over
// caller-supplied coordinates. No job record is created; the result is
// computed and returned in one round trip.
func (s *Server) CoordinateOptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
		return
	}
	var req model.CoordinateOptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid json", err.Error(), r.URL.Path)
		return
	}
	if err := validateCoordinateRequest(req); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "validation failed", err.Error(), r.URL.Path)
		return
	}
	resp, err := s.CoordOpt.Optimize(r.Context(), req)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "optimization failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
