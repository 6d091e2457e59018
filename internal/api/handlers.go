package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"fleetroute/internal/jobs"
	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
	"fleetroute/internal/store"
)

// OptimizeHandler accepts a batch optimization request, persists a PENDING
// job, and queues it for the worker pool. Responds 202 with the job record.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
		return
	}
	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid json", err.Error(), r.URL.Path)
		return
	}
	if err := validateOptimizeRequest(req); err != nil {
		writeProblem(w, http.StatusUnprocessableEntity, "validation failed", err.Error(), r.URL.Path)
		return
	}

	c := mergeConstraints(req.Constraints)
	depotLat, depotLng := c.DepotLatitude, c.DepotLongitude
	if depotLat == 0 && depotLng == 0 {
		depotLat, depotLng = s.Cfg.DefaultDepotLat, s.Cfg.DefaultDepotLng
	}
	useTraffic := req.UseTrafficData == nil || *req.UseTrafficData

	job, err := s.Store.CreateJob(r.Context(), model.OptimizationJob{
		JobName:               req.JobName,
		Status:                model.JobPending,
		AlgorithmUsed:         "cheapest_arc_local_search",
		TotalOrders:           len(req.OrderIDs),
		OptimizationCriterion: c.OptimizationCriterion,
		MaxVehicles:           c.MaxVehicles,
		VehicleCapacityKg:     c.VehicleCapacityKg,
		DepotLatitude:         depotLat,
		DepotLongitude:        depotLng,
	})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "create job failed", err.Error(), r.URL.Path)
		return
	}
	metrics.JobTransitions.WithLabelValues(model.JobPending).Inc()

	err = s.Runner.Enqueue(jobs.Task{
		JobID:       job.JobID,
		OrderIDs:    req.OrderIDs,
		Constraints: c,
		UseTraffic:  useTraffic,
	})
	if err != nil {
		_ = s.Store.FailJob(r.Context(), job.JobID, err.Error(), 0)
		writeProblem(w, http.StatusServiceUnavailable, "optimizer busy", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// JobsIndexHandler lists jobs with optional status filter and pagination.
func (s *Server) JobsIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
		return
	}
	q := r.URL.Query()
	skip := queryInt(q.Get("skip"), 0)
	limit := queryInt(q.Get("limit"), 100)
	status := q.Get("status")
	switch status {
	case "", model.JobPending, model.JobInProgress, model.JobCompleted, model.JobFailed:
	default:
		writeProblem(w, http.StatusUnprocessableEntity, "validation failed", "unknown status "+status, r.URL.Path)
		return
	}
	list, err := s.Store.ListJobs(r.Context(), status, skip, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "list jobs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// JobByIDHandler serves GET and DELETE on a single job.
func (s *Server) JobByIDHandler(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/v1/routes/jobs/")
	jobID, err := uuid.Parse(idStr)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid job id", idStr, r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		job, err := s.Store.GetJob(r.Context(), jobID)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "job not found", "", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "get job failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, job)
	case http.MethodDelete:
		err := s.Store.DeleteJob(r.Context(), jobID)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "job not found", "", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "delete job failed", err.Error(), r.URL.Path)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
	}
}

// SummaryHandler aggregates job and route statistics.
func (s *Server) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
		return
	}
	sum, err := s.Store.JobSummary(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "summary failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// RoutesIndexHandler lists all optimized routes, newest first.
func (s *Server) RoutesIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
		return
	}
	routes, err := s.Store.ListRoutes(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "list routes failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, routes)
}

// RouteByOrderHandler looks up the route serving an order.
func (s *Server) RouteByOrderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/v1/routes/by-order/")
	orderID, err := uuid.Parse(idStr)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid order id", idStr, r.URL.Path)
		return
	}
	route, err := s.Store.GetRouteByOrderID(r.Context(), orderID)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "no route for order", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "lookup failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

// RouteSubtreeHandler dispatches /v1/routes/{routeId}/performance.
func (s *Server) RouteSubtreeHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/routes/")
	parts := strings.Split(rest, "/")
	if len(parts) == 2 && parts[1] == "performance" {
		s.performanceHandler(w, r, parts[0])
		return
	}
	writeProblem(w, http.StatusNotFound, "not found", "", r.URL.Path)
}

func (s *Server) performanceHandler(w http.ResponseWriter, r *http.Request, routeIDStr string) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
		return
	}
	routeID, err := uuid.Parse(routeIDStr)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid route id", routeIDStr, r.URL.Path)
		return
	}
	var perf model.RoutePerformance
	if err := json.NewDecoder(r.Body).Decode(&perf); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid json", err.Error(), r.URL.Path)
		return
	}
	perf.RouteID = routeID
	if perf.EfficiencyScore == 0 && perf.ActualDurationMinutes > 0 && perf.PlannedDurationMinutes > 0 {
		perf.EfficiencyScore = float64(perf.PlannedDurationMinutes) / float64(perf.ActualDurationMinutes) * 100
	}
	saved, err := s.Store.RecordRoutePerformance(r.Context(), perf)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "route not found", "", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "record performance failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler exercises the store so load balancers stop routing to an
// instance that lost its database.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Store.JobSummary(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "store unavailable", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func queryInt(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
