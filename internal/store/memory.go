package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]model.OptimizationJob
	routes map[uuid.UUID][]model.OptimizedRoute // jobID -> routes (stops nested)
	perf   map[uuid.UUID][]model.RoutePerformance
}

func NewMemory() *Memory {
	return &Memory{
		jobs:   map[uuid.UUID]model.OptimizationJob{},
		routes: map[uuid.UUID][]model.OptimizedRoute{},
		perf:   map[uuid.UUID][]model.RoutePerformance{},
	}
}

func (m *Memory) CreateJob(ctx context.Context, job model.OptimizationJob) (model.OptimizationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.JobID == uuid.Nil {
		job.JobID = uuid.New()
	}
	if job.Status == "" {
		job.Status = model.JobPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	m.jobs[job.JobID] = job
	return job, nil
}

func (m *Memory) GetJob(ctx context.Context, jobID uuid.UUID) (model.OptimizationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return model.OptimizationJob{}, ErrNotFound
	}
	job.Routes = append([]model.OptimizedRoute(nil), m.routes[jobID]...)
	return job, nil
}

func (m *Memory) ListJobs(ctx context.Context, status string, skip, limit int) ([]model.OptimizationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]model.OptimizationJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		if status == "" || j.Status == status {
			all = append(all, j)
		}
	}
	// newest first, matching the postgres ORDER BY created_at DESC
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if skip >= len(all) {
		return []model.OptimizationJob{}, nil
	}
	all = all[skip:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *Memory) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[jobID]; !ok {
		return ErrNotFound
	}
	for _, r := range m.routes[jobID] {
		delete(m.perf, r.RouteID)
	}
	delete(m.jobs, jobID)
	delete(m.routes, jobID)
	return nil
}

func (m *Memory) JobSummary(ctx context.Context) (model.JobSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := model.JobSummary{}
	var compTotal, compCount float64
	for _, j := range m.jobs {
		out.TotalJobs++
		switch j.Status {
		case model.JobPending:
			out.PendingJobs++
		case model.JobCompleted:
			out.CompletedJobs++
			if j.ComputationTimeSeconds != nil {
				compTotal += float64(*j.ComputationTimeSeconds)
				compCount++
			}
		case model.JobFailed:
			out.FailedJobs++
		}
	}
	if compCount > 0 {
		avg := compTotal / compCount
		out.AvgComputationTimeSeconds = &avg
	}
	for _, rs := range m.routes {
		out.TotalRoutesOptimized += len(rs)
	}
	return out, nil
}

func (m *Memory) MarkJobInProgress(ctx context.Context, jobID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != model.JobPending {
		return ErrTerminalState
	}
	job.Status = model.JobInProgress
	m.jobs[jobID] = job
	return nil
}

func (m *Memory) CompleteJob(ctx context.Context, jobID uuid.UUID, totalDistanceKm float64, totalTimeMinutes, computationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != model.JobInProgress {
		return ErrTerminalState
	}
	now := time.Now().UTC()
	job.Status = model.JobCompleted
	job.TotalDistanceKm = &totalDistanceKm
	job.TotalEstimatedTimeMinutes = &totalTimeMinutes
	job.CompletedAt = &now
	job.ComputationTimeSeconds = &computationSeconds
	m.jobs[jobID] = job
	return nil
}

func (m *Memory) FailJob(ctx context.Context, jobID uuid.UUID, errorMessage string, computationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != model.JobInProgress && job.Status != model.JobPending {
		return ErrTerminalState
	}
	now := time.Now().UTC()
	job.Status = model.JobFailed
	job.ErrorMessage = errorMessage
	job.CompletedAt = &now
	job.ComputationTimeSeconds = &computationSeconds
	m.jobs[jobID] = job
	return nil
}

func (m *Memory) InsertRoutes(ctx context.Context, jobID uuid.UUID, routes []model.OptimizedRoute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[jobID]; !ok {
		return ErrNotFound
	}
	stored := make([]model.OptimizedRoute, 0, len(routes))
	for _, r := range routes {
		if r.RouteID == uuid.Nil {
			r.RouteID = uuid.New()
		}
		r.JobID = jobID
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		for i := range r.Stops {
			if r.Stops[i].StopID == uuid.Nil {
				r.Stops[i].StopID = uuid.New()
			}
			r.Stops[i].RouteID = r.RouteID
		}
		stored = append(stored, r)
	}
	m.routes[jobID] = stored
	return nil
}

func (m *Memory) ListRoutes(ctx context.Context) ([]model.OptimizedRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.OptimizedRoute{}
	for _, rs := range m.routes {
		out = append(out, rs...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) GetRouteByOrderID(ctx context.Context, orderID uuid.UUID) (model.OptimizedRoute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rs := range m.routes {
		for _, r := range rs {
			for _, s := range r.Stops {
				if s.OrderID != nil && *s.OrderID == orderID {
					return r, nil
				}
			}
		}
	}
	return model.OptimizedRoute{}, ErrNotFound
}

func (m *Memory) RecordRoutePerformance(ctx context.Context, perf model.RoutePerformance) (model.RoutePerformance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	for _, rs := range m.routes {
		for _, r := range rs {
			if r.RouteID == perf.RouteID {
				found = true
			}
		}
	}
	if !found {
		return model.RoutePerformance{}, ErrNotFound
	}
	if perf.MetricID == uuid.Nil {
		perf.MetricID = uuid.New()
	}
	if perf.CreatedAt.IsZero() {
		perf.CreatedAt = time.Now().UTC()
	}
	m.perf[perf.RouteID] = append(m.perf[perf.RouteID], perf)
	return perf, nil
}
