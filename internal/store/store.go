package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"fleetroute/internal/model"
)

// Store is the persistence interface used by the API server and the job
// runner. Job status transitions are guarded: a job reaches IN_PROGRESS once
// and exactly one terminal state after that.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, job model.OptimizationJob) (model.OptimizationJob, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (model.OptimizationJob, error)
	ListJobs(ctx context.Context, status string, skip, limit int) ([]model.OptimizationJob, error)
	DeleteJob(ctx context.Context, jobID uuid.UUID) error
	JobSummary(ctx context.Context) (model.JobSummary, error)

	// Status transitions
	MarkJobInProgress(ctx context.Context, jobID uuid.UUID) error
	CompleteJob(ctx context.Context, jobID uuid.UUID, totalDistanceKm float64, totalTimeMinutes, computationSeconds int) error
	FailJob(ctx context.Context, jobID uuid.UUID, errorMessage string, computationSeconds int) error

	// Routes & stops (written once per completed job)
	InsertRoutes(ctx context.Context, jobID uuid.UUID, routes []model.OptimizedRoute) error
	ListRoutes(ctx context.Context) ([]model.OptimizedRoute, error)
	GetRouteByOrderID(ctx context.Context, orderID uuid.UUID) (model.OptimizedRoute, error)

	// Performance metrics
	RecordRoutePerformance(ctx context.Context, perf model.RoutePerformance) (model.RoutePerformance, error)
}

var ErrNotFound = errors.New("not found")

// ErrTerminalState is returned when a transition targets a job already in a
// terminal state.
var ErrTerminalState = errors.New("job already in terminal state")
