package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"fleetroute/internal/model"
)

func seedJob(t *testing.T, m *Memory) model.OptimizationJob {
	t.Helper()
	job, err := m.CreateJob(context.Background(), model.OptimizationJob{
		JobName:               "test",
		TotalOrders:           3,
		OptimizationCriterion: model.MinimizeDistance,
		MaxVehicles:           2,
		VehicleCapacityKg:     500,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func TestJobLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	job := seedJob(t, m)
	if job.Status != model.JobPending {
		t.Fatalf("new job status: %s", job.Status)
	}

	if err := m.MarkJobInProgress(ctx, job.JobID); err != nil {
		t.Fatalf("mark in progress: %v", err)
	}
	// second start is rejected
	if err := m.MarkJobInProgress(ctx, job.JobID); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("double start: %v", err)
	}

	if err := m.CompleteJob(ctx, job.JobID, 12.5, 90, 3); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := m.GetJob(ctx, job.JobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.JobCompleted || got.TotalDistanceKm == nil || *got.TotalDistanceKm != 12.5 {
		t.Fatalf("completed job: %+v", got)
	}
	if got.CompletedAt == nil || got.ComputationTimeSeconds == nil {
		t.Fatalf("completion fields missing: %+v", got)
	}

	// terminal states never transition again
	if err := m.FailJob(ctx, job.JobID, "late", 1); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("fail after complete: %v", err)
	}
	if err := m.CompleteJob(ctx, job.JobID, 1, 1, 1); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("double complete: %v", err)
	}
}

func TestFailFromPending(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	job := seedJob(t, m)
	if err := m.FailJob(ctx, job.JobID, "queue rejected", 0); err != nil {
		t.Fatalf("fail pending: %v", err)
	}
	got, _ := m.GetJob(ctx, job.JobID)
	if got.Status != model.JobFailed || got.ErrorMessage != "queue rejected" {
		t.Fatalf("failed job: %+v", got)
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	job := seedJob(t, m)
	if err := m.CompleteJob(ctx, job.JobID, 1, 1, 1); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("complete from pending: %v", err)
	}
}

func TestTransitionsOnMissingJob(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id := uuid.New()
	if err := m.MarkJobInProgress(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mark missing: %v", err)
	}
	if _, err := m.GetJob(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get missing: %v", err)
	}
	if err := m.DeleteJob(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestListJobsFilterAndPagination(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var last model.OptimizationJob
	for i := 0; i < 5; i++ {
		last = seedJob(t, m)
		time.Sleep(time.Millisecond)
	}
	_ = m.MarkJobInProgress(ctx, last.JobID)

	pending, err := m.ListJobs(ctx, model.JobPending, 0, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 4 {
		t.Fatalf("pending filter: got %d", len(pending))
	}

	all, _ := m.ListJobs(ctx, "", 0, 100)
	if len(all) != 5 {
		t.Fatalf("all: got %d", len(all))
	}
	// newest first
	if all[0].JobID != last.JobID {
		t.Fatalf("order: first is %s, want %s", all[0].JobID, last.JobID)
	}

	page, _ := m.ListJobs(ctx, "", 3, 100)
	if len(page) != 2 {
		t.Fatalf("skip: got %d", len(page))
	}
	page, _ = m.ListJobs(ctx, "", 0, 2)
	if len(page) != 2 {
		t.Fatalf("limit: got %d", len(page))
	}
	page, _ = m.ListJobs(ctx, "", 99, 100)
	if len(page) != 0 {
		t.Fatalf("skip past end: got %d", len(page))
	}
}

func TestRoutesAndLookupByOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	job := seedJob(t, m)
	orderID := uuid.New()
	routes := []model.OptimizedRoute{{
		VehicleID:     0,
		RouteSequence: 1,
		Stops: []model.RouteStop{
			{StopSequence: 0, StopType: model.StopDepot},
			{StopSequence: 1, StopType: model.StopDelivery, OrderID: &orderID},
		},
	}}
	if err := m.InsertRoutes(ctx, job.JobID, routes); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := m.GetRouteByOrderID(ctx, orderID)
	if err != nil {
		t.Fatalf("by order: %v", err)
	}
	if got.JobID != job.JobID {
		t.Fatalf("route job id: %s", got.JobID)
	}
	if got.RouteID == uuid.Nil || got.Stops[1].RouteID != got.RouteID {
		t.Fatalf("ids not assigned: %+v", got)
	}

	if _, err := m.GetRouteByOrderID(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown order: %v", err)
	}

	list, _ := m.ListRoutes(ctx)
	if len(list) != 1 {
		t.Fatalf("list routes: got %d", len(list))
	}

	// job fetch includes its routes
	j, _ := m.GetJob(ctx, job.JobID)
	if len(j.Routes) != 1 {
		t.Fatalf("job routes: got %d", len(j.Routes))
	}

	// delete cascades
	if err := m.DeleteJob(ctx, job.JobID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.GetRouteByOrderID(ctx, orderID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("route survived delete: %v", err)
	}
}

func TestJobSummary(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a := seedJob(t, m)
	b := seedJob(t, m)
	seedJob(t, m)
	_ = m.MarkJobInProgress(ctx, a.JobID)
	_ = m.CompleteJob(ctx, a.JobID, 10, 60, 4)
	_ = m.FailJob(ctx, b.JobID, "x", 1)

	sum, err := m.JobSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalJobs != 3 || sum.CompletedJobs != 1 || sum.FailedJobs != 1 || sum.PendingJobs != 1 {
		t.Fatalf("summary counts: %+v", sum)
	}
	if sum.AvgComputationTimeSeconds == nil || *sum.AvgComputationTimeSeconds != 4 {
		t.Fatalf("avg computation: %+v", sum.AvgComputationTimeSeconds)
	}
}

func TestRecordRoutePerformance(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	job := seedJob(t, m)
	_ = m.InsertRoutes(ctx, job.JobID, []model.OptimizedRoute{{VehicleID: 0}})
	routes, _ := m.ListRoutes(ctx)

	perf, err := m.RecordRoutePerformance(ctx, model.RoutePerformance{
		RouteID:                routes[0].RouteID,
		PlannedDurationMinutes: 60,
		ActualDurationMinutes:  75,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if perf.MetricID == uuid.Nil {
		t.Fatal("metric id not assigned")
	}

	_, err = m.RecordRoutePerformance(ctx, model.RoutePerformance{RouteID: uuid.New()})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown route: %v", err)
	}
}
