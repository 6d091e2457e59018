package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetroute/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// MigrateDir applies every .sql file in dir in lexical order. Dev helper;
// production schemas are managed out of band.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}

func (p *Postgres) CreateJob(ctx context.Context, job model.OptimizationJob) (model.OptimizationJob, error) {
	if job.JobID == uuid.Nil {
		job.JobID = uuid.New()
	}
	if job.Status == "" {
		job.Status = model.JobPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO optimization_jobs
			(job_id, job_name, job_status, algorithm_used, total_orders,
			 optimization_criteria, max_vehicles, vehicle_capacity_kg,
			 depot_latitude, depot_longitude, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		job.JobID, nullIfEmpty(job.JobName), job.Status, job.AlgorithmUsed, job.TotalOrders,
		job.OptimizationCriterion, job.MaxVehicles, job.VehicleCapacityKg,
		job.DepotLatitude, job.DepotLongitude, job.CreatedAt)
	if err != nil {
		return model.OptimizationJob{}, err
	}
	return job, nil
}

const jobColumns = `job_id, COALESCE(job_name,''), job_status, algorithm_used, total_orders,
	total_distance_km, total_estimated_time_minutes, optimization_criteria,
	max_vehicles, vehicle_capacity_kg, depot_latitude, depot_longitude,
	created_at, completed_at, computation_time_seconds, COALESCE(error_message,'')`

func scanJob(row interface{ Scan(...any) error }) (model.OptimizationJob, error) {
	var j model.OptimizationJob
	var dist sql.NullFloat64
	var mins, comp sql.NullInt64
	var completed sql.NullTime
	err := row.Scan(&j.JobID, &j.JobName, &j.Status, &j.AlgorithmUsed, &j.TotalOrders,
		&dist, &mins, &j.OptimizationCriterion,
		&j.MaxVehicles, &j.VehicleCapacityKg, &j.DepotLatitude, &j.DepotLongitude,
		&j.CreatedAt, &completed, &comp, &j.ErrorMessage)
	if err != nil {
		return j, err
	}
	if dist.Valid {
		j.TotalDistanceKm = &dist.Float64
	}
	if mins.Valid {
		v := int(mins.Int64)
		j.TotalEstimatedTimeMinutes = &v
	}
	if completed.Valid {
		j.CompletedAt = &completed.Time
	}
	if comp.Valid {
		v := int(comp.Int64)
		j.ComputationTimeSeconds = &v
	}
	return j, nil
}

func (p *Postgres) GetJob(ctx context.Context, jobID uuid.UUID) (model.OptimizationJob, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM optimization_jobs WHERE job_id=$1`, jobID)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OptimizationJob{}, ErrNotFound
	}
	if err != nil {
		return model.OptimizationJob{}, err
	}
	routes, err := p.routesForJob(ctx, jobID)
	if err != nil {
		return model.OptimizationJob{}, err
	}
	j.Routes = routes
	return j, nil
}

func (p *Postgres) ListJobs(ctx context.Context, status string, skip, limit int) ([]model.OptimizationJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM optimization_jobs
			WHERE job_status=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3`, status, skip, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM optimization_jobs
			ORDER BY created_at DESC OFFSET $1 LIMIT $2`, skip, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.OptimizationJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteJob(ctx context.Context, jobID uuid.UUID) error {
	// routes and stops cascade via foreign keys
	res, err := p.db.ExecContext(ctx, `DELETE FROM optimization_jobs WHERE job_id=$1`, jobID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) JobSummary(ctx context.Context) (model.JobSummary, error) {
	var s model.JobSummary
	var avg sql.NullFloat64
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE job_status='PENDING'),
		       COUNT(*) FILTER (WHERE job_status='COMPLETED'),
		       COUNT(*) FILTER (WHERE job_status='FAILED'),
		       AVG(computation_time_seconds) FILTER (WHERE job_status='COMPLETED')
		FROM optimization_jobs`).
		Scan(&s.TotalJobs, &s.PendingJobs, &s.CompletedJobs, &s.FailedJobs, &avg)
	if err != nil {
		return s, err
	}
	if avg.Valid {
		s.AvgComputationTimeSeconds = &avg.Float64
	}
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM optimized_routes`).Scan(&s.TotalRoutesOptimized); err != nil {
		return s, err
	}
	return s, nil
}

func (p *Postgres) MarkJobInProgress(ctx context.Context, jobID uuid.UUID) error {
	return p.transition(ctx, jobID,
		`UPDATE optimization_jobs SET job_status='IN_PROGRESS' WHERE job_id=$1 AND job_status='PENDING'`)
}

func (p *Postgres) CompleteJob(ctx context.Context, jobID uuid.UUID, totalDistanceKm float64, totalTimeMinutes, computationSeconds int) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE optimization_jobs
		SET job_status='COMPLETED', total_distance_km=$2, total_estimated_time_minutes=$3,
		    completed_at=now(), computation_time_seconds=$4
		WHERE job_id=$1 AND job_status='IN_PROGRESS'`,
		jobID, totalDistanceKm, totalTimeMinutes, computationSeconds)
	if err != nil {
		return err
	}
	return p.transitionResult(ctx, jobID, res)
}

func (p *Postgres) FailJob(ctx context.Context, jobID uuid.UUID, errorMessage string, computationSeconds int) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE optimization_jobs
		SET job_status='FAILED', error_message=$2, completed_at=now(), computation_time_seconds=$3
		WHERE job_id=$1 AND job_status IN ('PENDING','IN_PROGRESS')`,
		jobID, errorMessage, computationSeconds)
	if err != nil {
		return err
	}
	return p.transitionResult(ctx, jobID, res)
}

func (p *Postgres) transition(ctx context.Context, jobID uuid.UUID, query string) error {
	res, err := p.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return err
	}
	return p.transitionResult(ctx, jobID, res)
}

// transitionResult distinguishes a missing job from a guarded transition
// that matched zero rows because the job is already terminal.
func (p *Postgres) transitionResult(ctx context.Context, jobID uuid.UUID, res sql.Result) error {
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}
	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM optimization_jobs WHERE job_id=$1)`, jobID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrTerminalState
}

func (p *Postgres) InsertRoutes(ctx context.Context, jobID uuid.UUID, routes []model.OptimizedRoute) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range routes {
		if r.RouteID == uuid.Nil {
			r.RouteID = uuid.New()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO optimized_routes
				(route_id, job_id, vehicle_id, route_sequence, total_distance_km,
				 estimated_duration_minutes, total_load_kg, route_status)
			VALUES ($1,$2,$3,$4,$5,$6,$7,'PLANNED')`,
			r.RouteID, jobID, r.VehicleID, r.RouteSequence, r.TotalDistanceKm,
			r.EstimatedDurationMinutes, r.TotalLoadKg)
		if err != nil {
			return err
		}
		for _, s := range r.Stops {
			if s.StopID == uuid.Nil {
				s.StopID = uuid.New()
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO route_stops
					(stop_id, route_id, order_id, stop_sequence, stop_type,
					 address_latitude, address_longitude, estimated_service_time_minutes,
					 distance_from_previous_km, travel_time_from_previous_minutes, load_delivery_kg)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
				s.StopID, r.RouteID, s.OrderID, s.StopSequence, s.StopType,
				s.Latitude, s.Longitude, s.EstimatedServiceTimeMinutes,
				s.DistanceFromPreviousKm, s.TravelTimeFromPreviousMinutes, s.LoadDeliveryKg)
			if err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

const routeColumns = `route_id, job_id, vehicle_id, route_sequence, total_distance_km,
	estimated_duration_minutes, total_load_kg, route_status, created_at`

func (p *Postgres) routesForJob(ctx context.Context, jobID uuid.UUID) ([]model.OptimizedRoute, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+routeColumns+` FROM optimized_routes
		WHERE job_id=$1 ORDER BY route_sequence`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return p.collectRoutes(ctx, rows)
}

func (p *Postgres) ListRoutes(ctx context.Context) ([]model.OptimizedRoute, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+routeColumns+` FROM optimized_routes
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return p.collectRoutes(ctx, rows)
}

func (p *Postgres) collectRoutes(ctx context.Context, rows *sql.Rows) ([]model.OptimizedRoute, error) {
	out := []model.OptimizedRoute{}
	for rows.Next() {
		var r model.OptimizedRoute
		if err := rows.Scan(&r.RouteID, &r.JobID, &r.VehicleID, &r.RouteSequence,
			&r.TotalDistanceKm, &r.EstimatedDurationMinutes, &r.TotalLoadKg,
			&r.RouteStatus, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		stops, err := p.stopsForRoute(ctx, out[i].RouteID)
		if err != nil {
			return nil, err
		}
		out[i].Stops = stops
	}
	return out, nil
}

func (p *Postgres) stopsForRoute(ctx context.Context, routeID uuid.UUID) ([]model.RouteStop, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT stop_id, route_id, order_id, stop_sequence, stop_type,
		       address_latitude, address_longitude, estimated_service_time_minutes,
		       distance_from_previous_km, travel_time_from_previous_minutes, load_delivery_kg
		FROM route_stops WHERE route_id=$1 ORDER BY stop_sequence`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.RouteStop{}
	for rows.Next() {
		var s model.RouteStop
		var orderID uuid.NullUUID
		if err := rows.Scan(&s.StopID, &s.RouteID, &orderID, &s.StopSequence, &s.StopType,
			&s.Latitude, &s.Longitude, &s.EstimatedServiceTimeMinutes,
			&s.DistanceFromPreviousKm, &s.TravelTimeFromPreviousMinutes, &s.LoadDeliveryKg); err != nil {
			return nil, err
		}
		if orderID.Valid {
			id := orderID.UUID
			s.OrderID = &id
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) GetRouteByOrderID(ctx context.Context, orderID uuid.UUID) (model.OptimizedRoute, error) {
	var routeID uuid.UUID
	err := p.db.QueryRowContext(ctx,
		`SELECT route_id FROM route_stops WHERE order_id=$1 LIMIT 1`, orderID).Scan(&routeID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.OptimizedRoute{}, ErrNotFound
	}
	if err != nil {
		return model.OptimizedRoute{}, err
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+routeColumns+` FROM optimized_routes WHERE route_id=$1`, routeID)
	var r model.OptimizedRoute
	if err := row.Scan(&r.RouteID, &r.JobID, &r.VehicleID, &r.RouteSequence,
		&r.TotalDistanceKm, &r.EstimatedDurationMinutes, &r.TotalLoadKg,
		&r.RouteStatus, &r.CreatedAt); err != nil {
		return model.OptimizedRoute{}, err
	}
	stops, err := p.stopsForRoute(ctx, routeID)
	if err != nil {
		return model.OptimizedRoute{}, err
	}
	r.Stops = stops
	return r, nil
}

func (p *Postgres) RecordRoutePerformance(ctx context.Context, perf model.RoutePerformance) (model.RoutePerformance, error) {
	if perf.MetricID == uuid.Nil {
		perf.MetricID = uuid.New()
	}
	if perf.CreatedAt.IsZero() {
		perf.CreatedAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO route_performance_metrics
			(metric_id, route_id, planned_distance_km, actual_distance_km,
			 planned_duration_minutes, actual_duration_minutes,
			 on_time_deliveries, late_deliveries, efficiency_score, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		perf.MetricID, perf.RouteID, perf.PlannedDistanceKm, perf.ActualDistanceKm,
		perf.PlannedDurationMinutes, perf.ActualDurationMinutes,
		perf.OnTimeDeliveries, perf.LateDeliveries, perf.EfficiencyScore, perf.CreatedAt)
	if err != nil {
		return model.RoutePerformance{}, err
	}
	return perf, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
