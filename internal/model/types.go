package model

import (
	"time"

	"github.com/google/uuid"
)

// Job lifecycle states. A job enters exactly one terminal state and never
// leaves it.
const (
	JobPending    = "PENDING"
	JobInProgress = "IN_PROGRESS"
	JobCompleted  = "COMPLETED"
	JobFailed     = "FAILED"
)

// Optimization criteria accepted at the request boundary.
const (
	MinimizeDistance = "MINIMIZE_DISTANCE"
	MinimizeTime     = "MINIMIZE_TIME"
	MinimizeCost     = "MINIMIZE_COST"
)

// Stop types.
const (
	StopDepot    = "DEPOT"
	StopPickup   = "PICKUP"
	StopDelivery = "DELIVERY"
)

// Location is one node handed to the matrix builder and solver.
// Index 0 in any location slice is the depot (zero service time, zero load).
type Location struct {
	OrderID            *uuid.UUID `json:"orderId,omitempty"`
	Latitude           float64    `json:"latitude"`
	Longitude          float64    `json:"longitude"`
	ServiceTimeMinutes int        `json:"serviceTimeMinutes"`
	LoadKg             float64    `json:"loadKg"`
}

// Constraints are the business constraints for one optimization run.
type Constraints struct {
	MaxStopsPerRoute        int     `json:"maxStopsPerRoute"`
	MaxRouteDurationMinutes int     `json:"maxRouteDurationMinutes"`
	MaxVehicles             int     `json:"maxVehicles"`
	VehicleCapacityKg       float64 `json:"vehicleCapacityKg"`
	OptimizationCriterion   string  `json:"optimizationCriterion"`
	DepotLatitude           float64 `json:"depotLatitude,omitempty"`
	DepotLongitude          float64 `json:"depotLongitude,omitempty"`
	WorkingHoursStart       string  `json:"workingHoursStart,omitempty"`
	WorkingHoursEnd         string  `json:"workingHoursEnd,omitempty"`
}

// DefaultConstraints mirrors the documented request defaults.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxStopsPerRoute:        10,
		MaxRouteDurationMinutes: 480,
		MaxVehicles:             1,
		VehicleCapacityKg:       500,
		OptimizationCriterion:   MinimizeDistance,
		WorkingHoursStart:       "08:00",
		WorkingHoursEnd:         "18:00",
	}
}

// OptimizeRequest starts an asynchronous batch job.
type OptimizeRequest struct {
	OrderIDs       []uuid.UUID  `json:"orderIds"`
	Constraints    *Constraints `json:"constraints,omitempty"`
	JobName        string       `json:"jobName,omitempty"`
	UseTrafficData *bool        `json:"useTrafficData,omitempty"`
}

// OptimizationJob is the persisted job record owned by the orchestrator.
type OptimizationJob struct {
	JobID                     uuid.UUID        `json:"jobId"`
	JobName                   string           `json:"jobName,omitempty"`
	Status                    string           `json:"jobStatus"`
	AlgorithmUsed             string           `json:"algorithmUsed"`
	TotalOrders               int              `json:"totalOrders"`
	TotalDistanceKm           *float64         `json:"totalDistanceKm,omitempty"`
	TotalEstimatedTimeMinutes *int             `json:"totalEstimatedTimeMinutes,omitempty"`
	OptimizationCriterion     string           `json:"optimizationCriterion"`
	MaxVehicles               int              `json:"maxVehicles"`
	VehicleCapacityKg         float64          `json:"vehicleCapacityKg"`
	DepotLatitude             float64          `json:"depotLatitude"`
	DepotLongitude            float64          `json:"depotLongitude"`
	CreatedAt                 time.Time        `json:"createdAt"`
	CompletedAt               *time.Time       `json:"completedAt,omitempty"`
	ComputationTimeSeconds    *int             `json:"computationTimeSeconds,omitempty"`
	ErrorMessage              string           `json:"errorMessage,omitempty"`
	Routes                    []OptimizedRoute `json:"routes,omitempty"`
}

// OptimizedRoute is one vehicle's ordered stop sequence within a job.
type OptimizedRoute struct {
	RouteID                  uuid.UUID   `json:"routeId"`
	JobID                    uuid.UUID   `json:"jobId"`
	VehicleID                int         `json:"vehicleId"`
	RouteSequence            int         `json:"routeSequence"`
	TotalDistanceKm          float64     `json:"totalDistanceKm"`
	EstimatedDurationMinutes int         `json:"estimatedDurationMinutes"`
	TotalLoadKg              float64     `json:"totalLoadKg"`
	RouteStatus              string      `json:"routeStatus"`
	CreatedAt                time.Time   `json:"createdAt"`
	Stops                    []RouteStop `json:"stops,omitempty"`
}

// RouteStop is a single visit in an optimized route.
type RouteStop struct {
	StopID                        uuid.UUID  `json:"stopId"`
	RouteID                       uuid.UUID  `json:"routeId"`
	OrderID                       *uuid.UUID `json:"orderId,omitempty"`
	StopSequence                  int        `json:"stopSequence"`
	StopType                      string     `json:"stopType"`
	Latitude                      float64    `json:"latitude"`
	Longitude                     float64    `json:"longitude"`
	EstimatedServiceTimeMinutes   int        `json:"estimatedServiceTimeMinutes"`
	DistanceFromPreviousKm        float64    `json:"distanceFromPreviousKm"`
	TravelTimeFromPreviousMinutes int        `json:"travelTimeFromPreviousMinutes"`
	LoadDeliveryKg                float64    `json:"loadDeliveryKg"`
}

// JobSummary aggregates job statistics for the summary endpoint.
type JobSummary struct {
	TotalJobs                 int      `json:"totalJobs"`
	PendingJobs               int      `json:"pendingJobs"`
	CompletedJobs             int      `json:"completedJobs"`
	FailedJobs                int      `json:"failedJobs"`
	AvgComputationTimeSeconds *float64 `json:"avgComputationTimeSeconds,omitempty"`
	TotalRoutesOptimized      int      `json:"totalRoutesOptimized"`
}

// RoutePerformance records planned vs actual outcomes for a completed route.
// Written only through the performance endpoint, never by the solver pipeline.
type RoutePerformance struct {
	MetricID               uuid.UUID `json:"metricId"`
	RouteID                uuid.UUID `json:"routeId"`
	PlannedDistanceKm      float64   `json:"plannedDistanceKm"`
	ActualDistanceKm       float64   `json:"actualDistanceKm"`
	PlannedDurationMinutes int       `json:"plannedDurationMinutes"`
	ActualDurationMinutes  int       `json:"actualDurationMinutes"`
	OnTimeDeliveries       int       `json:"onTimeDeliveries"`
	LateDeliveries         int       `json:"lateDeliveries"`
	EfficiencyScore        float64   `json:"efficiencyScore"`
	CreatedAt              time.Time `json:"createdAt"`
}

// CoordinatePoint is a caller-supplied coordinate for the synchronous path.
type CoordinatePoint struct {
	Lat                float64 `json:"lat"`
	Lng                float64 `json:"lng"`
	Name               string  `json:"name,omitempty"`
	ServiceTimeMinutes int     `json:"serviceTimeMinutes,omitempty"`
	LoadKg             float64 `json:"loadKg,omitempty"`
}

// CoordinateOptimizeRequest is the synchronous optimization request.
type CoordinateOptimizeRequest struct {
	Start             CoordinatePoint   `json:"start"`
	End               *CoordinatePoint  `json:"end,omitempty"`
	Waypoints         []CoordinatePoint `json:"waypoints"`
	UseTraffic        *bool             `json:"useTraffic,omitempty"`
	OptimizeOrder     *bool             `json:"optimizeOrder,omitempty"`
	MaxVehicles       int               `json:"maxVehicles,omitempty"`
	VehicleCapacityKg float64           `json:"vehicleCapacityKg,omitempty"`
	DepartureTime     *time.Time        `json:"departureTime,omitempty"`
}

// RouteSegment is one leg of a coordinate-optimized route.
type RouteSegment struct {
	FromLocation        CoordinatePoint `json:"fromLocation"`
	ToLocation          CoordinatePoint `json:"toLocation"`
	DistanceKm          float64         `json:"distanceKm"`
	DurationMinutes     int             `json:"durationMinutes"`
	TrafficDelayMinutes int             `json:"trafficDelayMinutes"`
	CongestionLevel     string          `json:"congestionLevel"`
}

// CoordinateOptimizeResponse is the synchronous optimization result.
type CoordinateOptimizeResponse struct {
	Success                  bool               `json:"success"`
	TotalDistanceKm          float64            `json:"totalDistanceKm"`
	TotalDurationMinutes     int                `json:"totalDurationMinutes"`
	TotalTrafficDelayMinutes int                `json:"totalTrafficDelayMinutes"`
	OptimizedSequence        []int              `json:"optimizedSequence"`
	RouteSegments            []RouteSegment     `json:"routeSegments"`
	WaypointsInOrder         []CoordinatePoint  `json:"waypointsInOrder"`
	Summary                  OptimizeRunSummary `json:"summary"`
}

// OptimizeRunSummary annotates how a coordinate result was produced.
type OptimizeRunSummary struct {
	VehiclesUsed        int  `json:"vehiclesUsed"`
	TotalStops          int  `json:"totalStops"`
	OptimizationApplied bool `json:"optimizationApplied"`
	TrafficAware        bool `json:"trafficAware"`
}

// JobEvent is published on job status transitions.
type JobEvent struct {
	Type  string         `json:"type"`
	JobID string         `json:"jobId"`
	TS    string         `json:"ts"`
	Data  map[string]any `json:"data,omitempty"`
}
