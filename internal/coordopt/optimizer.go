package coordopt

import (
	"context"
	"fmt"
	"time"

	"fleetroute/internal/geo"
	"fleetroute/internal/matrix"
	"fleetroute/internal/model"
	"fleetroute/internal/solver"
	"fleetroute/internal/traffic"
)

// offlineSpeedKmph is the assumed speed when traffic is disabled.
const offlineSpeedKmph = 50.0

// delayFactor maps congestion severity to a fractional travel-time surcharge.
// This percentage model is intentionally separate from the traffic client's
// speed multiplier; the two produce different numbers for the same level.
func delayFactor(level string) float64 {
	switch level {
	case traffic.CongestionModerate:
		return 0.2
	case traffic.CongestionHigh:
		return 0.5
	case traffic.CongestionSevere:
		return 1.0
	default:
		return 0
	}
}

// Optimizer serves ad-hoc coordinate requests synchronously, without a job
// record. Waypoint reordering reuses the batch solver pipeline.
type Optimizer struct {
	Traffic *traffic.Client
	Builder *matrix.Builder
	Budget  time.Duration
	Seed    int64
}

func New(tc *traffic.Client, b *matrix.Builder, budget time.Duration) *Optimizer {
	return &Optimizer{Traffic: tc, Builder: b, Budget: budget}
}

// Optimize computes a route over the request's coordinates. With
// optimizeOrder set and at least two waypoints the visit order is solved and
// an infeasible model is an error; otherwise waypoints are visited as given.
func (o *Optimizer) Optimize(ctx context.Context, req model.CoordinateOptimizeRequest) (model.CoordinateOptimizeResponse, error) {
	if len(req.Waypoints) == 0 {
		return model.CoordinateOptimizeResponse{}, fmt.Errorf("optimize coordinates: at least one waypoint required")
	}

	useTraffic := req.UseTraffic == nil || *req.UseTraffic
	optimizeOrder := req.OptimizeOrder == nil || *req.OptimizeOrder

	sequence := identitySequence(len(req.Waypoints))
	applied := false
	vehiclesUsed := 1
	if optimizeOrder && len(req.Waypoints) >= 2 {
		seq, used, err := o.solveOrder(ctx, req, useTraffic)
		if err != nil {
			return model.CoordinateOptimizeResponse{}, fmt.Errorf("optimize coordinates: %w", err)
		}
		sequence = seq
		applied = true
		vehiclesUsed = used
	}

	ordered := make([]model.CoordinatePoint, 0, len(sequence))
	for _, idx := range sequence {
		ordered = append(ordered, req.Waypoints[idx])
	}

	path := append([]model.CoordinatePoint{req.Start}, ordered...)
	if req.End != nil {
		path = append(path, *req.End)
	}

	resp := model.CoordinateOptimizeResponse{
		Success:           true,
		OptimizedSequence: sequence,
		WaypointsInOrder:  ordered,
	}
	for i := 1; i < len(path); i++ {
		seg := o.segment(ctx, path[i-1], path[i], useTraffic)
		resp.RouteSegments = append(resp.RouteSegments, seg)
		resp.TotalDistanceKm += seg.DistanceKm
		resp.TotalDurationMinutes += seg.DurationMinutes
		resp.TotalTrafficDelayMinutes += seg.TrafficDelayMinutes
	}
	resp.Summary = model.OptimizeRunSummary{
		VehiclesUsed:        vehiclesUsed,
		TotalStops:          len(path),
		OptimizationApplied: applied,
		TrafficAware:        useTraffic,
	}
	return resp, nil
}

// solveOrder runs the batch pipeline over start+waypoints and flattens the
// assignment back into waypoint indices (node i is waypoint i-1).
func (o *Optimizer) solveOrder(ctx context.Context, req model.CoordinateOptimizeRequest, useTraffic bool) ([]int, int, error) {
	locations := make([]model.Location, 0, len(req.Waypoints)+1)
	locations = append(locations, model.Location{Latitude: req.Start.Lat, Longitude: req.Start.Lng})
	for _, w := range req.Waypoints {
		locations = append(locations, model.Location{
			Latitude:           w.Lat,
			Longitude:          w.Lng,
			ServiceTimeMinutes: w.ServiceTimeMinutes,
			LoadKg:             w.LoadKg,
		})
	}

	cost, err := o.Builder.Build(ctx, locations, useTraffic)
	if err != nil {
		return nil, 0, err
	}

	c := model.DefaultConstraints()
	// traffic-aware solves minimize time, offline solves minimize distance;
	// the duration bound scales with the criterion
	if useTraffic {
		c.OptimizationCriterion = model.MinimizeTime
	}
	if req.MaxVehicles > 0 {
		c.MaxVehicles = req.MaxVehicles
	}
	if req.VehicleCapacityKg > 0 {
		c.VehicleCapacityKg = req.VehicleCapacityKg
	}
	m := solver.BuildModel(cost, locations, c)
	asg, err := solver.Solve(m, o.Budget, o.Seed)
	if err != nil {
		return nil, 0, err
	}

	var sequence []int
	vehiclesUsed := 0
	for _, route := range asg.Routes {
		if len(route) == 0 {
			continue
		}
		vehiclesUsed++
		for _, node := range route {
			sequence = append(sequence, node-1)
		}
	}
	return sequence, vehiclesUsed, nil
}

// segment computes one leg. Distance is geodesic; duration is the flow-speed
// travel time at the leg origin inflated by the congestion multiplier, with
// the percentage surcharge of that inflated time reported as the delay.
func (o *Optimizer) segment(ctx context.Context, from, to model.CoordinatePoint, useTraffic bool) model.RouteSegment {
	distKm := geo.DistanceKm(from.Lat, from.Lng, to.Lat, to.Lng)
	seg := model.RouteSegment{
		FromLocation:    from,
		ToLocation:      to,
		DistanceKm:      distKm,
		CongestionLevel: traffic.CongestionLow,
	}

	speed := offlineSpeedKmph
	if useTraffic && o.Traffic != nil {
		flow := o.Traffic.Flow(ctx, from.Lat, from.Lng)
		seg.CongestionLevel = flow.CongestionLevel
		speed = flow.CurrentSpeedKmph
		if speed < 30 {
			speed = 30
		}
	}

	base := int(distKm / speed * 60)
	if base < 1 {
		base = 1
	}
	// Travel time carries the congestion multiplier; the delay figure is the
	// surcharge share of that already-inflated time, reported separately.
	travelMin := int(float64(base) * traffic.CongestionMultiplier(seg.CongestionLevel))
	if travelMin < 1 {
		travelMin = 1
	}
	seg.TrafficDelayMinutes = int(float64(travelMin) * delayFactor(seg.CongestionLevel))
	seg.DurationMinutes = travelMin
	return seg
}

func identitySequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
