package coordopt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleetroute/internal/matrix"
	"fleetroute/internal/model"
	"fleetroute/internal/traffic"
)

func boolPtr(b bool) *bool { return &b }

func newTestOptimizer() *Optimizer {
	return New(nil, matrix.NewBuilder(nil, 2), 50*time.Millisecond)
}

// flowServer serves a fixed traffic flow and returns an optimizer wired to it.
func flowServer(t *testing.T, flow traffic.Flow) *Optimizer {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(flow)
	}))
	t.Cleanup(ts.Close)
	tc := traffic.NewClient(ts.URL, traffic.WithBackoff(time.Microsecond, time.Microsecond))
	return New(tc, matrix.NewBuilder(tc, 2), 50*time.Millisecond)
}

func TestOptimizeSequentialOrder(t *testing.T) {
	o := newTestOptimizer()
	req := model.CoordinateOptimizeRequest{
		Start: model.CoordinatePoint{Lat: 28.60, Lng: 77.20},
		Waypoints: []model.CoordinatePoint{
			{Lat: 28.70, Lng: 77.20, Name: "A"},
			{Lat: 28.65, Lng: 77.20, Name: "B"},
			{Lat: 28.62, Lng: 77.20, Name: "C"},
		},
		UseTraffic:    boolPtr(false),
		OptimizeOrder: boolPtr(false),
	}
	resp, err := o.Optimize(context.Background(), req)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if !resp.Success {
		t.Fatal("not successful")
	}
	if resp.Summary.OptimizationApplied {
		t.Fatal("order must stay as given")
	}
	for i, idx := range resp.OptimizedSequence {
		if idx != i {
			t.Fatalf("sequence changed: %v", resp.OptimizedSequence)
		}
	}
	if len(resp.RouteSegments) != 3 {
		t.Fatalf("segments: got %d", len(resp.RouteSegments))
	}
	if resp.WaypointsInOrder[0].Name != "A" || resp.WaypointsInOrder[2].Name != "C" {
		t.Fatalf("waypoint order: %+v", resp.WaypointsInOrder)
	}
	if resp.TotalTrafficDelayMinutes != 0 {
		t.Fatalf("offline delay: %d", resp.TotalTrafficDelayMinutes)
	}
	if resp.Summary.TrafficAware {
		t.Fatal("traffic flagged on offline run")
	}
}

func TestOptimizeReordersWaypoints(t *testing.T) {
	o := newTestOptimizer()
	// waypoints given farthest-first; optimization visits nearest first
	req := model.CoordinateOptimizeRequest{
		Start: model.CoordinatePoint{Lat: 28.60, Lng: 77.20},
		Waypoints: []model.CoordinatePoint{
			{Lat: 28.90, Lng: 77.20},
			{Lat: 28.62, Lng: 77.20},
			{Lat: 28.75, Lng: 77.20},
		},
		UseTraffic: boolPtr(false),
	}
	resp, err := o.Optimize(context.Background(), req)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if !resp.Summary.OptimizationApplied {
		t.Fatal("optimization not applied")
	}
	if len(resp.OptimizedSequence) != 3 {
		t.Fatalf("sequence: %v", resp.OptimizedSequence)
	}
	if resp.OptimizedSequence[0] != 1 {
		t.Fatalf("nearest waypoint not first: %v", resp.OptimizedSequence)
	}
	// every waypoint exactly once
	seen := map[int]bool{}
	for _, idx := range resp.OptimizedSequence {
		if seen[idx] {
			t.Fatalf("duplicate index: %v", resp.OptimizedSequence)
		}
		seen[idx] = true
	}
}

func TestOptimizeWithEndPoint(t *testing.T) {
	o := newTestOptimizer()
	req := model.CoordinateOptimizeRequest{
		Start:         model.CoordinatePoint{Lat: 28.60, Lng: 77.20},
		End:           &model.CoordinatePoint{Lat: 28.80, Lng: 77.20},
		Waypoints:     []model.CoordinatePoint{{Lat: 28.70, Lng: 77.20}},
		UseTraffic:    boolPtr(false),
		OptimizeOrder: boolPtr(false),
	}
	resp, err := o.Optimize(context.Background(), req)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	// start->waypoint, waypoint->end
	if len(resp.RouteSegments) != 2 {
		t.Fatalf("segments: got %d", len(resp.RouteSegments))
	}
	last := resp.RouteSegments[1]
	if last.ToLocation.Lat != 28.80 {
		t.Fatalf("last segment target: %+v", last.ToLocation)
	}
	if resp.Summary.TotalStops != 3 {
		t.Fatalf("total stops: %d", resp.Summary.TotalStops)
	}
}

func TestOptimizeInfeasibleIsAnError(t *testing.T) {
	o := newTestOptimizer()
	// one 10 kg vehicle cannot split two 8 kg waypoints
	req := model.CoordinateOptimizeRequest{
		Start: model.CoordinatePoint{Lat: 28.60, Lng: 77.20},
		Waypoints: []model.CoordinatePoint{
			{Lat: 28.70, Lng: 77.20, LoadKg: 8},
			{Lat: 28.62, Lng: 77.20, LoadKg: 8},
		},
		UseTraffic:        boolPtr(false),
		MaxVehicles:       1,
		VehicleCapacityKg: 10,
	}
	if _, err := o.Optimize(context.Background(), req); err == nil {
		t.Fatal("want error for infeasible model")
	}
}

func TestOptimizeRejectsEmptyWaypoints(t *testing.T) {
	o := newTestOptimizer()
	_, err := o.Optimize(context.Background(), model.CoordinateOptimizeRequest{})
	if err == nil {
		t.Fatal("want error for empty waypoints")
	}
}

func TestDelayFactor(t *testing.T) {
	cases := map[string]float64{
		traffic.CongestionLow:      0,
		traffic.CongestionModerate: 0.2,
		traffic.CongestionHigh:     0.5,
		traffic.CongestionSevere:   1.0,
		"UNKNOWN":                  0,
	}
	for level, want := range cases {
		if got := delayFactor(level); got != want {
			t.Fatalf("%s: got %v want %v", level, got, want)
		}
	}
}

func TestSegmentDelayOnInflatedTravelTime(t *testing.T) {
	o := flowServer(t, traffic.Flow{CurrentSpeedKmph: 50, CongestionLevel: traffic.CongestionHigh})
	// ~11.1 km at 50 km/h: 13 base minutes, x1.5 HIGH = 19 travel minutes;
	// the delay is half of the inflated time, 9 minutes
	resp, err := o.Optimize(context.Background(), model.CoordinateOptimizeRequest{
		Start:         model.CoordinatePoint{Lat: 28.60, Lng: 77.20},
		Waypoints:     []model.CoordinatePoint{{Lat: 28.70, Lng: 77.20}},
		OptimizeOrder: boolPtr(false),
	})
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	seg := resp.RouteSegments[0]
	if seg.CongestionLevel != traffic.CongestionHigh {
		t.Fatalf("congestion: %s", seg.CongestionLevel)
	}
	if seg.DurationMinutes != 19 {
		t.Fatalf("duration: %d", seg.DurationMinutes)
	}
	if seg.TrafficDelayMinutes != 9 {
		t.Fatalf("delay: %d", seg.TrafficDelayMinutes)
	}
	if resp.TotalTrafficDelayMinutes != 9 {
		t.Fatalf("total delay: %d", resp.TotalTrafficDelayMinutes)
	}
}

func TestOptimizeTrafficModeUsesTimeBound(t *testing.T) {
	o := flowServer(t, traffic.Flow{CurrentSpeedKmph: 30, CongestionLevel: traffic.CongestionLow})
	// legs of ~266 travel minutes each: over the 480-minute bound when it is
	// counted in seconds, within it when counted in time units
	resp, err := o.Optimize(context.Background(), model.CoordinateOptimizeRequest{
		Start: model.CoordinatePoint{Lat: 28.00, Lng: 77.20},
		Waypoints: []model.CoordinatePoint{
			{Lat: 29.20, Lng: 77.20},
			{Lat: 30.40, Lng: 77.20},
		},
		UseTraffic: boolPtr(true),
	})
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if !resp.Summary.OptimizationApplied || !resp.Summary.TrafficAware {
		t.Fatalf("summary: %+v", resp.Summary)
	}
	if len(resp.OptimizedSequence) != 2 || resp.OptimizedSequence[0] != 0 {
		t.Fatalf("sequence: %v", resp.OptimizedSequence)
	}
}

func TestSegmentDurations(t *testing.T) {
	o := newTestOptimizer()
	// ~11 km at 50 km/h offline: 13 minutes, no delay
	seg := o.segment(context.Background(),
		model.CoordinatePoint{Lat: 28.60, Lng: 77.20},
		model.CoordinatePoint{Lat: 28.70, Lng: 77.20}, false)
	if seg.DurationMinutes < 12 || seg.DurationMinutes > 14 {
		t.Fatalf("duration: %d", seg.DurationMinutes)
	}
	if seg.TrafficDelayMinutes != 0 || seg.CongestionLevel != traffic.CongestionLow {
		t.Fatalf("offline segment: %+v", seg)
	}
}
