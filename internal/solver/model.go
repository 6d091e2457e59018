package solver

import (
	"fleetroute/internal/matrix"
	"fleetroute/internal/model"
)

// Dimension is a named cumulative quantity tracked along each route and
// bounded per vehicle. Cumulation starts at zero at the depot.
type Dimension struct {
	Name string
	// ArcCost dimensions accumulate the cost matrix along traversed arcs.
	// Otherwise Transit holds one demand value per node.
	ArcCost bool
	Transit []int64
	// SlackSeconds is the waiting slack allowed between consecutive stops.
	// Slack can always be taken as zero, so feasibility checks ignore it;
	// it is part of the model, not of the bound.
	SlackSeconds int64
	VehicleCaps  []int64
}

// Model is the solver-ready routing model: matrix, fleet size, depot, and
// dimension bounds. A single global arc cost applies to all vehicles.
type Model struct {
	Matrix      matrix.Cost
	NumVehicles int
	Depot       int
	Dimensions  []Dimension
}

const distanceSlackSeconds = 1800

// BuildModel translates business constraints into dimension definitions.
//
// The distance/time bound is criterion-dependent: ×60 (seconds) for
// MINIMIZE_DISTANCE, ×100 (time units) otherwise. Both branches are kept
// as-is for behavioral parity with deployed results.
func BuildModel(m matrix.Cost, locations []model.Location, c model.Constraints) Model {
	numVehicles := c.MaxVehicles
	if numVehicles < 1 {
		numVehicles = 1
	}

	var maxTransit int64
	if c.OptimizationCriterion == model.MinimizeDistance {
		maxTransit = int64(c.MaxRouteDurationMinutes) * 60
	} else {
		maxTransit = int64(c.MaxRouteDurationMinutes) * 100
	}
	caps := make([]int64, numVehicles)
	for i := range caps {
		caps[i] = maxTransit
	}
	dims := []Dimension{{
		Name:         "Distance",
		ArcCost:      true,
		SlackSeconds: distanceSlackSeconds,
		VehicleCaps:  caps,
	}}

	// Capacity dimension only when any stop actually carries load.
	hasLoad := false
	demands := make([]int64, len(locations))
	for i, loc := range locations {
		demands[i] = int64(loc.LoadKg * 100) // grams
		if loc.LoadKg > 0 {
			hasLoad = true
		}
	}
	if hasLoad {
		capGrams := int64(c.VehicleCapacityKg * 100)
		vcaps := make([]int64, numVehicles)
		for i := range vcaps {
			vcaps[i] = capGrams
		}
		dims = append(dims, Dimension{
			Name:        "Capacity",
			Transit:     demands,
			VehicleCaps: vcaps,
		})
	}

	return Model{Matrix: m, NumVehicles: numVehicles, Depot: 0, Dimensions: dims}
}
