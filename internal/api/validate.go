package api

import (
	"fmt"

	"fleetroute/internal/model"
)

const maxOrdersPerJob = 100

func validateOptimizeRequest(req model.OptimizeRequest) error {
	if len(req.OrderIDs) == 0 {
		return fmt.Errorf("orderIds required")
	}
	if len(req.OrderIDs) > maxOrdersPerJob {
		return fmt.Errorf("at most %d orders per job, got %d", maxOrdersPerJob, len(req.OrderIDs))
	}
	if req.Constraints != nil {
		return validateConstraints(*req.Constraints)
	}
	return nil
}

func validateConstraints(c model.Constraints) error {
	switch c.OptimizationCriterion {
	case "", model.MinimizeDistance, model.MinimizeTime, model.MinimizeCost:
	default:
		return fmt.Errorf("unknown optimizationCriterion %q", c.OptimizationCriterion)
	}
	if c.MaxVehicles < 0 {
		return fmt.Errorf("maxVehicles must be positive")
	}
	if c.VehicleCapacityKg < 0 {
		return fmt.Errorf("vehicleCapacityKg must be positive")
	}
	if c.MaxRouteDurationMinutes < 0 {
		return fmt.Errorf("maxRouteDurationMinutes must be positive")
	}
	if c.DepotLatitude != 0 || c.DepotLongitude != 0 {
		if err := validateCoordinate(c.DepotLatitude, c.DepotLongitude); err != nil {
			return fmt.Errorf("depot: %w", err)
		}
	}
	return nil
}

func validateCoordinate(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range", lng)
	}
	return nil
}

func validateCoordinateRequest(req model.CoordinateOptimizeRequest) error {
	if len(req.Waypoints) == 0 {
		return fmt.Errorf("waypoints required")
	}
	if len(req.Waypoints) > maxOrdersPerJob {
		return fmt.Errorf("at most %d waypoints, got %d", maxOrdersPerJob, len(req.Waypoints))
	}
	if err := validateCoordinate(req.Start.Lat, req.Start.Lng); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if req.End != nil {
		if err := validateCoordinate(req.End.Lat, req.End.Lng); err != nil {
			return fmt.Errorf("end: %w", err)
		}
	}
	for i, w := range req.Waypoints {
		if err := validateCoordinate(w.Lat, w.Lng); err != nil {
			return fmt.Errorf("waypoint %d: %w", i, err)
		}
		// a single stop heavier than the vehicle can never be placed
		if req.VehicleCapacityKg > 0 && w.LoadKg > req.VehicleCapacityKg {
			return fmt.Errorf("waypoint %d load %.1f kg exceeds vehicle capacity %.1f kg",
				i, w.LoadKg, req.VehicleCapacityKg)
		}
	}
	return nil
}

// mergeConstraints overlays caller-provided fields on the defaults.
func mergeConstraints(in *model.Constraints) model.Constraints {
	c := model.DefaultConstraints()
	if in == nil {
		return c
	}
	if in.MaxStopsPerRoute > 0 {
		c.MaxStopsPerRoute = in.MaxStopsPerRoute
	}
	if in.MaxRouteDurationMinutes > 0 {
		c.MaxRouteDurationMinutes = in.MaxRouteDurationMinutes
	}
	if in.MaxVehicles > 0 {
		c.MaxVehicles = in.MaxVehicles
	}
	if in.VehicleCapacityKg > 0 {
		c.VehicleCapacityKg = in.VehicleCapacityKg
	}
	if in.OptimizationCriterion != "" {
		c.OptimizationCriterion = in.OptimizationCriterion
	}
	if in.DepotLatitude != 0 || in.DepotLongitude != 0 {
		c.DepotLatitude = in.DepotLatitude
		c.DepotLongitude = in.DepotLongitude
	}
	if in.WorkingHoursStart != "" {
		c.WorkingHoursStart = in.WorkingHoursStart
	}
	if in.WorkingHoursEnd != "" {
		c.WorkingHoursEnd = in.WorkingHoursEnd
	}
	return c
}
