package solver

import (
	"fleetroute/internal/matrix"
	"fleetroute/internal/model"
)

// kmPerTravelMinute converts recomputed travel minutes into an approximate
// distance. Deliberately not a geodesic distance; downstream totals depend
// on this constant staying as-is.
const kmPerTravelMinute = 0.8

// DecodedStop is one visit in decoded order, depot first.
type DecodedStop struct {
	Sequence                      int
	OrderID                       *string
	Latitude                      float64
	Longitude                     float64
	ServiceTimeMinutes            int
	LoadKg                        float64
	TravelTimeFromPreviousMinutes int
	DistanceFromPreviousKm        float64
	StopType                      string
}

// DecodedRoute is one vehicle's annotated stop sequence with totals.
type DecodedRoute struct {
	VehicleID       int
	RouteSequence   int
	DurationMinutes int
	DistanceKm      float64
	LoadKg          float64
	Stops           []DecodedStop
}

// Summary aggregates a decoded solution.
type Summary struct {
	TotalDistanceKm  float64
	TotalTimeMinutes int
	VehiclesUsed     int
	TotalStops       int
}

// Decoded is the final solver output: per-vehicle routes plus totals.
type Decoded struct {
	Routes  []DecodedRoute
	Summary Summary
}

// Decode walks each vehicle's assigned sequence, recomputing per-leg travel
// time from the matrix and per-leg distance from the travel-minute
// approximation, and accumulating load. Depot-only routes are dropped.
// Pure over its inputs: decoding the same assignment twice is identical.
func Decode(asg Assignment, m matrix.Cost, locations []model.Location) Decoded {
	out := Decoded{}
	for vehicleID, order := range asg.Routes {
		if len(order) == 0 {
			continue
		}

		stops := make([]DecodedStop, 0, len(order)+1)
		depot := locations[0]
		stops = append(stops, DecodedStop{
			Sequence:  0,
			Latitude:  depot.Latitude,
			Longitude: depot.Longitude,
			StopType:  model.StopDepot,
		})

		var routeSeconds int64
		var routeLoad float64
		prev := 0
		for _, node := range order {
			loc := locations[node]
			travelMin := int(m[prev][node] / 60)
			stop := DecodedStop{
				Sequence:                      len(stops),
				Latitude:                      loc.Latitude,
				Longitude:                     loc.Longitude,
				ServiceTimeMinutes:            loc.ServiceTimeMinutes,
				LoadKg:                        loc.LoadKg,
				TravelTimeFromPreviousMinutes: travelMin,
				DistanceFromPreviousKm:        float64(travelMin) * kmPerTravelMinute,
				StopType:                      model.StopDelivery,
			}
			if loc.OrderID != nil {
				id := loc.OrderID.String()
				stop.OrderID = &id
			}
			stops = append(stops, stop)
			routeSeconds += m[prev][node]
			routeLoad += loc.LoadKg
			prev = node
		}

		routeMinutes := int(routeSeconds / 60)
		route := DecodedRoute{
			VehicleID:       vehicleID,
			RouteSequence:   vehicleID,
			DurationMinutes: routeMinutes,
			DistanceKm:      float64(routeMinutes) * kmPerTravelMinute,
			LoadKg:          routeLoad,
			Stops:           stops,
		}
		out.Routes = append(out.Routes, route)
		out.Summary.TotalDistanceKm += route.DistanceKm
		out.Summary.TotalTimeMinutes += route.DurationMinutes
		out.Summary.TotalStops += len(stops)
	}
	out.Summary.VehiclesUsed = len(out.Routes)
	return out
}
