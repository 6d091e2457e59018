package solver

import (
	"testing"

	"github.com/google/uuid"

	"fleetroute/internal/model"
)

func TestDecodeAnnotatesRoutes(t *testing.T) {
	id1 := uuid.New()
	id2 := uuid.New()
	locs := []model.Location{
		{Latitude: 28.6, Longitude: 77.2},
		{OrderID: &id1, Latitude: 28.61, Longitude: 77.21, ServiceTimeMinutes: 10, LoadKg: 5},
		{OrderID: &id2, Latitude: 28.62, Longitude: 77.22, ServiceTimeMinutes: 10, LoadKg: 5},
	}
	m := gridMatrix(3)
	asg := Assignment{Routes: [][]int{{1, 2}, {}}}

	d := Decode(asg, m, locs)
	if len(d.Routes) != 1 {
		t.Fatalf("empty route kept: got %d routes", len(d.Routes))
	}
	r := d.Routes[0]
	if len(r.Stops) != 3 {
		t.Fatalf("want depot+2 stops, got %d", len(r.Stops))
	}
	if r.Stops[0].StopType != model.StopDepot || r.Stops[0].Sequence != 0 {
		t.Fatalf("first stop not depot: %+v", r.Stops[0])
	}
	if r.Stops[1].OrderID == nil || *r.Stops[1].OrderID != id1.String() {
		t.Fatalf("stop 1 order id: %+v", r.Stops[1])
	}
	// arcs 0->1 and 1->2 are 60s each: 2 minutes, 1.6 km
	if r.DurationMinutes != 2 {
		t.Fatalf("duration: got %d", r.DurationMinutes)
	}
	if r.DistanceKm != 2*kmPerTravelMinute {
		t.Fatalf("distance: got %v", r.DistanceKm)
	}
	if r.LoadKg != 10 {
		t.Fatalf("load: got %v", r.LoadKg)
	}
	if d.Summary.VehiclesUsed != 1 || d.Summary.TotalStops != 3 {
		t.Fatalf("summary: %+v", d.Summary)
	}
}

func TestDecodeIsPure(t *testing.T) {
	locs := []model.Location{{}, {}, {}}
	m := gridMatrix(3)
	asg := Assignment{Routes: [][]int{{2, 1}}}
	a := Decode(asg, m, locs)
	b := Decode(asg, m, locs)
	if a.Summary != b.Summary {
		t.Fatalf("summaries differ: %+v vs %+v", a.Summary, b.Summary)
	}
	if len(a.Routes) != len(b.Routes) || len(a.Routes[0].Stops) != len(b.Routes[0].Stops) {
		t.Fatal("routes differ across identical decodes")
	}
}
