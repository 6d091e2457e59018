package matrix

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleetroute/internal/geo"
	"fleetroute/internal/metrics"
	"fleetroute/internal/model"
)

// Cost is a square matrix of edge costs in seconds. Diagonal is zero.
// Entries are integral because the solver requires integral costs.
type Cost [][]int64

// offlineSpeedKmph is the assumed average speed when traffic data is not used.
const offlineSpeedKmph = 50.0

// Estimator produces traffic-aware travel times. Satisfied by traffic.Client.
type Estimator interface {
	TravelTimeMinutes(ctx context.Context, fromLat, fromLng, toLat, toLng float64) int
}

// Builder constructs cost matrices from a location list. In traffic mode each
// off-diagonal edge costs one estimator call, so edges are computed by a
// bounded worker pool under the caller's context deadline.
type Builder struct {
	Estimator   Estimator
	Concurrency int
}

func NewBuilder(est Estimator, concurrency int) *Builder {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Builder{Estimator: est, Concurrency: concurrency}
}

// Build returns the n×n cost matrix for locations. Traffic mode converts
// estimated minutes to seconds; offline mode converts flat-grid distance to
// seconds at 50 km/h with a 60-second floor.
func (b *Builder) Build(ctx context.Context, locations []model.Location, useTraffic bool) (Cost, error) {
	n := len(locations)
	if n < 2 {
		return nil, fmt.Errorf("build matrix: need at least 2 locations, got %d", n)
	}
	start := time.Now()
	m := make(Cost, n)
	for i := range m {
		m[i] = make([]int64, n)
	}

	if !useTraffic {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				m[i][j] = offlineSeconds(locations[i], locations[j])
			}
		}
		metrics.MatrixBuildDuration.Observe(time.Since(start).Seconds())
		return m, nil
	}

	type edge struct{ i, j int }
	edges := make(chan edge)
	var wg sync.WaitGroup
	for w := 0; w < b.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range edges {
				min := b.Estimator.TravelTimeMinutes(ctx,
					locations[e.i].Latitude, locations[e.i].Longitude,
					locations[e.j].Latitude, locations[e.j].Longitude)
				m[e.i][e.j] = int64(min) * 60
			}
		}()
	}

	var ctxErr error
feed:
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			select {
			case <-ctx.Done():
				ctxErr = ctx.Err()
				break feed
			case edges <- edge{i, j}:
			}
		}
	}
	close(edges)
	wg.Wait()
	if ctxErr != nil {
		return nil, fmt.Errorf("build matrix: %w", ctxErr)
	}
	metrics.MatrixBuildDuration.Observe(time.Since(start).Seconds())
	return m, nil
}

func offlineSeconds(a, b model.Location) int64 {
	distKm := geo.FlatDistanceKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
	sec := int64(distKm / offlineSpeedKmph * 3600)
	if sec < 60 {
		sec = 60
	}
	return sec
}
