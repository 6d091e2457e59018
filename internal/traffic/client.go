package traffic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"fleetroute/internal/geo"
	"fleetroute/internal/metrics"
)

// Congestion severity buckets reported by the traffic service.
const (
	CongestionLow      = "LOW"
	CongestionModerate = "MODERATE"
	CongestionHigh     = "HIGH"
	CongestionSevere   = "SEVERE"
)

// Flow is the traffic condition at a single coordinate.
type Flow struct {
	CurrentSpeedKmph  float64 `json:"current_speed_kmph"`
	FreeFlowSpeedKmph float64 `json:"free_flow_speed_kmph"`
	CongestionLevel   string  `json:"congestion_level"`
	ConfidenceLevel   float64 `json:"confidence_level"`
}

// RouteSummary is the aggregate returned by the route traffic endpoint.
type RouteSummary struct {
	TotalDistanceKm     float64 `json:"total_distance_km"`
	TotalTimeMinutes    int     `json:"total_time_minutes"`
	TrafficDelayMinutes int     `json:"traffic_delay_minutes"`
}

// DefaultFlow is returned whenever the traffic service cannot be reached.
// Traffic unavailability is never a hard error.
func DefaultFlow() Flow {
	return Flow{CurrentSpeedKmph: 50, FreeFlowSpeedKmph: 60, CongestionLevel: CongestionLow, ConfidenceLevel: 0.5}
}

// CongestionMultiplier inflates a base travel time by congestion severity.
// This is the speed-side delay model; the coordinate optimizer carries a
// separate percentage-based one. Keep them independent.
func CongestionMultiplier(level string) float64 {
	switch level {
	case CongestionModerate:
		return 1.2
	case CongestionHigh:
		return 1.5
	case CongestionSevere:
		return 2.0
	default:
		return 1.0
	}
}

// Client queries the traffic service. All lookups degrade to DefaultFlow on
// failure; the only hard stop is context cancellation, which also degrades.
type Client struct {
	base        string
	http        *http.Client
	limiter     *rate.Limiter
	cache       *redis.Client
	cacheTTL    time.Duration
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
}

type Option func(*Client)

// WithCache enables redis-backed flow caching.
func WithCache(rdb *redis.Client, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = rdb
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithRateLimit caps upstream requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
		}
	}
}

// WithBackoff overrides the retry schedule. Tests shrink it to microseconds.
func WithBackoff(base, cap time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = base
		c.backoffCap = cap
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:        baseURL,
		http:        &http.Client{Timeout: 10 * time.Second},
		cacheTTL:    2 * time.Minute,
		maxAttempts: 3,
		backoffBase: 2 * time.Second,
		backoffCap:  10 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Flow returns traffic conditions at a coordinate, from cache when possible,
// retrying transport failures up to 3 times with exponential backoff before
// falling back to DefaultFlow.
func (c *Client) Flow(ctx context.Context, lat, lng float64) Flow {
	key := fmt.Sprintf("traffic:flow:%.3f:%.3f", lat, lng)
	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, key).Bytes(); err == nil {
			var f Flow
			if json.Unmarshal(raw, &f) == nil {
				metrics.TrafficRequests.WithLabelValues("cached").Inc()
				return f
			}
		}
	}

	f, err := c.fetchFlow(ctx, lat, lng)
	if err != nil {
		log.Printf("traffic service unavailable for (%.4f,%.4f): %v", lat, lng, err)
		metrics.TrafficRequests.WithLabelValues("fallback").Inc()
		return DefaultFlow()
	}
	metrics.TrafficRequests.WithLabelValues("ok").Inc()
	if c.cache != nil {
		if raw, err := json.Marshal(f); err == nil {
			_ = c.cache.Set(ctx, key, raw, c.cacheTTL).Err()
		}
	}
	return f
}

func (c *Client) fetchFlow(ctx context.Context, lat, lng float64) (Flow, error) {
	var lastErr error
	backoff := c.backoffBase
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return Flow{}, ctx.Err()
			case <-t.C:
			}
			backoff *= 2
			if backoff > c.backoffCap {
				backoff = c.backoffCap
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return Flow{}, err
			}
		}
		u := fmt.Sprintf("%s/traffic/flow?lat=%s&lng=%s", c.base,
			url.QueryEscape(fmt.Sprintf("%v", lat)), url.QueryEscape(fmt.Sprintf("%v", lng)))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return Flow{}, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			lastErr = fmt.Errorf("traffic flow: status %d", resp.StatusCode)
			continue
		}
		var f Flow
		err = json.NewDecoder(resp.Body).Decode(&f)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("traffic flow: decode: %w", err)
			continue
		}
		return f, nil
	}
	return Flow{}, lastErr
}

// RouteTraffic returns aggregate traffic for a waypoint path, degrading to
// a zero summary on any failure.
func (c *Client) RouteTraffic(ctx context.Context, waypoints []map[string]float64) RouteSummary {
	body, err := json.Marshal(map[string]any{"waypoints": waypoints})
	if err != nil {
		return RouteSummary{}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/traffic/route", bytes.NewReader(body))
	if err != nil {
		return RouteSummary{}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("route traffic service unavailable: %v", err)
		return RouteSummary{}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return RouteSummary{}
	}
	var out RouteSummary
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RouteSummary{}
	}
	return out
}

// TravelTimeMinutes estimates traffic-aware travel time between two points:
// flow at the origin, Haversine distance, base minutes at the current speed
// (30 km/h floor), congestion multiplier, minimum one minute.
func (c *Client) TravelTimeMinutes(ctx context.Context, fromLat, fromLng, toLat, toLng float64) int {
	flow := c.Flow(ctx, fromLat, fromLng)
	distanceKm := geo.DistanceKm(fromLat, fromLng, toLat, toLng)

	speed := flow.CurrentSpeedKmph
	if speed < 30 {
		speed = 30
	}
	minutes := int(distanceKm / speed * 60)
	minutes = int(float64(minutes) * CongestionMultiplier(flow.CongestionLevel))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
