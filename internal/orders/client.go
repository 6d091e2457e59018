package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Order is the subset of the order service's order payload used here.
type Order struct {
	OrderID   uuid.UUID  `json:"order_id"`
	AddressID *uuid.UUID `json:"address_id,omitempty"`
	Status    string     `json:"order_status"`
	WeightKg  float64    `json:"weight_kg"`
}

// Address is the subset of the order service's address payload used here.
type Address struct {
	AddressID uuid.UUID `json:"address_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// Client talks to the order service. Every call is best-effort: failures
// return nil/false and are logged, never propagated.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{base: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

// Enabled reports whether an order service endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.base != "" }

// GetOrder fetches one order, or nil when the service is unavailable.
func (c *Client) GetOrder(ctx context.Context, orderID uuid.UUID) *Order {
	var o Order
	if !c.getJSON(ctx, fmt.Sprintf("%s/orders/%s", c.base, orderID), &o) {
		return nil
	}
	return &o
}

// GetOrders fetches several orders, skipping any that cannot be resolved.
func (c *Client) GetOrders(ctx context.Context, orderIDs []uuid.UUID) []Order {
	out := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		if o := c.GetOrder(ctx, id); o != nil {
			out = append(out, *o)
		}
	}
	return out
}

// GetAddress fetches one address, or nil when the service is unavailable.
func (c *Client) GetAddress(ctx context.Context, addressID uuid.UUID) *Address {
	var a Address
	if !c.getJSON(ctx, fmt.Sprintf("%s/addresses/%s", c.base, addressID), &a) {
		return nil
	}
	return &a
}

// UpdateOrderStatus pushes a status change, reporting success only.
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status string) bool {
	body, err := json.Marshal(map[string]string{"order_status": status})
	if err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/orders/%s", c.base, orderID), bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("order status update failed for %s: %v", orderID, err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}

func (c *Client) getJSON(ctx context.Context, url string, dst any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("order service unavailable: %v", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return false
	}
	return json.NewDecoder(resp.Body).Decode(dst) == nil
}
