// Package main runs a demo WebSocket client: it submits an optimization job
// and streams its lifecycle events until the job finishes.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Submit a small job with synthetic orders
	orderIDs := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	body, _ := json.Marshal(map[string]any{
		"orderIds":       orderIDs,
		"jobName":        "ws-demo",
		"useTrafficData": false,
	})
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/routes/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var job struct {
		JobID string `json:"jobId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		log.Fatal(err)
	}
	log.Printf("Job ID: %s", job.JobID)

	// Connect WS and print events
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: fmt.Sprintf("/v1/jobs/%s/events/ws", job.JobID)}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var evt map[string]any
			if err := c.ReadJSON(&evt); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %v", evt)
			if evt["type"] == "job.completed" || evt["type"] == "job.failed" {
				return
			}
		}
	}()

	select {
	case <-time.After(60 * time.Second):
		log.Printf("timed out waiting for job events")
	case <-done:
	}
}
