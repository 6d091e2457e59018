package api

import (
	"testing"
	"time"

	"fleetroute/internal/model"
)

func TestBrokerFanout(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe("job-1")
	c := b.Subscribe("job-1")
	other := b.Subscribe("job-2")

	b.Publish(model.JobEvent{Type: "job.started", JobID: "job-1"})

	for _, ch := range []chan model.JobEvent{a, c} {
		select {
		case evt := <-ch:
			if evt.Type != "job.started" {
				t.Fatalf("event: %+v", evt)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber missed event")
		}
	}
	select {
	case evt := <-other:
		t.Fatalf("wrong job received event: %+v", evt)
	default:
	}

	b.Unsubscribe("job-1", a)
	// closed channel yields zero value immediately
	if _, ok := <-a; ok {
		t.Fatal("channel not closed on unsubscribe")
	}
	// remaining subscriber still receives
	b.Publish(model.JobEvent{Type: "job.completed", JobID: "job-1"})
	select {
	case evt := <-c:
		if evt.Type != "job.completed" {
			t.Fatalf("event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber missed event")
	}
}

func TestBrokerDropsWhenSubscriberFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("job-1")
	for i := 0; i < 100; i++ {
		b.Publish(model.JobEvent{Type: "job.progress", JobID: "job-1"})
	}
	// publish never blocked; the buffer holds at most its capacity
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			if n == 0 || n > 8 {
				t.Fatalf("buffered events: %d", n)
			}
			return
		}
	}
}
