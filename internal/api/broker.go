package api

import (
	"sync"

	"fleetroute/internal/model"
)

// EventBroker fans job lifecycle events out to stream subscribers. Publish
// routes on the event's job id.
type EventBroker interface {
	Subscribe(jobID string) chan model.JobEvent
	Unsubscribe(jobID string, ch chan model.JobEvent)
	Publish(evt model.JobEvent)
}

// Broker is the in-process EventBroker used when redis is not configured.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan model.JobEvent]struct{} // jobId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan model.JobEvent]struct{}{}}
}

func (b *Broker) Subscribe(jobID string) chan model.JobEvent {
	ch := make(chan model.JobEvent, 8)
	b.mu.Lock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = map[chan model.JobEvent]struct{}{}
	}
	b.subs[jobID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(jobID string, ch chan model.JobEvent) {
	b.mu.Lock()
	if m := b.subs[jobID]; m != nil {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, jobID)
		}
	}
	b.mu.Unlock()
	close(ch)
}

// Publish never blocks; slow subscribers drop events.
func (b *Broker) Publish(evt model.JobEvent) {
	b.mu.Lock()
	for ch := range b.subs[evt.JobID] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
