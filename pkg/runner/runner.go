// Package runner is the host-side glue that turns the allocation-free,
// single-threaded isotp.Link into something that runs unattended: it owns
// a can.Bus, a polling goroutine, and a registry of links keyed by the
// arbitration ID each one listens on.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/canlink-io/isotp"
	"github.com/canlink-io/isotp/pkg/can"
)

// Runner wires one can.Bus to any number of isotp.Links, polling all of
// them on a shared ticker and dispatching inbound frames by arbitration
// ID. It is the one concurrent piece of this module: callers may add or
// remove links from other goroutines while Run is in progress.
type Runner struct {
	log *logrus.Entry
	bus can.Bus

	start time.Time

	mu     sync.Mutex
	links  map[string]*isotp.Link
	byRxID map[uint32]*isotp.Link

	pollInterval time.Duration
}

// NewRunner constructs a Runner around bus, polling all registered links
// every pollInterval.
func NewRunner(bus can.Bus, pollInterval time.Duration) *Runner {
	return &Runner{
		log:          logrus.WithField("component", "runner"),
		bus:          bus,
		start:        time.Now(),
		links:        make(map[string]*isotp.Link),
		byRxID:       make(map[uint32]*isotp.Link),
		pollInterval: pollInterval,
	}
}

// Milliseconds implements isotp.Clock using a monotonic offset from the
// Runner's construction time.
func (r *Runner) Milliseconds() uint32 {
	return uint32(time.Since(r.start).Milliseconds())
}

// SendFrame implements isotp.Transmitter by publishing onto the bus.
func (r *Runner) SendFrame(id uint32, data []byte) error {
	return r.bus.Send(can.NewFrame(id, 0, data))
}

// AddLink registers link under nodeID, routing frames arriving on rxID to
// it. link.ID is set to nodeID for logging.
func (r *Runner) AddLink(nodeID string, rxID uint32, link *isotp.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.links[nodeID]; exists {
		return fmt.Errorf("runner: link %q already registered", nodeID)
	}
	link.ID = nodeID
	r.links[nodeID] = link
	r.byRxID[rxID] = link
	return nil
}

// RemoveLink unregisters a previously added link.
func (r *Runner) RemoveLink(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	link, ok := r.links[nodeID]
	if !ok {
		return
	}
	delete(r.links, nodeID)
	for rxID, l := range r.byRxID {
		if l == link {
			delete(r.byRxID, rxID)
		}
	}
}

// Handle implements can.FrameListener, routing an inbound frame to the
// link registered for its arbitration ID.
func (r *Runner) Handle(frame can.Frame) {
	r.mu.Lock()
	link, ok := r.byRxID[frame.ID]
	r.mu.Unlock()
	if !ok {
		return
	}
	link.OnFrame(frame.Data[:frame.DLC], int(frame.DLC))
}

// Run connects the bus, subscribes to inbound frames, and polls every
// registered link until ctx is cancelled. It blocks until then.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.bus.Connect(); err != nil {
		return fmt.Errorf("runner: connect: %w", err)
	}
	if err := r.bus.Subscribe(can.FrameListenerFunc(r.Handle)); err != nil {
		return fmt.Errorf("runner: subscribe: %w", err)
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.log.WithField("poll_interval", r.pollInterval).Info("runner started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("runner stopping")
			return r.bus.Disconnect()
		case <-ticker.C:
			r.pollAll()
		}
	}
}

func (r *Runner) pollAll() {
	r.mu.Lock()
	links := make([]*isotp.Link, 0, len(r.links))
	for _, l := range r.links {
		links = append(links, l)
	}
	r.mu.Unlock()

	for _, l := range links {
		l.Poll()
	}
}
