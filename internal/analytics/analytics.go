// Package analytics ships deployment events to an external collector.
// Delivery is best effort: events are queued on a bounded channel and
// dropped when the queue is full, so callers never block on the
// collector being slow or down.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/solfoundry/solforge/internal/observability/metrics"
)

// Event is one deployment lifecycle event.
type Event struct {
	Name      string         `json:"event"`
	UserID    string         `json:"userId,omitempty"`
	ChainID   int64          `json:"chainId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Props     map[string]any `json:"props,omitempty"`
}

// Tracker posts events to the collector from a single background worker.
type Tracker struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger

	queue chan Event
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// New creates a tracker. An empty endpoint disables tracking entirely;
// Track becomes a no-op.
func New(endpoint string, queueSize int, timeout time.Duration, logger *slog.Logger) *Tracker {
	t := &Tracker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
	if endpoint == "" {
		return t
	}

	t.queue = make(chan Event, queueSize)
	t.wg.Add(1)
	go t.run()
	return t
}

// Track enqueues an event. It never blocks: when the queue is full the
// event is dropped and counted.
func (t *Tracker) Track(event Event) {
	if t.queue == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case t.queue <- event:
	default:
		metrics.AnalyticsDropped()
		t.logger.Debug("analytics queue full, event dropped", "event", event.Name)
	}
}

// Close stops accepting events and drains what is already queued.
func (t *Tracker) Close() {
	if t.queue == nil {
		return
	}
	t.closeOnce.Do(func() {
		close(t.queue)
	})
	t.wg.Wait()
}

func (t *Tracker) run() {
	defer t.wg.Done()
	for event := range t.queue {
		t.send(event)
	}
}

func (t *Tracker) send(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		t.logger.Warn("encoding analytics event failed", "event", event.Name, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		t.endpoint, bytes.NewReader(body))
	if err != nil {
		t.logger.Warn("building analytics request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("analytics delivery failed", "event", event.Name, "error", err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		t.logger.Debug("analytics collector rejected event",
			"event", event.Name, "status", resp.StatusCode)
	}
}
