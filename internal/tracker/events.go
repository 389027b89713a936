package tracker

import (
	"sync"
	"time"
)

// EventType tags entries on the progress event stream.
type EventType string

const (
	EventJobStarted      EventType = "job_started"
	EventProgressChanged EventType = "progress_changed"
	EventJobCompleted    EventType = "job_completed"
	EventJobFailed       EventType = "job_failed"
	EventJobCancelled    EventType = "job_cancelled"
)

// Event is one notification on the progress stream. Progress snapshots
// the job at emission time, including on terminal events where the job
// has already left the registry. OutputPath and Duration accompany
// completions, Error and Duration failures.
type Event struct {
	Sequence   uint64        `json:"seq"`
	Type       EventType     `json:"type"`
	JobID      string        `json:"job_id"`
	Timestamp  time.Time     `json:"ts"`
	Progress   *Progress     `json:"progress,omitempty"`
	OutputPath string        `json:"output_path,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// hub buffers published events without bound and hands them to the single
// consumer in publish order. Producers never block; the dispatcher blocks
// only on the consumer.
type hub struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Event
	nextSeq uint64
	closed  bool
	out     chan Event
}

func newHub() *hub {
	h := &hub{out: make(chan Event)}
	h.cond = sync.NewCond(&h.mu)
	go h.dispatch()
	return h
}

func (h *hub) publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	h.pending = append(h.pending, evt)
	h.cond.Signal()
}

// close stops intake. Events published before close are still delivered,
// then the outbound channel closes.
func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.cond.Broadcast()
	h.mu.Unlock()
}

func (h *hub) dispatch() {
	defer close(h.out)
	for {
		h.mu.Lock()
		for len(h.pending) == 0 && !h.closed {
			h.cond.Wait()
		}
		batch := h.pending
		h.pending = nil
		done := h.closed && len(batch) == 0
		h.mu.Unlock()

		if done {
			return
		}
		for _, evt := range batch {
			h.out <- evt
		}
	}
}
