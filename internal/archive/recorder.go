package archive

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nerrad567/probekit/internal/events"
	"github.com/nerrad567/probekit/internal/mqtttester"
	"github.com/nerrad567/probekit/internal/tester"
	"github.com/nerrad567/probekit/internal/wstester"
)

const (
	defaultBufferSize = 256

	// maxBatch caps how many buffered records share one transaction.
	maxBatch = 64

	insertTimeout = 5 * time.Second

	// The breaker opens after this many consecutive failed writes and
	// lets one trial write through after breakerResetTimeout.
	breakerFailureThreshold = 5
	breakerResetTimeout     = 30 * time.Second
)

// Recorder buffers records and writes them from a single goroutine.
//
// Thread Safety:
//   - Record and the Attach helpers are safe for concurrent use.
//   - Record never blocks. A full buffer drops the record.
//
// Repeated write failures open a circuit breaker; while it is open batches
// are discarded without touching the repository.
type Recorder struct {
	repo    Repository
	logger  tester.Logger
	ch      chan Record
	breaker *gobreaker.CircuitBreaker

	mu        sync.RWMutex
	closed    bool
	retention *retention
	pruning   sync.WaitGroup

	dropped atomic.Int64
	written atomic.Int64
	failed  atomic.Int64
	pruned  atomic.Int64
	done    chan struct{}
}

// NewRecorder starts the writer goroutine. Call Close to flush and stop it.
func NewRecorder(repo Repository, bufferSize int, logger tester.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = tester.NopLogger{}
	}
	r := &Recorder{
		repo:   repo,
		logger: logger,
		ch:     make(chan Record, bufferSize),
		done:   make(chan struct{}),
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "archive",
		MaxRequests: 1,
		Timeout:     breakerResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("archive circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})
	go r.run()
	return r
}

// Record queues rec for writing. It reports false if the record was
// dropped because the buffer is full or the recorder is closed.
func (r *Recorder) Record(rec Record) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false
	}
	select {
	case r.ch <- rec:
		return true
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("archive buffer full, dropping records", "buffer", cap(r.ch))
		}
		return false
	}
}

// Dropped returns how many records were discarded because the buffer was
// full.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Written returns how many records reached the repository.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// Failed returns how many records were lost to write errors or an open
// breaker.
func (r *Recorder) Failed() int64 {
	return r.failed.Load()
}

// Close stops accepting records and stops retention, writes what is
// buffered and waits for the writer and any running prune to exit. It is
// safe to call more than once.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ch)
		if r.retention != nil && r.retention.timer != nil {
			r.retention.timer.Stop()
		}
	}
	r.mu.Unlock()
	r.pruning.Wait()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)

	batch := make([]Record, 0, maxBatch)
	for rec := range r.ch {
		batch = append(batch[:0], rec)
	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-r.ch:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		r.write(batch)
	}
}

func (r *Recorder) write(batch []Record) {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	_, err := r.breaker.Execute(func() (any, error) {
		return nil, r.repo.Insert(ctx, batch)
	})
	if err != nil {
		r.failed.Add(int64(len(batch)))
		if !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
			r.logger.Error("archive write failed", "records", len(batch), "error", err)
		}
		return
	}
	r.written.Add(int64(len(batch)))
}

// AttachWebSocket archives every sent and received WebSocket message.
// The returned function detaches the listeners.
func (r *Recorder) AttachWebSocket(t *wstester.Tester) (detach func()) {
	bus := t.Events()
	record := func(m wstester.Message) {
		r.Record(FromWebSocket(m))
	}
	sent := events.On(bus, wstester.EventMessageSent, record)
	received := events.On(bus, wstester.EventMessageReceived, record)

	return func() {
		events.Off(bus, wstester.EventMessageSent, sent)
		events.Off(bus, wstester.EventMessageReceived, received)
	}
}

// AttachMQTT archives every published and received MQTT message.
// The returned function detaches the listeners.
func (r *Recorder) AttachMQTT(t *mqtttester.Tester) (detach func()) {
	bus := t.Events()
	record := func(m mqtttester.Message) {
		r.Record(FromMQTT(m))
	}
	published := events.On(bus, mqtttester.EventMessagePublished, record)
	received := events.On(bus, mqtttester.EventMessageReceived, record)

	return func() {
		events.Off(bus, mqtttester.EventMessagePublished, published)
		events.Off(bus, mqtttester.EventMessageReceived, received)
	}
}

// FromWebSocket converts a WebSocket log entry. The endpoint is the one
// stamped on the message when it was sent or received.
func FromWebSocket(m wstester.Message) Record {
	return Record{
		ID:        m.ID,
		Protocol:  ProtocolWebSocket,
		Endpoint:  m.Endpoint,
		Type:      string(m.Type),
		Content:   m.Content,
		Format:    string(m.Format),
		Size:      m.Size,
		Timestamp: m.Timestamp,
	}
}

// FromMQTT converts an MQTT log entry.
func FromMQTT(m mqtttester.Message) Record {
	qos := m.QoS
	return Record{
		ID:        m.ID,
		Protocol:  ProtocolMQTT,
		Endpoint:  m.Endpoint,
		Type:      string(m.Type),
		Topic:     m.Topic,
		Content:   m.Payload,
		QoS:       &qos,
		Retain:    m.Retain,
		Size:      m.Size,
		Timestamp: m.Timestamp,
	}
}
