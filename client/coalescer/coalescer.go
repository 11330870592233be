package coalescer

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultWindow is the trailing-edge debounce window.
	DefaultWindow = 500 * time.Millisecond
)

// Field identifies an independently debounced value stream.
type Field string

const (
	FieldScore Field = "score"
	FieldMoves Field = "moves_remaining"
)

// StreamState tracks where a field stream is in its flush cycle.
type StreamState int

const (
	StreamIdle StreamState = iota
	StreamPendingFlush
	StreamFlushing
)

func (s StreamState) String() string {
	switch s {
	case StreamIdle:
		return "Idle"
	case StreamPendingFlush:
		return "PendingFlush"
	case StreamFlushing:
		return "Flushing"
	}
	return "Unknown"
}

// FlushFunc sends the coalesced value for a field stream.
type FlushFunc func(ctx context.Context, field Field, value int64) error

// ErrorFunc observes a failed flush. The coalescer does not retry; the
// next local change or poll corrects the drift.
type ErrorFunc func(field Field, err error)

// Coalescer debounces local value changes per field stream. Each Set
// restarts that stream's window; when the window elapses the latest
// value is flushed once. Streams never block each other.
type Coalescer struct {
	window  time.Duration
	flush   FlushFunc
	onError ErrorFunc

	mu      sync.Mutex
	streams map[Field]*stream
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type stream struct {
	state StreamState
	value int64
	// gen invalidates timers superseded by a later Set
	gen   uint64
	timer *time.Timer
	// flushMu serializes flushes so a stream's writes stay in order
	flushMu sync.Mutex
}

type NewCoalescerOptions struct {
	Window  time.Duration
	Flush   FlushFunc
	OnError ErrorFunc
}

func NewCoalescer(opts NewCoalescerOptions) *Coalescer {
	window := opts.Window
	if window == 0 {
		window = DefaultWindow
	}
	onError := opts.OnError
	if onError == nil {
		onError = func(Field, error) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coalescer{
		window:  window,
		flush:   opts.Flush,
		onError: onError,
		streams: make(map[Field]*stream),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Set records a new local value for the field and restarts its window.
func (c *Coalescer) Set(field Field, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	s, ok := c.streams[field]
	if !ok {
		s = &stream{}
		c.streams[field] = s
	}

	s.value = value
	s.state = StreamPendingFlush
	s.gen++
	gen := s.gen

	if s.timer != nil && s.timer.Stop() {
		// the superseded timer never fires, release its wait slot
		c.wg.Done()
	}
	c.wg.Add(1)
	s.timer = time.AfterFunc(c.window, func() {
		defer c.wg.Done()
		c.flushStream(field, gen)
	})
}

// Pending reports whether the field has an unflushed or in-flight local
// value. The poll reconciler gates server overwrites on this.
func (c *Coalescer) Pending(field Field) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.streams[field]
	return ok && s.state != StreamIdle
}

func (c *Coalescer) flushStream(field Field, gen uint64) {
	c.mu.Lock()
	s := c.streams[field]
	c.mu.Unlock()

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	c.mu.Lock()
	if c.stopped || s.gen != gen {
		c.mu.Unlock()
		return
	}
	value := s.value
	s.state = StreamFlushing
	s.timer = nil
	c.mu.Unlock()

	err := c.flush(c.ctx, field, value)

	c.mu.Lock()
	// a Set during the flush moved the stream back to PendingFlush;
	// only a quiet stream returns to Idle
	if s.gen == gen {
		s.state = StreamIdle
	}
	c.mu.Unlock()

	if err != nil {
		c.onError(field, err)
	}
}

// Stop cancels all windows and any in-flight flush. No flush starts
// after Stop returns.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	for _, s := range c.streams {
		if s.timer != nil {
			if s.timer.Stop() {
				c.wg.Done()
			}
			s.timer = nil
		}
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
