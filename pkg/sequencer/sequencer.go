// Package sequencer implements the HUB's single writer lane: the atomic
// critical section that mints (seq, ts_µs, iscc_id) and commits exactly one
// event per admitted note. Gap-freeness and strict timestamp monotonicity
// depend on every commit passing through one goroutine, one at a time — see
// spec §5's "single writer lane" requirement.
package sequencer

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iscc/iscc-hub/pkg/codec"
	"github.com/iscc/iscc-hub/pkg/eventstore"
	"github.com/iscc/iscc-hub/pkg/metrics"
	"github.com/iscc/iscc-hub/pkg/note"
)

// maxTsMicros is the 52-bit ceiling a minted timestamp must respect.
const maxTsMicros = 1<<52 - 1

// Config parameterizes a Sequencer.
type Config struct {
	// ServerID is this HUB's 12-bit identifier, packed into every minted
	// ISCC-ID and checked against the note's nonce prefix upstream.
	ServerID uint16

	// QueueSize bounds the writer lane's request backlog; a full queue
	// surfaces ErrBusy to the submitter rather than blocking indefinitely.
	// Default: 256.
	QueueSize int

	// Now returns the current time, overridable in tests. Nil means
	// time.Now().
	Now func() time.Time

	Logger *slog.Logger

	// Metrics observes queue depth and commit latency. Nil disables
	// collection with zero overhead.
	Metrics metrics.WriterLaneMetrics
}

// request is one pending Submit call queued to the writer goroutine.
type request struct {
	ctx      context.Context
	n        *note.Note
	resultCh chan result
}

type result struct {
	event *eventstore.Event
	err   error
}

// Sequencer owns the single writer lane over an eventstore.Store.
type Sequencer struct {
	store    eventstore.Store
	serverID uint16
	now      func() time.Time
	logger   *slog.Logger
	metrics  metrics.WriterLaneMetrics

	queue     chan request
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu      sync.Mutex
	started bool
	fatal   error // set once CLOCK_EXHAUSTED fires; every later Submit fails fast
}

// New creates a Sequencer bound to store. Call Start before Submit.
func New(store eventstore.Store, cfg Config) *Sequencer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sequencer{
		store:     store,
		serverID:  cfg.ServerID,
		now:       now,
		logger:    logger,
		metrics:   cfg.Metrics,
		queue:     make(chan request, cfg.QueueSize),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start launches the writer goroutine. Safe to call once.
func (s *Sequencer) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
}

// Stop drains the queue and stops the writer goroutine, waiting up to
// timeout for in-flight and queued requests to finish.
func (s *Sequencer) Stop(timeout time.Duration) {
	close(s.stopCh)
	select {
	case <-s.stoppedCh:
		s.logger.Info("sequencer: writer lane stopped")
	case <-time.After(timeout):
		s.logger.Warn("sequencer: writer lane stop timed out")
	}
}

// Submit hands a validated note to the writer lane and blocks until it is
// committed or rejected. It is safe to call concurrently; admission order
// across concurrent callers is whatever order the channel delivers them in.
func (s *Sequencer) Submit(ctx context.Context, n *note.Note) (*eventstore.Event, error) {
	s.mu.Lock()
	if s.fatal != nil {
		err := s.fatal
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	req := request{ctx: ctx, n: n, resultCh: make(chan result, 1)}

	select {
	case s.queue <- req:
		metrics.SetQueueDepth(s.metrics, len(s.queue))
	default:
		return nil, ErrBusy
	}

	select {
	case res := <-req.resultCh:
		return res.event, res.err
	case <-ctx.Done():
		return nil, ErrCancelled
	}
}

// run is the single writer goroutine. Every commit passes through here,
// one at a time, in channel order.
func (s *Sequencer) run() {
	defer close(s.stoppedCh)

	for {
		select {
		case <-s.stopCh:
			s.drain()
			return
		case req := <-s.queue:
			s.handle(req)
		}
	}
}

func (s *Sequencer) drain() {
	for {
		select {
		case req := <-s.queue:
			s.handle(req)
		default:
			return
		}
	}
}

func (s *Sequencer) handle(req request) {
	if req.ctx.Err() != nil {
		req.resultCh <- result{err: ErrCancelled}
		return
	}

	s.mu.Lock()
	fatal := s.fatal
	s.mu.Unlock()
	if fatal != nil {
		req.resultCh <- result{err: fatal}
		return
	}

	start := s.now()
	ev, err := s.commit(req.ctx, req.n)
	metrics.RecordCommit(s.metrics, s.now().Sub(start))
	metrics.SetQueueDepth(s.metrics, len(s.queue))
	req.resultCh <- result{event: ev, err: err}
}

// commit performs spec §4.3's algorithm: check nonce, read tail, mint
// (ts_µs, seq, iscc_id), append, return the committed event.
func (s *Sequencer) commit(ctx context.Context, n *note.Note) (*eventstore.Event, error) {
	if existing, err := s.store.GetByNonce(ctx, n.Nonce); err == nil {
		if !bytes.Equal(existing.NoteRaw, n.Raw) {
			return nil, &ConflictError{Existing: existing}
		}
		return nil, &DuplicateNonceError{Existing: existing}
	} else if !isNotFound(err) {
		return nil, &TransientError{Err: err}
	}

	tail, err := s.store.Tail(ctx)
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	tsMicros := uint64(s.now().UnixMicro())
	if tail.LastTsMicros+1 > tsMicros {
		tsMicros = tail.LastTsMicros + 1
	}
	if tsMicros > maxTsMicros {
		s.mu.Lock()
		s.fatal = ErrClockExhausted
		s.mu.Unlock()
		s.logger.Error("sequencer: clock exhausted", "ts_micros", tsMicros)
		metrics.RecordClockExhausted(s.metrics)
		return nil, ErrClockExhausted
	}

	seq := tail.LastSeq + 1
	isccID, err := codec.EncodeIsccID(tsMicros, s.serverID)
	if err != nil {
		return nil, &TransientError{Err: err}
	}

	ev := &eventstore.Event{
		Seq:        seq,
		IsccID:     isccID,
		TsMicros:   tsMicros,
		ServerID:   s.serverID,
		NoteRaw:    n.Raw,
		Pubkey:     n.Signature.Pubkey,
		Nonce:      n.Nonce,
		Datahash:   n.Datahash,
		IsccCode:   n.IsccCode,
		Units:      n.Units,
		Metahash:   n.Metahash,
		Gateway:    n.Gateway,
		ReceivedAt: s.now(),
	}

	if err := s.store.Append(ctx, ev); err != nil {
		if storeErr, ok := err.(*eventstore.StoreError); ok && storeErr.Code == eventstore.ErrDuplicateNonce {
			if existing, getErr := s.store.GetByNonce(ctx, n.Nonce); getErr == nil {
				if !bytes.Equal(existing.NoteRaw, n.Raw) {
					return nil, &ConflictError{Existing: existing}
				}
				return nil, &DuplicateNonceError{Existing: existing}
			}
		}
		return nil, &TransientError{Err: err}
	}

	return ev, nil
}

func isNotFound(err error) bool {
	storeErr, ok := err.(*eventstore.StoreError)
	return ok && storeErr.Code == eventstore.ErrNotFound
}
