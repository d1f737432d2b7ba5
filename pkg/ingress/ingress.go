// Package ingress is the HUB's declaration façade: the narrow orchestration
// layer that turns a raw request body into a committed event and signed
// receipt, per spec.md §4.6. Grounded on the teacher's handler-calls-service
// shape (pkg/api/handlers/auth.go) and pkg/registry.Registry's role as a
// thin façade in front of several subsystems — here, validator, sequencer,
// and receipt issuer.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iscc/iscc-hub/pkg/eventstore"
	"github.com/iscc/iscc-hub/pkg/hubidentity"
	"github.com/iscc/iscc-hub/pkg/metrics"
	"github.com/iscc/iscc-hub/pkg/note"
	"github.com/iscc/iscc-hub/pkg/receipt"
	"github.com/iscc/iscc-hub/pkg/sequencer"
)

// RateLimiter is an optional pre-validation hook. Returning a non-nil error
// aborts the declaration before any parsing occurs; the ingress wraps it as
// KindBusy.
type RateLimiter func(ctx context.Context) error

// FeePolicy is an optional pre-validation hook for fee collection or quota
// enforcement; it receives the raw request body before it is parsed.
// Returning a non-nil error aborts the declaration; the ingress wraps it as
// KindInternal.
type FeePolicy func(ctx context.Context, raw []byte) error

// Config wires the façade's collaborators.
type Config struct {
	Store      eventstore.Store
	Sequencer  *sequencer.Sequencer
	Identity   *hubidentity.Identity
	Validation note.ValidationConfig

	RateLimiter RateLimiter
	FeePolicy   FeePolicy

	// Metrics observes accept/reject/fail counts and declaration
	// latency. Nil disables collection with zero overhead.
	Metrics metrics.DeclarationMetrics
}

// Ingress accepts raw declaration bytes and drives them through validation,
// sequencing, and receipt issuance.
type Ingress struct {
	store      eventstore.Store
	seq        *sequencer.Sequencer
	identity   *hubidentity.Identity
	validation note.ValidationConfig

	rateLimiter RateLimiter
	feePolicy   FeePolicy
	metrics     metrics.DeclarationMetrics
}

// New builds an Ingress façade from cfg.
func New(cfg Config) *Ingress {
	return &Ingress{
		store:       cfg.Store,
		seq:         cfg.Sequencer,
		identity:    cfg.Identity,
		validation:  cfg.Validation,
		rateLimiter: cfg.RateLimiter,
		feePolicy:   cfg.FeePolicy,
		metrics:     cfg.Metrics,
	}
}

// Result is the outcome of a successful Declare call.
type Result struct {
	Receipt *receipt.Receipt
	Event   *eventstore.Event

	// Replayed is true when raw was an identical resubmission of an
	// already-admitted note: the caller should surface 200 OK with the
	// original receipt rather than 201 Created.
	Replayed bool
}

// Declare runs the state machine from spec.md §4.6:
// Received -> Validated -> Sequenced -> Receipted -> Returned, with
// Rejected(reason) from any pre-terminal state surfaced as an error.
//
// The returned error is either a *note.RejectionError (validation-stage
// rejection), a *sequencer.DuplicateNonceError (never returned directly —
// folded into a Replayed Result instead), or an *ingress.Error. A
// *sequencer.ConflictError — same nonce, different note content — surfaces
// as an *ingress.Error with KindConflict rather than a Replayed Result.
func (ig *Ingress) Declare(ctx context.Context, raw []byte) (*Result, error) {
	requestID := uuid.NewString()
	start := time.Now()

	if ig.rateLimiter != nil {
		if err := ig.rateLimiter(ctx); err != nil {
			metrics.RecordFailed(ig.metrics, string(KindBusy))
			return nil, &Error{Kind: KindBusy, Err: err}
		}
	}

	if ig.feePolicy != nil {
		if err := ig.feePolicy(ctx, raw); err != nil {
			metrics.RecordFailed(ig.metrics, string(KindInternal))
			return nil, &Error{Kind: KindInternal, Err: fmt.Errorf("request %s: fee policy: %w", requestID, err)}
		}
	}

	n, err := note.Validate(raw, ig.validation)
	if err != nil {
		if rejectErr, ok := err.(*note.RejectionError); ok {
			metrics.RecordRejected(ig.metrics, string(rejectErr.Kind))
		}
		return nil, err
	}

	ev, err := ig.seq.Submit(ctx, n)
	if err != nil {
		return ig.handleSequencerError(err)
	}

	r, err := receipt.Issue(ev, ig.identity)
	if err != nil {
		metrics.RecordFailed(ig.metrics, string(KindInternal))
		return nil, &Error{Kind: KindInternal, Err: fmt.Errorf("request %s: issue receipt: %w", requestID, err)}
	}

	metrics.RecordAccepted(ig.metrics, false, time.Since(start))
	return &Result{Receipt: r, Event: ev}, nil
}

func (ig *Ingress) handleSequencerError(err error) (*Result, error) {
	var conflict *sequencer.ConflictError
	if errors.As(err, &conflict) {
		metrics.RecordFailed(ig.metrics, string(KindConflict))
		return nil, &Error{Kind: KindConflict, Err: err}
	}

	var dup *sequencer.DuplicateNonceError
	if errors.As(err, &dup) {
		r, issueErr := receipt.Issue(dup.Existing, ig.identity)
		if issueErr != nil {
			metrics.RecordFailed(ig.metrics, string(KindInternal))
			return nil, &Error{Kind: KindInternal, Err: fmt.Errorf("reissue receipt for replay: %w", issueErr)}
		}
		metrics.RecordAccepted(ig.metrics, true, 0)
		return &Result{Receipt: r, Event: dup.Existing, Replayed: true}, nil
	}

	switch {
	case errors.Is(err, sequencer.ErrBusy):
		metrics.RecordFailed(ig.metrics, string(KindBusy))
		return nil, &Error{Kind: KindBusy, Err: err}
	case errors.Is(err, sequencer.ErrCancelled):
		metrics.RecordFailed(ig.metrics, string(KindCancelled))
		return nil, &Error{Kind: KindCancelled, Err: err}
	case errors.Is(err, sequencer.ErrClockExhausted):
		metrics.RecordFailed(ig.metrics, string(KindClockExhausted))
		return nil, &Error{Kind: KindClockExhausted, Err: err}
	}

	var transient *sequencer.TransientError
	if errors.As(err, &transient) {
		metrics.RecordFailed(ig.metrics, string(KindTransient))
		return nil, &Error{Kind: KindTransient, Err: err}
	}

	metrics.RecordFailed(ig.metrics, string(KindInternal))
	return nil, &Error{Kind: KindInternal, Err: err}
}

// LookupByNonce resolves the idempotency case at the HTTP layer without
// going through the writer lane, for handlers that want to short-circuit a
// resubmission check before paying validation cost. Declare already
// performs this check internally via the sequencer; this is exposed for
// GET-style lookups.
func (ig *Ingress) LookupByNonce(ctx context.Context, nonce string) (*eventstore.Event, error) {
	return ig.store.GetByNonce(ctx, nonce)
}
