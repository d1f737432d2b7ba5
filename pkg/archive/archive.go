// Package archive implements the HUB's optional periodic export of
// committed event ranges to S3-compatible object storage, for external
// auditors who want a durable copy of the log outside the HUB's own
// store. Grounded on the teacher's pkg/blocks/store/s3 client
// construction, with the periodic-worker shape (Start/Stop around a
// single background goroutine) taken from pkg/sequencer's writer lane.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/iscc/iscc-hub/pkg/eventstore"
)

// Config parameterizes a Worker.
type Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string

	// Interval between export sweeps. Default: 5 minutes.
	Interval time.Duration

	// BatchSize is the number of events exported per archive segment.
	// Default: 1000.
	BatchSize int

	Logger *slog.Logger
}

// Worker periodically scans an eventstore.Store for events committed
// since its last export and uploads them to S3 as newline-delimited JSON
// segments, keyed by the sequence range they cover.
type Worker struct {
	store  eventstore.Store
	client *s3.Client
	bucket string
	prefix string

	interval  time.Duration
	batchSize int
	logger    *slog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu      sync.Mutex
	started bool
	lastSeq uint64
}

// New constructs a Worker from an existing S3 client. Use NewFromConfig
// when no client has been built yet.
func New(store eventstore.Store, client *s3.Client, cfg Config) *Worker {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		store:     store,
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// NewFromConfig builds an S3 client from cfg and returns a Worker using it.
func NewFromConfig(ctx context.Context, store eventstore.Store, cfg Config) (*Worker, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return New(store, client, cfg), nil
}

// Start launches the background export loop. Safe to call once.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop signals the export loop to exit and waits up to timeout for the
// current sweep to finish.
func (w *Worker) Stop(timeout time.Duration) {
	close(w.stopCh)
	select {
	case <-w.stoppedCh:
		w.logger.Info("archive: worker stopped")
	case <-time.After(timeout):
		w.logger.Warn("archive: worker stop timed out")
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stoppedCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error("archive: sweep failed", "error", err)
			}
		}
	}
}

// sweep exports every committed event past the worker's high-water mark,
// in BatchSize-sized segments, advancing the mark only after a segment
// uploads successfully.
func (w *Worker) sweep(ctx context.Context) error {
	for {
		events, err := w.store.Scan(ctx, w.lastSeq+1, w.batchSize)
		if err != nil {
			return fmt.Errorf("scan events: %w", err)
		}
		if len(events) == 0 {
			return nil
		}

		if err := w.uploadSegment(ctx, events); err != nil {
			return fmt.Errorf("upload segment: %w", err)
		}

		w.lastSeq = events[len(events)-1].Seq
		w.logger.Info("archive: exported segment",
			"from_seq", events[0].Seq, "to_seq", w.lastSeq, "count", len(events))

		if len(events) < w.batchSize {
			return nil
		}
	}
}

// uploadSegment writes events as newline-delimited JSON to a single S3
// object named by the sequence range it covers.
func (w *Worker) uploadSegment(ctx context.Context, events []*eventstore.Event) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encode event %d: %w", ev.Seq, err)
		}
	}

	key := w.segmentKey(events[0].Seq, events[len(events)-1].Seq)
	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}

	return nil
}

func (w *Worker) segmentKey(from, to uint64) string {
	return fmt.Sprintf("%sevents-%020d-%020d.ndjson", w.prefix, from, to)
}
