// Package download materializes an artifact plan on disk: it verifies what
// is already present, fetches the rest across a bounded worker pool with
// retry, and reports every failure in one aggregate error. Files are written
// atomically (temp then rename) so a crash can never leave a partial file
// posing as a valid cached artifact.
package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/vk/launchcraft/internal/ctxlog"
	"github.com/vk/launchcraft/internal/fsutil"
	"github.com/vk/launchcraft/internal/plan"
	"github.com/vk/launchcraft/internal/remote"
	"github.com/vk/launchcraft/internal/verify"
)

// Defaults for the worker pool and retry budget.
const (
	DefaultWorkers     = 8
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 500 * time.Millisecond
)

// ExpandFunc turns the materialized asset index bytes into the second-phase
// asset refs. It is supplied by the planner; the orchestrator only knows
// that these refs must not be scheduled before the index verifies.
type ExpandFunc func(ctx context.Context, indexData []byte) ([]plan.Ref, error)

// Report summarizes a fully successful run.
type Report struct {
	Verified     int
	Fetched      int
	BytesFetched int64
	BytesReused  int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithMaxAttempts sets the per-task attempt cap.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithBackoffBase sets the first retry delay; each subsequent delay doubles.
func WithBackoffBase(d time.Duration) Option {
	return func(o *Orchestrator) { o.backoffBase = d }
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// Orchestrator executes artifact plans.
type Orchestrator struct {
	client      *remote.Client
	workers     int
	maxAttempts int
	backoffBase time.Duration
	progress    ProgressFunc
}

// NewOrchestrator builds an Orchestrator over the shared HTTP client.
func NewOrchestrator(client *remote.Client, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:      client,
		workers:     DefaultWorkers,
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run materializes every ref in the plan. When expand is non-nil and the
// plan contains an asset index, the index's object refs are scheduled into
// the same pool as soon as the index task verifies. The returned error is
// ctx.Err() on cooperative cancellation, a *DownloadFailedError enumerating
// every exhausted task otherwise; successfully fetched files always stay in
// place for a future retry.
func (o *Orchestrator) Run(ctx context.Context, pl *plan.Plan, expand ExpandFunc) (*Report, error) {
	logger := ctxlog.FromContext(ctx)

	tasks := make([]*Task, 0, len(pl.Refs))
	var indexTask *Task
	for _, ref := range pl.Refs {
		t := &Task{Ref: ref}
		tasks = append(tasks, t)
		if ref.Kind == plan.KindAssetIndex {
			indexTask = t
		}
	}

	queue := make(chan *Task)
	indexDone := make(chan struct{})
	if indexTask == nil || expand == nil {
		close(indexDone)
		indexDone = nil
	}

	var wg sync.WaitGroup
	logger.Debug("Starting download worker pool.", "workers", o.workers, "tasks", len(tasks))
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for t := range queue {
				o.runTask(ctx, t, workerID)
				if t == indexTask && indexDone != nil {
					close(indexDone)
				}
			}
		}(i)
	}

	// The feeder owns the queue. Phase one is the plan as given; phase two
	// (asset objects) is appended once the index task settles.
	var assetTasks []*Task
	feedErrCh := make(chan error, 1)
	go func() {
		defer close(queue)
		for _, t := range tasks {
			select {
			case queue <- t:
			case <-ctx.Done():
				return
			}
		}
		if indexDone == nil {
			feedErrCh <- nil
			return
		}
		select {
		case <-indexDone:
		case <-ctx.Done():
			return
		}
		if indexTask.State() != Verified {
			// Index failed; its own task error is reported, the asset
			// phase simply never happens.
			feedErrCh <- nil
			return
		}
		data, err := os.ReadFile(indexTask.Ref.Path)
		if err != nil {
			feedErrCh <- fmt.Errorf("reading verified asset index: %w", err)
			return
		}
		refs, err := expand(ctx, data)
		if err != nil {
			feedErrCh <- err
			return
		}
		logger.Debug("Scheduling asset phase.", "objects", len(refs))
		for _, ref := range refs {
			t := &Task{Ref: ref}
			assetTasks = append(assetTasks, t)
			select {
			case queue <- t:
			case <-ctx.Done():
				return
			}
		}
		feedErrCh <- nil
	}()

	wg.Wait()

	if err := ctx.Err(); err != nil {
		logger.Warn("Download run cancelled.")
		return nil, err
	}

	var feedErr error
	select {
	case feedErr = <-feedErrCh:
	default:
	}
	if feedErr != nil {
		return nil, feedErr
	}

	report := &Report{}
	var failed []FailedArtifact
	for _, t := range append(tasks, assetTasks...) {
		switch t.State() {
		case Verified:
			if t.fetched > 0 {
				report.Fetched++
				report.BytesFetched += t.fetched
			} else {
				report.Verified++
				if t.Ref.Size > 0 {
					report.BytesReused += t.Ref.Size
				}
			}
		case Failed:
			failed = append(failed, FailedArtifact{ID: t.Ref.ID(), Err: t.Err()})
		}
	}
	if len(failed) > 0 {
		return nil, &DownloadFailedError{Failed: failed}
	}

	logger.Info("All artifacts materialized.",
		"reused", report.Verified,
		"fetched", report.Fetched,
		"bytes_fetched", humanize.Bytes(uint64(report.BytesFetched)),
		"bytes_reused", humanize.Bytes(uint64(report.BytesReused)))
	return report, nil
}

// runTask drives one task through its state machine.
func (o *Orchestrator) runTask(ctx context.Context, t *Task, workerID int) {
	logger := ctxlog.FromContext(ctx).With("worker", workerID, "artifact", t.Ref.ID())

	if ctx.Err() != nil {
		return
	}

	t.setState(Verifying)
	o.emit(Event{Ref: t.Ref, State: Verifying})

	err := verify.File(t.Ref.Path, t.Ref.Size, t.Ref.SHA1)
	if err == nil {
		if copyErr := o.mirrorCopies(t.Ref); copyErr != nil {
			t.fail(copyErr)
			o.emit(Event{Ref: t.Ref, State: Failed, Err: copyErr})
			return
		}
		t.setState(Verified)
		o.emit(Event{Ref: t.Ref, State: Verified})
		logger.Debug("Artifact verified from cache.")
		return
	}
	if !errors.Is(err, fs.ErrNotExist) {
		logger.Debug("Cached artifact invalid, refetching.", "reason", err)
	}

	t.setState(Fetching)
	o.emit(Event{Ref: t.Ref, State: Fetching})

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		t.attempts = attempt
		fetchErr := o.fetchOnce(ctx, t)
		if fetchErr == nil {
			t.setState(Verified)
			o.emit(Event{Ref: t.Ref, State: Verified, Attempt: attempt, Bytes: t.fetched})
			logger.Debug("Artifact fetched.", "attempt", attempt, "bytes", t.fetched)
			return
		}
		if ctx.Err() != nil {
			t.fail(ctx.Err())
			return
		}
		logger.Warn("Fetch attempt failed.", "attempt", attempt, "error", fetchErr)
		if attempt == o.maxAttempts {
			t.fail(fetchErr)
			o.emit(Event{Ref: t.Ref, State: Failed, Attempt: attempt, Err: fetchErr})
			return
		}
		if !sleepBackoff(ctx, o.backoffBase<<(attempt-1)) {
			t.fail(ctx.Err())
			return
		}
	}
}

// fetchOnce performs one network attempt: fetch, verify payload, write
// atomically, mirror any legacy copies.
func (o *Orchestrator) fetchOnce(ctx context.Context, t *Task) error {
	data, err := o.client.GetBytes(ctx, t.Ref.URL)
	if err != nil {
		return err
	}
	if t.Ref.Size >= 0 && int64(len(data)) != t.Ref.Size {
		return &verify.IntegrityError{
			Path:     t.Ref.Path,
			Expected: fmt.Sprintf("size %d", t.Ref.Size),
			Actual:   fmt.Sprintf("size %d", len(data)),
		}
	}
	if err := verify.Bytes(data, t.Ref.SHA1); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(t.Ref.Path, data, 0o644); err != nil {
		return err
	}
	t.fetched = int64(len(data))
	return o.mirrorCopies(t.Ref)
}

// mirrorCopies materializes the name-addressed duplicates legacy asset
// indexes require alongside the content-addressed object.
func (o *Orchestrator) mirrorCopies(ref plan.Ref) error {
	for _, dst := range ref.CopyTo {
		if verify.File(dst, ref.Size, ref.SHA1) == nil {
			continue
		}
		data, err := os.ReadFile(ref.Path)
		if err != nil {
			return err
		}
		if err := fsutil.WriteFileAtomic(dst, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// fail marks the task terminally failed.
func (t *Task) fail(err error) {
	t.err = err
	t.setState(Failed)
}

// emit delivers a progress event when a callback is registered.
func (o *Orchestrator) emit(ev Event) {
	if o.progress != nil {
		o.progress(ev)
	}
}

// sleepBackoff waits for d or until the context is cancelled. It reports
// whether the full delay elapsed.
func sleepBackoff(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
