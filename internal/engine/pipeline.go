package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"golang.org/x/sync/semaphore"

	"github.com/tripfetch/tripfetch/internal/app"
	"github.com/tripfetch/tripfetch/internal/domain"
	"github.com/tripfetch/tripfetch/internal/fetcher"
)

// Orchestrator runs the fetch-then-extract pipeline for every enumerated
// target. Failures stay contained inside an item's pipeline; one bad item
// never cancels or delays its siblings.
type Orchestrator struct {
	ctx        *app.Context
	fetcher    app.Fetcher
	pool       app.ExtractPool
	reporter   app.Reporter
	enumerator domain.Enumerator
	store      app.HistoryStore // nil disables history
	policy     fetcher.Policy

	// sem caps in-flight downloads. Held for the whole retrying fetch of
	// one item, released before extraction starts.
	sem *semaphore.Weighted

	mu       sync.RWMutex
	runID    string
	statuses map[string]domain.ItemStatus
}

func NewOrchestrator(appCtx *app.Context, f app.Fetcher, pool app.ExtractPool,
	reporter app.Reporter, enum domain.Enumerator, store app.HistoryStore) *Orchestrator {
	return &Orchestrator{
		ctx:        appCtx,
		fetcher:    f,
		pool:       pool,
		reporter:   reporter,
		enumerator: enum,
		store:      store,
		policy: fetcher.Policy{
			Attempts:   appCtx.Config.Retry.Attempts,
			Backoff:    appCtx.Config.Retry.Backoff,
			MaxBackoff: appCtx.Config.Retry.MaxBackoff,
		},
		sem:      semaphore.NewWeighted(int64(appCtx.Config.Download.MaxConcurrent)),
		statuses: make(map[string]domain.ItemStatus),
	}
}

// ProcessAll launches every target's pipeline concurrently and returns
// once each one has reached a terminal state. The returned record holds
// exactly one outcome per target, in enumeration order.
func (o *Orchestrator) ProcessAll(ctx context.Context) (domain.RunRecord, error) {
	cfg := o.ctx.Config.Download

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return domain.RunRecord{}, fmt.Errorf("failed to create download dir: %w", err)
	}

	targets := o.enumerator.Targets()

	run := domain.RunRecord{
		ID:        ksuid.New().String(),
		StartedAt: time.Now(),
	}

	o.mu.Lock()
	o.runID = run.ID
	o.statuses = make(map[string]domain.ItemStatus, len(targets))
	for _, name := range targets {
		o.statuses[name] = domain.StatusPending
	}
	o.mu.Unlock()

	o.reporter.Info("Starting to process %d files (run %s)", len(targets), run.ID)

	outcomes := make([]domain.Outcome, len(targets))

	var wg sync.WaitGroup
	for i, name := range targets {
		item := domain.NewItem(name, cfg.BaseURL, cfg.Dir)

		wg.Add(1)
		go func(idx int, item domain.Item) {
			defer wg.Done()
			outcomes[idx] = o.ProcessItem(ctx, item)
		}(i, item)
	}
	wg.Wait()

	run.Outcomes = outcomes
	run.FinishedAt = time.Now()

	o.reporter.Info("Finished processing files: %s", summarize(run))

	if o.store != nil {
		if err := o.store.SaveRun(ctx, run); err != nil {
			o.ctx.Logger.Warn("failed to record run %s: %v", run.ID, err)
		}
	}

	return run, nil
}

// ProcessItem drives one item through download and extraction. It always
// returns a terminal outcome; nothing escapes to the caller, including
// panics from a misbehaving collaborator.
func (o *Orchestrator) ProcessItem(ctx context.Context, item domain.Item) (outcome domain.Outcome) {
	start := time.Now()
	attempts := 0

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic while processing %s: %v", item.Name, r)
			outcome = domain.Outcome{
				ItemName:     item.Name,
				Kind:         domain.OutcomeUnexpected,
				Attempts:     attempts,
				Duration:     time.Since(start),
				Err:          err,
				ErrorMessage: err.Error(),
			}
			o.setStatus(item.Name, domain.StatusFailed)
			o.reporter.Error("Unexpected error with %s: %v", item.Name, r)
		}
	}()

	archivePath, err := o.download(ctx, item, &attempts)
	if err != nil {
		return o.fail(item, err, attempts, start)
	}

	o.setStatus(item.Name, domain.StatusExtracting)

	if err := o.pool.Extract(ctx, archivePath, o.ctx.Config.Download.Dir); err != nil {
		return o.fail(item, err, attempts, start)
	}

	o.setStatus(item.Name, domain.StatusCompleted)
	o.reporter.Info("Processed %s", item.Name)

	return domain.Outcome{
		ItemName: item.Name,
		Kind:     domain.OutcomeSuccess,
		Attempts: attempts,
		Duration: time.Since(start),
	}
}

// download runs the retrying fetch under a download slot. The slot
// brackets only the network phase; extraction runs after release.
func (o *Orchestrator) download(ctx context.Context, item domain.Item, attempts *int) (string, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer o.sem.Release(1)

	o.setStatus(item.Name, domain.StatusDownloading)

	return fetcher.Retry(ctx, o.policy, func(ctx context.Context) (string, error) {
		*attempts++
		return o.fetcher.Fetch(ctx, item)
	})
}

// fail reports an item failure in its taxonomy-specific form and builds
// the terminal outcome.
func (o *Orchestrator) fail(item domain.Item, err error, attempts int, start time.Time) domain.Outcome {
	kind := domain.Classify(err)

	switch kind {
	case domain.OutcomeNotFound:
		o.reporter.Error("%s not found on the server.", item.Name)
	case domain.OutcomeRetriesExhausted:
		// An exhausted run can still wrap a not-found cause if the fetch
		// races server-side deletion; callers care which it was.
		if errors.Is(err, domain.ErrNotFound) {
			o.reporter.Error("%s not found after retries.", item.Name)
		} else {
			o.reporter.Error("Unexpected retry error with %s: %v", item.Name, err)
		}
	case domain.OutcomeConnectionFailure:
		o.reporter.Error("Connection error with %s: %v", item.Name, err)
	default:
		o.reporter.Error("Unexpected error with %s: %v", item.Name, err)
	}

	o.setStatus(item.Name, domain.StatusFailed)

	return domain.Outcome{
		ItemName:     item.Name,
		Kind:         kind,
		Attempts:     attempts,
		Duration:     time.Since(start),
		Err:          err,
		ErrorMessage: err.Error(),
	}
}

func (o *Orchestrator) setStatus(name string, status domain.ItemStatus) {
	o.mu.Lock()
	o.statuses[name] = status
	o.mu.Unlock()
}

// RunID returns the identifier of the current (or most recent) run.
func (o *Orchestrator) RunID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.runID
}

// Snapshot returns the current state of every item, sorted by name.
func (o *Orchestrator) Snapshot() []ItemState {
	o.mu.RLock()
	states := make([]ItemState, 0, len(o.statuses))
	for name, status := range o.statuses {
		states = append(states, ItemState{Name: name, Status: status})
	}
	o.mu.RUnlock()

	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	return states
}

func summarize(run domain.RunRecord) string {
	counts := run.Counts()
	return fmt.Sprintf("%d ok, %d not found, %d exhausted, %d connection, %d unexpected",
		counts[domain.OutcomeSuccess],
		counts[domain.OutcomeNotFound],
		counts[domain.OutcomeRetriesExhausted],
		counts[domain.OutcomeConnectionFailure],
		counts[domain.OutcomeUnexpected])
}
