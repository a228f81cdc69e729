package engine

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripfetch/tripfetch/internal/app"
	"github.com/tripfetch/tripfetch/internal/domain"
	"github.com/tripfetch/tripfetch/internal/extract"
	"github.com/tripfetch/tripfetch/internal/fetcher"
	"github.com/tripfetch/tripfetch/internal/infra/config"
	"github.com/tripfetch/tripfetch/internal/infra/logger"
)

// recordingReporter captures reported events for assertions.
type recordingReporter struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (r *recordingReporter) Info(format string, v ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, fmt.Sprintf(format, v...))
}

func (r *recordingReporter) Error(format string, v ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, fmt.Sprintf(format, v...))
}

func (r *recordingReporter) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.infos) + len(r.errors)
}

func zipBytes(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func testConfig(t *testing.T, baseURL string, downloadCap int) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Download.BaseURL = baseURL
	cfg.Download.Dir = t.TempDir()
	cfg.Download.MaxConcurrent = downloadCap
	cfg.Retry.Backoff = 10 * time.Millisecond
	cfg.Retry.MaxBackoff = 40 * time.Millisecond
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, f app.Fetcher,
	names []string, reporter *recordingReporter) *Orchestrator {
	t.Helper()

	log, err := logger.New("", logger.LevelError, false)
	require.NoError(t, err)

	pool := extract.NewPool(cfg.Extract.Workers, extract.NewZipExtractor())
	t.Cleanup(pool.Close)

	return NewOrchestrator(app.NewContext(cfg, log), f, pool,
		reporter, domain.NewStaticEnumerator(names), nil)
}

func TestProcessAllMixedOutcomes(t *testing.T) {
	goodZip := zipBytes(t, map[string]string{"trips.csv": "data"})

	var flakyCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/good"):
			w.Write(goodZip)
		case r.URL.Path == "/missing.zip":
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/broken.zip":
			w.WriteHeader(http.StatusServiceUnavailable)
		case r.URL.Path == "/flaky.zip":
			// First attempt fails, second succeeds.
			if flakyCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write(goodZip)
		case r.URL.Path == "/corrupt.zip":
			w.Write(append([]byte{0x50, 0x4B, 0x03, 0x04}, []byte("garbage")...))
		}
	}))
	defer server.Close()

	names := []string{"good1.zip", "good2.zip", "missing.zip", "broken.zip", "flaky.zip", "corrupt.zip"}
	cfg := testConfig(t, server.URL, 5)
	reporter := &recordingReporter{}
	o := newTestOrchestrator(t, cfg, fetcher.New(fetcher.Options{VerifyTLS: true}), names, reporter)

	run, err := o.ProcessAll(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Outcomes, len(names), "exactly one outcome per item")

	byName := make(map[string]domain.Outcome, len(run.Outcomes))
	for _, oc := range run.Outcomes {
		byName[oc.ItemName] = oc
	}

	assert.Equal(t, domain.OutcomeSuccess, byName["good1.zip"].Kind)
	assert.Equal(t, domain.OutcomeSuccess, byName["good2.zip"].Kind)
	assert.Equal(t, domain.OutcomeNotFound, byName["missing.zip"].Kind)
	assert.Equal(t, domain.OutcomeRetriesExhausted, byName["broken.zip"].Kind)
	assert.Equal(t, domain.OutcomeSuccess, byName["flaky.zip"].Kind)
	assert.Equal(t, domain.OutcomeUnexpected, byName["corrupt.zip"].Kind)

	// Attempt accounting: 404 must not retry, transient must retry once.
	assert.Equal(t, 1, byName["missing.zip"].Attempts)
	assert.Equal(t, 2, byName["flaky.zip"].Attempts)
	assert.Equal(t, cfg.Retry.Attempts, byName["broken.zip"].Attempts)

	// One per-item event plus the start and finish lines.
	assert.Equal(t, len(names)+2, reporter.eventCount())

	// The corrupt archive must survive its failed extraction.
	_, statErr := os.Stat(filepath.Join(cfg.Download.Dir, "corrupt.zip"))
	assert.NoError(t, statErr)

	// Successful archives are extracted and removed.
	_, statErr = os.Stat(filepath.Join(cfg.Download.Dir, "good1.zip"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(cfg.Download.Dir, "trips.csv"))
	assert.NoError(t, statErr)

	assert.True(t, run.Failed())
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

// gaugeFetcher counts concurrently running fetches.
type gaugeFetcher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (g *gaugeFetcher) Fetch(ctx context.Context, item domain.Item) (string, error) {
	cur := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)

	for {
		peak := g.peak.Load()
		if cur <= peak || g.peak.CompareAndSwap(peak, cur) {
			break
		}
	}

	time.Sleep(20 * time.Millisecond)
	return "", fmt.Errorf("%w: simulated", domain.ErrNotFound)
}

func TestProcessAllBoundsDownloadConcurrency(t *testing.T) {
	const downloadCap = 3
	const items = 12

	names := make([]string, items)
	for i := range names {
		names[i] = fmt.Sprintf("archive_%02d.zip", i)
	}

	cfg := testConfig(t, "http://unused", downloadCap)
	g := &gaugeFetcher{}
	o := newTestOrchestrator(t, cfg, g, names, &recordingReporter{})

	run, err := o.ProcessAll(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Outcomes, items)

	assert.LessOrEqual(t, g.peak.Load(), int32(downloadCap),
		"in-flight downloads must never exceed the configured cap")
	assert.Greater(t, g.peak.Load(), int32(1), "downloads should overlap")
}

// panicFetcher blows up to prove failures stay contained per item.
type panicFetcher struct{}

func (panicFetcher) Fetch(context.Context, domain.Item) (string, error) {
	panic("fetcher exploded")
}

func TestProcessItemContainsPanic(t *testing.T) {
	cfg := testConfig(t, "http://unused", 2)
	reporter := &recordingReporter{}
	o := newTestOrchestrator(t, cfg, panicFetcher{}, []string{"a.zip"}, reporter)

	run, err := o.ProcessAll(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Outcomes, 1)
	assert.Equal(t, domain.OutcomeUnexpected, run.Outcomes[0].Kind)
}

func TestSnapshotTracksTerminalStates(t *testing.T) {
	goodZip := zipBytes(t, map[string]string{"a.csv": "x"})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone.zip" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(goodZip)
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL, 2)
	o := newTestOrchestrator(t, cfg, fetcher.New(fetcher.Options{}),
		[]string{"ok.zip", "gone.zip"}, &recordingReporter{})

	_, err := o.ProcessAll(context.Background())
	require.NoError(t, err)

	states := o.Snapshot()
	require.Len(t, states, 2)
	assert.Equal(t, ItemState{Name: "gone.zip", Status: domain.StatusFailed}, states[0])
	assert.Equal(t, ItemState{Name: "ok.zip", Status: domain.StatusCompleted}, states[1])
	assert.NotEmpty(t, o.RunID())
}

// memStore stands in for the history store.
type memStore struct {
	mu   sync.Mutex
	runs []domain.RunRecord
}

func (m *memStore) SaveRun(_ context.Context, run domain.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memStore) ListRuns(context.Context, int) ([]domain.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs, nil
}

func TestProcessAllRecordsRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	cfg := testConfig(t, server.URL, 2)
	store := &memStore{}

	log, err := logger.New("", logger.LevelError, false)
	require.NoError(t, err)

	pool := extract.NewPool(cfg.Extract.Workers, extract.NewZipExtractor())
	t.Cleanup(pool.Close)

	o := NewOrchestrator(app.NewContext(cfg, log), fetcher.New(fetcher.Options{}), pool,
		&recordingReporter{}, domain.NewStaticEnumerator([]string{"x.zip"}), store)

	run, err := o.ProcessAll(context.Background())
	require.NoError(t, err)

	require.Len(t, store.runs, 1)
	assert.Equal(t, run.ID, store.runs[0].ID)
	assert.Equal(t, 1, store.runs[0].Counts()[domain.OutcomeNotFound])
}
