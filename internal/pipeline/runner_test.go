package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/profile"
	"github.com/spigell/o1-screener/internal/scraper"
)

type stubProcessor struct {
	mu    sync.Mutex
	calls []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	fn func(id string) Result
}

func (s *stubProcessor) Process(_ context.Context, id string) Result {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.maxInFlight.Load()
		if n <= peak || s.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, id)
	s.mu.Unlock()

	time.Sleep(2 * time.Millisecond)
	if s.fn != nil {
		return s.fn(id)
	}
	return Result{ProfileID: id, Success: true}
}

type stubLister struct {
	ids      []string
	statuses []profile.Status
}

func (s *stubLister) IDsByStatus(_ context.Context, statuses ...profile.Status) ([]string, error) {
	s.statuses = statuses
	return s.ids, nil
}

type recordedWaits struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (w *recordedWaits) wait(_ context.Context, d time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.delays = append(w.delays, d)
	return w.err
}

func newTestRunner(proc ProfileProcessor, lister Lister, cfg RunnerConfig) (*Runner, *recordedWaits) {
	waits := &recordedWaits{}
	r := NewRunner(proc, lister, cfg, zap.NewNop())
	r.Wait = waits.wait
	return r, waits
}

func TestRunnerConcurrentIsolatesFailures(t *testing.T) {
	ids := make([]string, 10)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i+1)
	}
	proc := &stubProcessor{fn: func(id string) Result {
		if id == "p4" {
			return Result{ProfileID: id, Kind: KindFailed, FailedStep: StepScraping, Error: "scrape job failed"}
		}
		return Result{ProfileID: id, Success: true}
	}}
	r, waits := newTestRunner(proc, &stubLister{}, RunnerConfig{Concurrency: 3})

	res, err := r.Run(context.Background(), ids, ModeConcurrent)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Total != 10 || res.Successful != 9 || res.Failed != 1 {
		t.Fatalf("unexpected aggregate: %+v", res)
	}
	for i, item := range res.Results {
		if item.ProfileID != ids[i] {
			t.Fatalf("results must keep input order, got %s at %d", item.ProfileID, i)
		}
		if item.Success == (item.ProfileID == "p4") {
			t.Fatalf("unexpected outcome for %s: %+v", item.ProfileID, item)
		}
	}
	if got := proc.maxInFlight.Load(); got > 3 {
		t.Fatalf("expected at most 3 concurrent runs, got %d", got)
	}
	if len(proc.calls) != 10 {
		t.Fatalf("expected every profile to run once, got %v", proc.calls)
	}
	if len(waits.delays) != 0 {
		t.Fatalf("concurrent mode must not wait between items")
	}
}

func TestRunnerSequentialWaitsBetweenItems(t *testing.T) {
	proc := &stubProcessor{}
	r, waits := newTestRunner(proc, &stubLister{}, RunnerConfig{Concurrency: 5, Delay: 10 * time.Second})

	res, err := r.Run(context.Background(), []string{"a", "b", "c"}, ModeSequential)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Successful != 3 {
		t.Fatalf("unexpected aggregate: %+v", res)
	}
	if len(waits.delays) != 2 || waits.delays[0] != 10*time.Second {
		t.Fatalf("expected two 10s delays, got %v", waits.delays)
	}
	if proc.maxInFlight.Load() != 1 {
		t.Fatalf("sequential mode must run one profile at a time")
	}
}

func TestRunnerAutoModeSwitchesToSequential(t *testing.T) {
	cases := []struct {
		name      string
		ids       []string
		wantWaits int
	}{
		{name: "small batch", ids: []string{"a", "b"}, wantWaits: 0},
		{name: "large batch", ids: []string{"a", "b", "c", "d"}, wantWaits: 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, waits := newTestRunner(&stubProcessor{}, &stubLister{}, RunnerConfig{Concurrency: 2, Delay: time.Second, SequentialThreshold: 3})
			if _, err := r.Run(context.Background(), tc.ids, ModeAuto); err != nil {
				t.Fatalf("run: %v", err)
			}
			if len(waits.delays) != tc.wantWaits {
				t.Fatalf("expected %d waits, got %d", tc.wantWaits, len(waits.delays))
			}
		})
	}
}

func TestRunnerListsRunnableProfilesAndDedupes(t *testing.T) {
	lister := &stubLister{ids: []string{"a", "b", "a"}}
	proc := &stubProcessor{}
	r, _ := newTestRunner(proc, lister, RunnerConfig{Concurrency: 2})

	res, err := r.Run(context.Background(), nil, ModeConcurrent)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Total != 2 || len(proc.calls) != 2 {
		t.Fatalf("expected duplicates to collapse, got %+v calls %v", res, proc.calls)
	}
	if len(lister.statuses) != 2 || lister.statuses[0] != profile.StatusPending || lister.statuses[1] != profile.StatusFailed {
		t.Fatalf("expected pending and failed profiles to be listed, got %v", lister.statuses)
	}
}

func TestRunnerRecoversPanics(t *testing.T) {
	proc := &stubProcessor{fn: func(id string) Result {
		if id == "boom" {
			panic("unexpected")
		}
		return Result{ProfileID: id, Success: true}
	}}
	r, _ := newTestRunner(proc, &stubLister{}, RunnerConfig{Concurrency: 2})

	res, err := r.Run(context.Background(), []string{"ok", "boom"}, ModeConcurrent)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Successful != 1 || res.Failed != 1 {
		t.Fatalf("unexpected aggregate: %+v", res)
	}
	if res.Results[1].Kind != KindInternal || res.Results[1].FailedStep != StepGeneral {
		t.Fatalf("expected internal failure, got %+v", res.Results[1])
	}
}

func TestRunnerCancelledContextStartsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := &stubProcessor{}
	r, _ := newTestRunner(proc, &stubLister{}, RunnerConfig{Concurrency: 2})

	res, err := r.Run(ctx, []string{"a", "b"}, ModeConcurrent)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Failed != 2 || len(proc.calls) != 0 {
		t.Fatalf("expected nothing to start, got %+v calls %v", res, proc.calls)
	}
}

func TestRunnerCancelWhileSlotsBusyStartsNoQueuedItem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &stubProcessor{fn: func(id string) Result {
		if id == "a" {
			cancel()
		}
		return Result{ProfileID: id, Success: true}
	}}
	r, _ := newTestRunner(proc, &stubLister{}, RunnerConfig{Concurrency: 1})

	res, err := r.Run(ctx, []string{"a", "b", "c"}, ModeConcurrent)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(proc.calls) != 1 || proc.calls[0] != "a" {
		t.Fatalf("expected only the running profile to start, got %v", proc.calls)
	}
	if res.Successful != 1 || res.Failed != 2 {
		t.Fatalf("unexpected aggregate: %+v", res)
	}
	for _, r := range res.Results[1:] {
		if r.Success || r.Error == "" {
			t.Fatalf("expected %s to be reported as not started, got %+v", r.ProfileID, r)
		}
	}
}

func TestRunnerSequentialStopsOnCancelledDelay(t *testing.T) {
	proc := &stubProcessor{}
	r, waits := newTestRunner(proc, &stubLister{}, RunnerConfig{Concurrency: 1, Delay: time.Second})
	waits.err = context.Canceled

	res, err := r.Run(context.Background(), []string{"a", "b", "c"}, ModeSequential)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Successful != 1 || res.Failed != 2 {
		t.Fatalf("unexpected aggregate: %+v", res)
	}
	if len(proc.calls) != 1 || proc.calls[0] != "a" {
		t.Fatalf("expected only the first profile to run, got %v", proc.calls)
	}
}

func TestRunnerWithProcessorKeepsRanksDense(t *testing.T) {
	scores := map[string]float64{}
	for i := 1; i <= 10; i++ {
		scores[fmt.Sprintf("P%d", i)] = float64(i)
	}
	f := newFixture(t, scores)
	f.scraper.set("p4", nil, fmt.Errorf("snapshot: %w", scraper.ErrFailed))

	var ids []string
	for i := 1; i <= 10; i++ {
		p := f.add(t, fmt.Sprintf("P%d", i), fmt.Sprintf("p%d", i))
		ids = append(ids, p.ID)
	}

	r, _ := newTestRunner(f.proc, f.store, RunnerConfig{Concurrency: 3})
	res, err := r.Run(context.Background(), ids, ModeConcurrent)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Total != 10 || res.Successful != 9 || res.Failed != 1 {
		t.Fatalf("unexpected aggregate: %+v", res)
	}
	if res.Results[3].ProfileID != ids[3] || res.Results[3].Success {
		t.Fatalf("expected profile 4 to fail, got %+v", res.Results[3])
	}

	seen := map[int]bool{}
	for i, id := range ids {
		got := f.get(t, id)
		if i == 3 {
			if got.Status != profile.StatusFailed || got.Rank != nil {
				t.Fatalf("unexpected state of failed profile: %+v", got)
			}
			continue
		}
		if got.Rank == nil || *got.Rank < 1 || *got.Rank > 9 || seen[*got.Rank] {
			t.Fatalf("ranks must be a dense 1..9 permutation, got %v for %s", got.Rank, got.Name)
		}
		seen[*got.Rank] = true
	}
	if got := f.get(t, ids[9]); *got.Rank != 1 {
		t.Fatalf("expected the highest score to rank first, got %d", *got.Rank)
	}
}
