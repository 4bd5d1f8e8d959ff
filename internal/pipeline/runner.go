package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/o1-screener/internal/logger"
	"github.com/spigell/o1-screener/internal/profile"
	"github.com/spigell/o1-screener/internal/utils"
)

// Mode selects how a batch is executed.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeConcurrent Mode = "concurrent"
	ModeSequential Mode = "sequential"
)

// ProfileProcessor runs the pipeline for one profile.
type ProfileProcessor interface {
	Process(ctx context.Context, id string) Result
}

// Lister finds the profiles a batch picks up when no ids are given.
type Lister interface {
	IDsByStatus(ctx context.Context, statuses ...profile.Status) ([]string, error)
}

type RunnerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Delay       time.Duration `mapstructure:"delay"`
	// SequentialThreshold switches ModeAuto to sequential for larger batches. Zero disables it.
	SequentialThreshold int `mapstructure:"sequential-threshold"`
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Concurrency:         5,
		Delay:               10 * time.Second,
		SequentialThreshold: 25,
	}
}

// BatchResult aggregates the outcome of a batch. Results keep input order.
type BatchResult struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

type Runner struct {
	proc   ProfileProcessor
	lister Lister
	cfg    RunnerConfig
	logger *zap.Logger

	// Wait is used for the delay between sequential items.
	Wait utils.WaitFunc
}

func NewRunner(proc ProfileProcessor, lister Lister, cfg RunnerConfig, log *zap.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return &Runner{
		proc:   proc,
		lister: lister,
		cfg:    cfg,
		logger: logger.OrNop(log),
		Wait:   utils.WaitFor,
	}
}

// Run processes ids, or every pending and failed profile when ids is empty.
// Cancelling ctx stops new runs from starting; started runs always finish and
// items that never started are reported as failed.
func (r *Runner) Run(ctx context.Context, ids []string, mode Mode) (BatchResult, error) {
	if len(ids) == 0 {
		listed, err := r.lister.IDsByStatus(ctx, profile.StatusPending, profile.StatusFailed)
		if err != nil {
			return BatchResult{}, fmt.Errorf("listing runnable profiles: %w", err)
		}
		ids = listed
	}
	ids = dedupe(ids)

	if mode == ModeAuto || mode == "" {
		mode = ModeConcurrent
		if r.cfg.SequentialThreshold > 0 && len(ids) > r.cfg.SequentialThreshold {
			mode = ModeSequential
		}
	}

	r.logger.Info("batch started",
		zap.Int("total", len(ids)),
		zap.String("mode", string(mode)),
		zap.Int("concurrency", r.cfg.Concurrency),
	)

	var results []Result
	if mode == ModeSequential {
		results = r.runSequential(ctx, ids)
	} else {
		results = r.runConcurrent(ctx, ids)
	}

	batch := BatchResult{Total: len(ids), Results: results}
	for _, res := range results {
		if res.Success {
			batch.Successful++
		} else {
			batch.Failed++
		}
	}

	r.logger.Info("batch finished",
		zap.Int("total", batch.Total),
		zap.Int("successful", batch.Successful),
		zap.Int("failed", batch.Failed),
	)

	return batch, nil
}

func (r *Runner) runConcurrent(ctx context.Context, ids []string) []Result {
	results := make([]Result, len(ids))
	runCtx := context.WithoutCancel(ctx)

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			results[i] = notStarted(id, err)
			continue
		}
		// Go blocks until a slot frees up, so cancellation is checked again on start.
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = notStarted(id, err)
				return nil
			}
			results[i] = r.process(runCtx, id)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Runner) runSequential(ctx context.Context, ids []string) []Result {
	results := make([]Result, len(ids))
	runCtx := context.WithoutCancel(ctx)

	for i, id := range ids {
		if i > 0 {
			if err := r.Wait(ctx, r.cfg.Delay); err != nil {
				for j := i; j < len(ids); j++ {
					results[j] = notStarted(ids[j], err)
				}
				break
			}
		}
		if err := ctx.Err(); err != nil {
			results[i] = notStarted(id, err)
			continue
		}
		results[i] = r.process(runCtx, id)
	}

	return results
}

func (r *Runner) process(ctx context.Context, id string) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("profile run panicked", zap.String(logger.FieldProfileID, id), zap.Any("panic", rec))
			res = Result{ProfileID: id, FailedStep: StepGeneral, Kind: KindInternal, Error: fmt.Sprintf("panic: %v", rec)}
		}
	}()
	return r.proc.Process(ctx, id)
}

func notStarted(id string, err error) Result {
	return Result{ProfileID: id, Kind: Classify(err), Error: fmt.Sprintf("not started: %v", err)}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
