package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/logger"
	"github.com/spigell/o1-screener/internal/profile"
	"github.com/spigell/o1-screener/internal/utils"
)

type pollState int

const (
	pollPending pollState = iota
	pollDone
	pollFailed
)

// pendingStatuses are job states reported while the snapshot is still being built.
var pendingStatuses = map[string]bool{
	"running":       true,
	"building":      true,
	"collecting":    true,
	"starting":      true,
	"ready-pending": true,
}

// AwaitResult polls the snapshot of jobID until it is ready, fails, or the
// poll budget or wall clock runs out. Exactly one terminal result is returned.
func (c *Client) AwaitResult(ctx context.Context, jobID string, perPollTimeout, maxWallClock time.Duration) (*profile.Document, error) {
	log := c.logger.With(logger.ScrapeFields("", jobID)...)

	wallCtx := ctx
	if maxWallClock > 0 {
		var cancel context.CancelFunc
		wallCtx, cancel = context.WithTimeout(ctx, maxWallClock)
		defer cancel()
	}

	for attempt := 1; attempt <= c.cfg.MaxPolls; attempt++ {
		if attempt > 1 {
			if err := c.Wait(wallCtx, c.cfg.PollInterval); err != nil {
				return nil, c.stopped(ctx, jobID, err)
			}
		}

		raw, state, err := c.pollOnce(wallCtx, jobID, perPollTimeout)
		switch state {
		case pollDone:
			log.Info("snapshot ready", zap.Int("attempt", attempt))
			return Normalize(raw), nil
		case pollPending:
			log.Debug("snapshot not ready", zap.Int("attempt", attempt), zap.Int("max_polls", c.cfg.MaxPolls))
			continue
		}

		if wallCtx.Err() != nil {
			return nil, c.stopped(ctx, jobID, wallCtx.Err())
		}
		return nil, err
	}

	return nil, fmt.Errorf("%w: snapshot %s not ready after %d polls", ErrTimeout, jobID, c.cfg.MaxPolls)
}

// stopped maps a context error to the poller taxonomy: the caller's own
// cancellation passes through, the wall-clock deadline is a timeout.
func (c *Client) stopped(parent context.Context, jobID string, err error) error {
	if parent.Err() != nil {
		return fmt.Errorf("await snapshot %s: %w", jobID, parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: snapshot %s exceeded wall clock", ErrTimeout, jobID)
	}
	return fmt.Errorf("await snapshot %s: %w", jobID, err)
}

// pollOnce fetches the snapshot once, retrying 429, 5xx and transport errors.
func (c *Client) pollOnce(ctx context.Context, jobID string, timeout time.Duration) (any, pollState, error) {
	endpoint := fmt.Sprintf("%s/snapshot/%s?format=json", c.APIURL, url.PathEscape(jobID))

	var lastErr error
	limited := false
	for attempt := 0; attempt < c.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := c.Wait(ctx, utils.Backoff(c.cfg.BackoffBase, attempt-1)); err != nil {
				return nil, pollFailed, err
			}
		}

		status, body, err := c.doWithTimeout(ctx, http.MethodGet, endpoint, nil, timeout)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, pollFailed, ctx.Err()
			}
			limited = false
			lastErr = err
			continue
		case status == http.StatusTooManyRequests:
			limited = true
			lastErr = fmt.Errorf("snapshot returned status %d", status)
			c.logger.Warn("snapshot rate limited", zap.String(logger.FieldJobID, jobID), zap.Int("attempt", attempt+1))
			continue
		case status >= http.StatusInternalServerError:
			limited = false
			lastErr = fmt.Errorf("snapshot returned status %d", status)
			continue
		}

		return classifySnapshot(status, body)
	}

	if limited {
		return nil, pollFailed, fmt.Errorf("%w: snapshot %s: %w", ErrRateLimited, jobID, lastErr)
	}
	return nil, pollFailed, fmt.Errorf("%w: snapshot %s: %w", ErrUnavailable, jobID, lastErr)
}

func classifySnapshot(status int, body []byte) (any, pollState, error) {
	switch status {
	case http.StatusAccepted, http.StatusNotFound:
		return nil, pollPending, nil
	case http.StatusOK:
	default:
		return nil, pollFailed, fmt.Errorf("%w: snapshot returned status %d: %s", ErrFailed, status, utils.TruncateForLog(string(body), logBodyLimit))
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, pollFailed, fmt.Errorf("%w: decode snapshot: %w", ErrFailed, err)
	}

	switch v := payload.(type) {
	case []any:
		if len(v) == 0 {
			return nil, pollPending, nil
		}
		return v[0], pollDone, nil
	case map[string]any:
		status, _ := v["status"].(string)
		status = strings.ToLower(strings.TrimSpace(status))
		switch {
		case pendingStatuses[status]:
			return nil, pollPending, nil
		case status == "failed" || status == "error":
			return nil, pollFailed, fmt.Errorf("%w: job status %q", ErrFailed, status)
		}
		for _, key := range []string{"id", "url", "name"} {
			if _, ok := v[key]; ok {
				return v, pollDone, nil
			}
		}
		if status != "" {
			return nil, pollFailed, fmt.Errorf("%w: job status %q", ErrFailed, status)
		}
		return nil, pollFailed, fmt.Errorf("%w: unexpected snapshot object", ErrFailed)
	default:
		return nil, pollFailed, fmt.Errorf("%w: unexpected snapshot payload %T", ErrFailed, payload)
	}
}
