package scraper

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/utils"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	logBodyLimit    = 300
)

// Trigger starts a collection job for reference and returns its id.
// 429, 5xx and transport errors are retried with exponential backoff.
func (c *Client) Trigger(ctx context.Context, reference string) (string, error) {
	payload, err := json.Marshal([]map[string]string{{"url": reference}})
	if err != nil {
		return "", fmt.Errorf("encode trigger payload: %w", err)
	}

	q := url.Values{}
	q.Set("dataset_id", c.DatasetID)
	q.Set("include_errors", "true")
	endpoint := c.APIURL + "/trigger?" + q.Encode()

	var lastErr error
	for attempt := 0; attempt < c.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := c.Wait(ctx, utils.Backoff(c.cfg.BackoffBase, attempt-1)); err != nil {
				return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
			}
		}

		status, body, err := c.do(ctx, http.MethodPost, endpoint, payload)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
			}
			lastErr = err
			c.logger.Warn("trigger request failed", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("trigger returned status %d", status)
			c.logger.Warn("trigger retryable status", zap.Int("attempt", attempt+1), zap.Int("status", status))
			continue
		case status != http.StatusOK:
			return "", fmt.Errorf("%w: trigger returned status %d: %s", ErrUnavailable, status, utils.TruncateForLog(string(body), logBodyLimit))
		}

		var resp struct {
			SnapshotID string `json:"snapshot_id"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("%w: decode trigger response: %w", ErrUnavailable, err)
		}
		if resp.SnapshotID == "" {
			return "", fmt.Errorf("%w: trigger response has no snapshot_id", ErrUnavailable)
		}

		return resp.SnapshotID, nil
	}

	return "", fmt.Errorf("%w: trigger failed after %d attempts: %w", ErrUnavailable, c.cfg.Retries, lastErr)
}

// do performs one request bounded by the configured request timeout and returns the status and the decoded body.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) (int, []byte, error) {
	return c.doWithTimeout(ctx, method, endpoint, payload, c.cfg.RequestTimeout)
}

func (c *Client) doWithTimeout(ctx context.Context, method, endpoint string, payload []byte, timeout time.Duration) (int, []byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}

	req = c.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.request(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return resp.StatusCode, nil, err
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, data, nil
}

func (c *Client) request(req *http.Request) (*http.Response, error) {
	c.logger.Debug("make request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	return c.HTTPClient.Do(req)
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}
