package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/logger"
	"github.com/spigell/o1-screener/internal/profile"
	"github.com/spigell/o1-screener/internal/utils"
)

const (
	apiURL    = "https://api.brightdata.com/datasets/v3"
	datasetID = "gd_l1viktl72bvl7bjuj0"
	userAgent = "o1-screener"
)

var (
	ErrUnavailable = errors.New("scrape backend unavailable")
	ErrTimeout     = errors.New("scrape timed out")
	ErrFailed      = errors.New("scrape job failed")
	ErrRateLimited = errors.New("scrape backend rate limited")
)

// Config tunes retries and polling.
type Config struct {
	Retries        int           `mapstructure:"retries"`
	BackoffBase    time.Duration `mapstructure:"backoff-base"`
	PollInterval   time.Duration `mapstructure:"poll-interval"`
	MaxPolls       int           `mapstructure:"max-polls"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	MaxWallClock   time.Duration `mapstructure:"max-wall-clock"`
}

func DefaultConfig() Config {
	return Config{
		Retries:        3,
		BackoffBase:    time.Second,
		PollInterval:   10 * time.Second,
		MaxPolls:       18,
		RequestTimeout: 30 * time.Second,
		MaxWallClock:   5 * time.Minute,
	}
}

type Client struct {
	token  string
	logger *zap.Logger
	cfg    Config

	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	DatasetID  string
	// Wait is used for backoff and poll intervals.
	Wait utils.WaitFunc
}

func New(log *zap.Logger, token string, cfg Config) *Client {
	defaults := DefaultConfig()
	if cfg.Retries <= 0 {
		cfg.Retries = defaults.Retries
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = defaults.MaxPolls
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.MaxWallClock <= 0 {
		cfg.MaxWallClock = defaults.MaxWallClock
	}

	return &Client{
		token:      token,
		logger:     logger.OrNop(log),
		cfg:        cfg,
		HTTPClient: &http.Client{},
		UserAgent:  userAgent,
		APIURL:     apiURL,
		DatasetID:  datasetID,
		Wait:       utils.WaitFor,
	}
}

// Scrape triggers a collection job for reference and waits for its document.
func (c *Client) Scrape(ctx context.Context, reference string) (*profile.Document, error) {
	jobID, err := c.Trigger(ctx, reference)
	if err != nil {
		return nil, err
	}

	c.logger.Info("scrape job triggered", logger.ScrapeFields(reference, jobID)...)

	doc, err := c.AwaitResult(ctx, jobID, c.cfg.RequestTimeout, c.cfg.MaxWallClock)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}

	return doc, nil
}
