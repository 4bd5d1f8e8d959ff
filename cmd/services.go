package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/o1-screener/internal/ai"
	"github.com/spigell/o1-screener/internal/ai/gemini"
	"github.com/spigell/o1-screener/internal/ai/openai"
	"github.com/spigell/o1-screener/internal/logger"
	"github.com/spigell/o1-screener/internal/pipeline"
	"github.com/spigell/o1-screener/internal/scraper"
	"github.com/spigell/o1-screener/internal/secrets"
	"github.com/spigell/o1-screener/internal/storage"
)

const (
	providerGemini = "gemini"
	providerOpenAI = "openai"
)

// services holds what every command needs: config, logger and the stores.
type services struct {
	config *Config
	logger *zap.Logger
	db     *sql.DB
	store  *storage.Profiles
	audit  storage.AuditLog
}

func setup() *services {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	conn, err := storage.OpenAndMigrate(config.Database)
	if err != nil {
		logger.Fatal("opening database", zap.String("path", config.Database), zap.Error(err))
	}

	logger.Debug("database ready", zap.String("path", config.Database))

	return &services{
		config: config,
		logger: logger,
		db:     conn,
		store:  storage.NewProfiles(conn),
		audit:  storage.NewAuditLog(conn),
	}
}

func (s *services) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", zap.Error(err))
	}
	_ = s.logger.Sync()
}

// processor wires the scraper and the configured assessor into a pipeline processor.
func (s *services) processor(ctx context.Context) (*pipeline.Processor, error) {
	client, err := s.scrapeClient()
	if err != nil {
		return nil, err
	}

	assessor, err := newAssessor(ctx, s.config.AI, s.logger)
	if err != nil {
		return nil, fmt.Errorf("building assessor: %w", err)
	}

	return pipeline.NewProcessor(pipeline.Deps{
		Store:    s.store,
		Audit:    s.audit,
		Scraper:  client,
		Assessor: assessor,
		Logger:   s.logger,
	}, s.config.Pipeline), nil
}

func (s *services) scrapeClient() (*scraper.Client, error) {
	cfg := s.config.Scraper
	token, err := secrets.Load(secrets.Source{
		Name:  "scrape api token",
		File:  cfg.TokenFile,
		Env:   "BRIGHTDATA_API_KEY",
		Value: cfg.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set scraper.token-file or BRIGHTDATA_API_KEY)", err)
	}

	client := scraper.New(s.logger, token, cfg.Config)
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	if cfg.APIURL != "" {
		client.APIURL = strings.TrimRight(cfg.APIURL, "/")
	}
	if cfg.DatasetID != "" {
		client.DatasetID = cfg.DatasetID
	}
	return client, nil
}

func newAssessor(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Assessor, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", providerGemini:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			File:  cfg.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
			Value: cfg.Gemini.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Options)
		if err != nil {
			return nil, err
		}
		return gemini.NewAssessor(generator, log, cfg.MaxLogLength), nil

	case providerOpenAI:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			File:  cfg.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
			Value: cfg.OpenAI.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
		}
		assessor, err := openai.New(apiKey, cfg.OpenAI.Options, log)
		if err != nil {
			return nil, err
		}
		return assessor, nil

	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}
