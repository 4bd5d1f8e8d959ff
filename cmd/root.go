package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/o1-screener/internal/ai/gemini"
	"github.com/spigell/o1-screener/internal/ai/openai"
	"github.com/spigell/o1-screener/internal/pipeline"
	"github.com/spigell/o1-screener/internal/scraper"
	"github.com/spigell/o1-screener/internal/storage"
)

const (
	app = "o1-screener"
)

type Config struct {
	Database string                `mapstructure:"database"`
	Scraper  *ScraperConfig        `mapstructure:"scraper"`
	AI       *AIConfig             `mapstructure:"ai"`
	Pipeline pipeline.Config       `mapstructure:"pipeline"`
	Batch    pipeline.RunnerConfig `mapstructure:"batch"`
}

type ScraperConfig struct {
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
	UserAgent string `mapstructure:"user-agent"`
	APIURL    string `mapstructure:"api-url"`
	DatasetID string `mapstructure:"dataset-id"`

	scraper.Config `mapstructure:",squash"`
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider"`
	MaxLogLength int           `mapstructure:"max-log-length"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
	OpenAI       *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`

	gemini.Options `mapstructure:",squash"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`

	openai.Options `mapstructure:",squash"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "o1-screener scrapes professional profiles, scores them for O-1 eligibility signals and ranks them",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is o1-screener.yaml in current directory)")
	rootCmd.PersistentFlags().String("database", storage.DefaultPath, "path to the sqlite database")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func setDefaults() {
	sc := scraper.DefaultConfig()
	viper.SetDefault("scraper.retries", sc.Retries)
	viper.SetDefault("scraper.backoff-base", sc.BackoffBase)
	viper.SetDefault("scraper.poll-interval", sc.PollInterval)
	viper.SetDefault("scraper.max-polls", sc.MaxPolls)
	viper.SetDefault("scraper.request-timeout", sc.RequestTimeout)
	viper.SetDefault("scraper.max-wall-clock", sc.MaxWallClock)

	rc := pipeline.DefaultRunnerConfig()
	viper.SetDefault("batch.concurrency", rc.Concurrency)
	viper.SetDefault("batch.delay", rc.Delay)
	viper.SetDefault("batch.sequential-threshold", rc.SequentialThreshold)

	viper.SetDefault("pipeline.candidate-threshold", pipeline.DefaultCandidateThreshold)
	viper.SetDefault("ai.provider", providerGemini)
	viper.SetDefault("ai.max-log-length", 200)
}

func initConfig() {
	// Secrets usually live in .env next to the database.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix("O1")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless given explicitly; defaults and env cover the rest.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Scraper == nil {
		config.Scraper = &ScraperConfig{Config: scraper.DefaultConfig()}
	}
	if config.AI == nil {
		config.AI = &AIConfig{Provider: providerGemini}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.AI.OpenAI == nil {
		config.AI.OpenAI = &OpenAIConfig{}
	}

	return config, nil
}
