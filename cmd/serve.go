package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prepair-dev/prepair/internal/ai"
	"github.com/prepair-dev/prepair/internal/ai/gemini"
	"github.com/prepair-dev/prepair/internal/ai/openai"
	"github.com/prepair-dev/prepair/internal/interview"
	"github.com/prepair-dev/prepair/internal/janitor"
	"github.com/prepair-dev/prepair/internal/logger"
	"github.com/prepair-dev/prepair/internal/question"
	"github.com/prepair-dev/prepair/internal/secrets"
	"github.com/prepair-dev/prepair/internal/server"
	"github.com/prepair-dev/prepair/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	defaultAddr            = ":8080"
	defaultJanitorSchedule = "*/10 * * * *"
	defaultJanitorMaxIdle  = 45 * time.Minute
	shutdownTimeout        = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interview API server",
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "listen address, overrides server.addr")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

// serve wires the whole service together and blocks until a signal.
func serve(_ *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting prepair", zap.String("version", resolveVersion()))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	dsn, err := resolveDSN(config)
	if err != nil {
		logger.Fatal(
			"loading database dsn",
			zap.Error(err),
			zap.String("hint", "set PREPAIR_DATABASE_DSN or the 'database.dsn' key in the configuration file"),
		)
	}

	db, err := storage.Connect(ctx, dsn, logger)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	if err := storage.Migrate(db); err != nil {
		logger.Fatal("migrating database", zap.Error(err))
	}

	repo := storage.NewRepository(db, logger)
	bank := storage.NewBank(db, logger)

	scorer, err := buildScorer(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building the answer scorer", zap.Error(err))
	}

	engineCfg := interview.Config{}
	if config.Interview != nil {
		engineCfg.MaxAttempts = config.Interview.MaxAttempts
		engineCfg.ScorerTimeout = config.Interview.ScorerTimeout
	}
	engine := interview.NewEngine(repo, scorer, question.NewBuilder(bank), engineCfg, logger)

	schedule := defaultJanitorSchedule
	maxIdle := defaultJanitorMaxIdle
	if config.Janitor != nil {
		if config.Janitor.Schedule != "" {
			schedule = config.Janitor.Schedule
		}
		if config.Janitor.MaxIdle > 0 {
			maxIdle = config.Janitor.MaxIdle
		}
	}
	reaper, err := janitor.New(engine, schedule, maxIdle, logger)
	if err != nil {
		logger.Fatal("scheduling the session janitor", zap.Error(err))
	}
	reaper.Start()

	addr := defaultAddr
	if config.Server != nil && config.Server.Addr != "" {
		addr = config.Server.Addr
	}
	srv := server.NewServer(engine, addr, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	reaper.Stop()
}

func resolveDSN(config *Config) (string, error) {
	var value, file string
	if config.Database != nil {
		value = strings.TrimSpace(config.Database.DSN)
		file = strings.TrimSpace(config.Database.DSNFile)
	}
	return secrets.Load(secrets.Source{
		Name:  "database dsn",
		Value: value,
		Env:   "PREPAIR_DATABASE_DSN",
		File:  file,
	})
}

// buildScorer picks the scoring provider. Gemini is the default; OpenAI (or
// anything speaking its API via base-url) is the alternative.
func buildScorer(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Scorer, error) {
	provider := "gemini"
	maxLogLength := 0
	if cfg != nil && cfg.Provider != "" {
		provider = cfg.Provider
	}
	if cfg != nil {
		maxLogLength = cfg.MaxLogLength
	}

	switch provider {
	case "gemini":
		var key, file, model string
		if cfg != nil && cfg.Gemini != nil {
			key = cfg.Gemini.APIKey
			file = cfg.Gemini.APIKeyFile
			model = cfg.Gemini.Model
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: key,
			Env:   "GEMINI_API_KEY",
			File:  file,
		})
		if err != nil {
			return nil, err
		}
		generator, err := gemini.NewGenerator(ctx, apiKey, model)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		logger.Info("using gemini scorer", zap.String("model", generator.Model()))
		return gemini.NewScorer(generator, logger, maxLogLength), nil

	case "openai":
		var key, file, model, baseURL string
		if cfg != nil && cfg.OpenAI != nil {
			key = cfg.OpenAI.APIKey
			file = cfg.OpenAI.APIKeyFile
			model = cfg.OpenAI.Model
			baseURL = cfg.OpenAI.BaseURL
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: key,
			Env:   "OPENAI_API_KEY",
			File:  file,
		})
		if err != nil {
			return nil, err
		}
		scorer, err := openai.NewScorer(apiKey, baseURL, model, logger, maxLogLength)
		if err != nil {
			return nil, fmt.Errorf("creating openai client: %w", err)
		}
		logger.Info("using openai scorer", zap.String("model", model))
		return scorer, nil

	default:
		return nil, fmt.Errorf("unknown ai provider: %s", provider)
	}
}
