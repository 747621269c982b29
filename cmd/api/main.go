package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"boardgen/internal/http/handlers"
	httpapi "boardgen/internal/http/httpapi"
	"boardgen/internal/imagejob"
	"boardgen/internal/infra"
	"boardgen/internal/infra/credentials"
	"boardgen/internal/pipeline"
	"boardgen/internal/providers/chat"
	"boardgen/internal/providers/image"
	"boardgen/internal/sqlinline"
	"boardgen/internal/storage"
	"boardgen/internal/themes"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Keys missing from the environment may live in integration_tokens.
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		if err := fillCredentials(ctx, pool, cfg, logger); err != nil {
			logger.Warn().Err(err).Msg("some provider tokens could not be loaded")
		}
	}

	registry := themes.Builtin()
	if cfg.ThemesFile != "" {
		registry, err = themes.LoadFile(cfg.ThemesFile, registry)
		if err != nil {
			logger.Fatal().Err(err).Str("file", cfg.ThemesFile).Msg("failed to load themes")
		}
	}

	loader := storage.NewLoader(nil)
	var uploader *storage.Uploader
	staticDir := ""
	switch {
	case cfg.MinioEnabled():
		store, err := storage.NewMinIOStore(ctx, storage.MinIOOptions{
			Endpoint:      cfg.MinioEndpoint,
			AccessKey:     cfg.MinioAccessKey,
			SecretKey:     cfg.MinioSecretKey,
			Bucket:        cfg.MinioBucket,
			UseSSL:        cfg.MinioUseSSL,
			PublicBaseURL: cfg.MinioPublicBaseURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object storage")
		}
		uploader = storage.NewUploader(store, loader, "", &logger)
	case cfg.StoragePath != "":
		store, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init file storage")
		}
		uploader = storage.NewUploader(store, loader, "", &logger)
		staticDir = store.BasePath()
	default:
		logger.Warn().Msg("no durable storage configured; images keep their provider URLs")
	}

	app := &handlers.App{
		Themes:       registry,
		Loader:       loader,
		ImageTimeout: cfg.ImageRequestTimeout,
		Logger:       &logger,
	}
	if uploader != nil {
		app.Uploader = uploader
	}

	var jobs *imagejob.Client
	jobOpts := imagejob.Options{
		Host:              cfg.LiblibHost,
		AccessKey:         cfg.LiblibAccessKey,
		SecretKey:         cfg.LiblibSecretKey,
		TextTemplateUUID:  cfg.LiblibT2ITemplate,
		ImageTemplateUUID: cfg.LiblibI2ITemplate,
		PollInterval:      cfg.ImageJobPoll,
		Timeout:           cfg.ImageJobTimeout,
		Logger:            &logger,
	}
	if uploader != nil {
		jobOpts.Uploader = uploader
	}
	if c := imagejob.NewClient(jobOpts); c.HasCredentials() {
		jobs = c
		app.Jobs = c
	} else {
		logger.Warn().Msg("image job credentials missing; /v1/image-job disabled")
	}

	var (
		completer chat.Completer
		caller    chat.FunctionCaller
		images    image.Generator
	)
	policy := image.RetryPolicyFrom(cfg.ImageRetryMax, cfg.ImageRetryBaseDelay)
	if cfg.OpenAIAPIKey != "" {
		oc, err := chat.NewOpenAICompleter(chat.OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIChatModel,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init chat client")
		}
		completer, caller = oc, oc

		if cfg.ImageProvider != credentials.ProviderGemini {
			gen, err := image.NewOpenAIGenerator(image.OpenAIOptions{
				APIKey:  cfg.OpenAIAPIKey,
				BaseURL: cfg.OpenAIBaseURL,
				Model:   cfg.OpenAIImageModel,
				Size:    cfg.OpenAIImageSize,
			})
			if err != nil {
				logger.Fatal().Err(err).Msg("failed to init image client")
			}
			images = image.NewRetryingGenerator(gen, policy, &logger)
		}
	}
	geminiRequired := cfg.ChatProvider == credentials.ProviderGemini || cfg.ImageProvider == credentials.ProviderGemini
	if cfg.GeminiAPIKey != "" || geminiRequired {
		gc, err := chat.NewGeminiCompleter(chat.GeminiOptions{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiModel,
			BaseURL: cfg.GeminiBaseURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init gemini client")
		}
		painter, err := image.NewGeminiGenerator(image.GeminiOptions{
			APIKey:  cfg.GeminiAPIKey,
			Model:   cfg.GeminiImageModel,
			BaseURL: cfg.GeminiBaseURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init gemini image client")
		}
		if cfg.ChatProvider == credentials.ProviderGemini {
			completer = gc
		}
		if cfg.ImageProvider == credentials.ProviderGemini {
			images = image.NewRetryingGenerator(painter, policy, &logger)
		}

		design := pipeline.DesignOptions{
			Analyst:  gc,
			Composer: painter,
			Loader:   loader,
			Timeout:  cfg.ImageRequestTimeout,
			Logger:   &logger,
		}
		if uploader != nil {
			design.Uploader = uploader
		}
		app.Design = pipeline.NewDesignAgent(design)
	} else {
		logger.Warn().Msg("gemini key missing; /v1/design-agent disabled")
	}
	if images != nil {
		app.Images = images
	}

	if completer != nil {
		opts := pipeline.Options{
			Themes:       registry,
			Steps:        chat.NewExecutor(completer, 0, &logger),
			Images:       images,
			ImageTimeout: cfg.ImageRequestTimeout,
			Logger:       &logger,
			OnStage: func(s pipeline.Stage) {
				logger.Debug().Str("stage", string(s)).Msg("pipeline stage")
			},
		}
		if jobs != nil {
			opts.Jobs = jobs
			opts.JobInterval, opts.JobTimeout = jobs.PollInterval(), jobs.Timeout()
		}
		if uploader != nil {
			opts.Uploader = uploader
		}
		app.Pipeline = pipeline.NewOrchestrator(opts)
	} else {
		logger.Warn().Msg("no chat provider configured; /v1/pipeline disabled")
	}
	if caller != nil && images != nil {
		board := pipeline.BoardOptions{
			Caller:  caller,
			Images:  images,
			Timeout: cfg.ImageRequestTimeout,
			Logger:  &logger,
		}
		if uploader != nil {
			board.Uploader = uploader
		}
		app.Board = pipeline.NewBoardGenerator(board)
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		StaticDir:       staticDir,
	})

	server := infra.NewHTTPServer(cfg, router)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Str("addr", server.Addr()).Msg("API listening")
	if err := server.Run(runCtx); err != nil {
		logger.Error().Err(err).Msg("http server failed")
		return
	}
	logger.Info().Msg("server stopped")
}

func fillCredentials(ctx context.Context, pool *pgxpool.Pool, cfg *infra.Config, logger infra.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	runner := infra.NewSQLRunner(pool, logger)
	if _, err := runner.Exec(ctx, sqlinline.QEnsureIntegrationTokens); err != nil {
		return err
	}
	return credentials.NewStore(runner).Fill(ctx, map[string]*string{
		credentials.ProviderOpenAI:       &cfg.OpenAIAPIKey,
		credentials.ProviderGemini:       &cfg.GeminiAPIKey,
		credentials.ProviderLiblibAccess: &cfg.LiblibAccessKey,
		credentials.ProviderLiblibSecret: &cfg.LiblibSecretKey,
		credentials.ProviderMinio:        &cfg.MinioSecretKey,
	})
}
