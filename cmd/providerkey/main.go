package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"boardgen/internal/infra"
	"boardgen/internal/infra/credentials"
	"boardgen/internal/sqlinline"
)

var envFallback = map[string]string{
	credentials.ProviderOpenAI:       "OPENAI_API_KEY",
	credentials.ProviderGemini:       "GEMINI_API_KEY",
	credentials.ProviderLiblibAccess: "LIBLIB_ACCESS_KEY",
	credentials.ProviderLiblibSecret: "LIBLIB_SECRET_KEY",
	credentials.ProviderMinio:        "MINIO_SECRET_KEY",
}

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
	)
	flag.StringVar(&keyFlag, "key", "", "token for the selected provider (falls back to environment)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderOpenAI, "provider to configure: "+strings.Join(credentials.Providers, ", "))
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	if !credentials.Known(provider) {
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envFallback[provider]))
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "%s token is required via -key or %s\n", provider, envFallback[provider])
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "providerkey").Str("provider", provider).Logger()
	runner := infra.NewSQLRunner(pool, logger)

	ctxExec, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	if _, err := runner.Exec(ctxExec, sqlinline.QEnsureIntegrationTokens); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare integration_tokens: %v\n", err)
		os.Exit(1)
	}
	if err := credentials.NewStore(runner).Set(ctxExec, provider, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s token: %v\n", provider, err)
		os.Exit(1)
	}

	fmt.Printf("%s token stored successfully\n", provider)
}
