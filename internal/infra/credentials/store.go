package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"boardgen/internal/infra"
	"boardgen/internal/sqlinline"
)

const (
	ProviderOpenAI       = "openai"
	ProviderGemini       = "gemini"
	ProviderLiblibAccess = "liblib_access"
	ProviderLiblibSecret = "liblib_secret"
	ProviderMinio        = "minio_secret"
)

// Providers lists every token name the store accepts.
var Providers = []string{ProviderOpenAI, ProviderGemini, ProviderLiblibAccess, ProviderLiblibSecret, ProviderMinio}

// Store reads and writes provider tokens kept in the integration_tokens table.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Known reports whether provider is a supported token name.
func Known(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}

// Token returns the stored token for provider, or "" when none exists.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) Set(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%s token is required", provider)
	}
	if !Known(provider) {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	return s.upsert(ctx, provider, token, nil)
}

// Fill replaces every empty target with the stored token for its provider.
// Lookups that fail are collected and returned together; tokens that were
// found are still applied.
func (s *Store) Fill(ctx context.Context, targets map[string]*string) error {
	var errs []error
	for provider, dst := range targets {
		if dst == nil || strings.TrimSpace(*dst) != "" {
			continue
		}
		token, err := s.Token(ctx, provider)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", provider, err))
			continue
		}
		*dst = token
	}
	return errors.Join(errs...)
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
