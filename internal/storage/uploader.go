// Package storage keeps durable copies of generated and uploaded images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"boardgen/internal/domain"
	"boardgen/internal/infra"
)

// Sink stores bytes under key and returns a public URL for them.
type Sink interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Uploader rehosts images from data URIs or remote URLs onto a Sink.
type Uploader struct {
	sink   Sink
	loader *Loader
	prefix string
	logger *infra.Logger
}

func NewUploader(sink Sink, loader *Loader, prefix string, logger *infra.Logger) *Uploader {
	if loader == nil {
		loader = NewLoader(nil)
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "generated"
	}
	return &Uploader{sink: sink, loader: loader, prefix: prefix, logger: infra.OrDiscard(logger)}
}

// Upload copies source to the sink and returns the durable URL. A source
// that cannot be read is reported as *domain.ValidationError.
func (u *Uploader) Upload(ctx context.Context, source string) (string, error) {
	if u == nil || u.sink == nil {
		return "", errors.New("storage: no sink configured")
	}
	data, ct, err := u.loader.Load(ctx, source)
	if err != nil {
		return "", &domain.ValidationError{Field: "source", Reason: err.Error()}
	}
	return u.Store(ctx, data, ct)
}

// Store writes raw bytes under a fresh key and returns the durable URL.
func (u *Uploader) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	if u == nil || u.sink == nil {
		return "", errors.New("storage: no sink configured")
	}
	if len(data) == 0 {
		return "", errors.New("storage: empty image")
	}
	key := path.Join(u.prefix, uuid.NewString()+extensionFor(contentType))
	url, err := u.sink.Put(ctx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	u.logger.Debug().Str("key", key).Int("bytes", len(data)).Msg("image stored")
	return url, nil
}

// Persisted reports the outcome of a best-effort durable copy. URL is the
// durable URL when Durable is set, otherwise the original.
type Persisted struct {
	URL     string `json:"url"`
	Durable bool   `json:"durable"`
	Err     error  `json:"-"`
}

type imageUploader interface {
	Upload(ctx context.Context, source string) (string, error)
}

// Persist copies source if an uploader is configured. Failures are logged and
// reported through the result, never returned.
func Persist(ctx context.Context, up imageUploader, source string, logger *infra.Logger) Persisted {
	if up == nil || source == "" {
		return Persisted{URL: source}
	}
	if u, ok := up.(*Uploader); ok && u == nil {
		return Persisted{URL: source}
	}
	durable, err := up.Upload(ctx, source)
	if err != nil {
		infra.OrDiscard(logger).Warn().Err(err).Msg("durable copy failed")
		return Persisted{URL: source, Err: err}
	}
	return Persisted{URL: durable, Durable: true}
}
