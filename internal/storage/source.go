package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxSourceBytes = 20 << 20

var errSourceTooLarge = errors.New("storage: source exceeds size limit")

// Loader turns an image reference (data URI or http(s) URL) into bytes.
type Loader struct {
	client *http.Client
}

func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{client: client}
}

// Load returns the image bytes and their content type.
func (l *Loader) Load(ctx context.Context, source string) ([]byte, string, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return nil, "", errors.New("storage: empty source")
	case strings.HasPrefix(source, "data:"):
		return decodeDataURI(source)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return l.fetch(ctx, source)
	default:
		return nil, "", fmt.Errorf("storage: unsupported source %q", truncate(source, 32))
	}
}

func (l *Loader) fetch(ctx context.Context, u string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("storage: build request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("storage: fetch: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("storage: fetch %s: status %d", truncate(u, 64), resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("storage: read body: %w", err)
	}
	if len(data) > maxSourceBytes {
		return nil, "", errSourceTooLarge
	}
	ct := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return data, ct, nil
}

func decodeDataURI(s string) ([]byte, string, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, "", errors.New("storage: malformed data uri")
	}
	ct := "application/octet-stream"
	isBase64 := false
	for i, part := range strings.Split(meta, ";") {
		switch {
		case i == 0 && part != "":
			ct = part
		case part == "base64":
			isBase64 = true
		}
	}
	if !isBase64 {
		data, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("storage: decode data uri: %w", err)
		}
		if len(data) > maxSourceBytes {
			return nil, "", errSourceTooLarge
		}
		return []byte(data), ct, nil
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxSourceBytes+2 {
		return nil, "", errSourceTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("storage: decode data uri: %w", err)
	}
	if len(data) > maxSourceBytes {
		return nil, "", errSourceTooLarge
	}
	return data, ct, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".bin"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
