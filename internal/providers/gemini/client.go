// Package gemini is a thin client for the generateContent REST endpoint,
// shared by the text and image providers.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boardgen/internal/domain"
)

const (
	Provider       = "gemini"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout = 60 * time.Second
)

type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("gemini api key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{apiKey: key, baseURL: baseURL, http: hc}, nil
}

type Request struct {
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	Contents          []Content        `json:"contents"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is one element of a turn. A part with neither inline nor file data
// is a text part and always carries its text field, even when empty.
type Part struct {
	Text       string
	InlineData *Blob
	FileData   *FileData
}

type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type FileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type GenerationConfig struct {
	CandidateCount     int      `json:"candidateCount,omitempty"`
	MaxOutputTokens    int      `json:"maxOutputTokens,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type Response struct {
	Candidates []struct {
		Content Content `json:"content"`
	} `json:"candidates"`
}

type wirePart struct {
	Text       *string   `json:"text,omitempty"`
	InlineData *Blob     `json:"inlineData,omitempty"`
	FileData   *FileData `json:"fileData,omitempty"`
}

func (p Part) MarshalJSON() ([]byte, error) {
	w := wirePart{InlineData: p.InlineData, FileData: p.FileData}
	if p.Text != "" || (p.InlineData == nil && p.FileData == nil) {
		text := p.Text
		w.Text = &text
	}
	return json.Marshal(w)
}

// UnmarshalJSON also accepts the snake_case spelling some gateways return.
func (p *Part) UnmarshalJSON(raw []byte) error {
	var w struct {
		wirePart
		InlineSnake *Blob `json:"inline_data"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	*p = Part{InlineData: w.InlineData, FileData: w.FileData}
	if w.Text != nil {
		p.Text = *w.Text
	}
	if p.InlineData == nil {
		p.InlineData = w.InlineSnake
	}
	return nil
}

func (b *Blob) UnmarshalJSON(raw []byte) error {
	var w struct {
		MimeType  string `json:"mimeType"`
		MimeSnake string `json:"mime_type"`
		Data      string `json:"data"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return err
	}
	b.MimeType = w.MimeType
	if b.MimeType == "" {
		b.MimeType = w.MimeSnake
	}
	b.Data = w.Data
	return nil
}

// Text concatenates the text parts of the first candidate.
func (r Response) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// Image returns the first inline image of the first candidate.
func (r Response) Image() (*Blob, bool) {
	if len(r.Candidates) == 0 {
		return nil, false
	}
	for _, part := range r.Candidates[0].Content.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			return part.InlineData, true
		}
	}
	return nil, false
}

// GenerateContent posts req to the model. Non-2xx answers become
// *domain.UpstreamError carrying the raw body.
func (c *Client) GenerateContent(ctx context.Context, model string, req Request) (Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return Response{}, fmt.Errorf("gemini: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return Response{}, fmt.Errorf("gemini: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("gemini: request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Response{}, &domain.UpstreamError{Provider: Provider, Status: resp.StatusCode, Body: string(body)}
	}
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, &domain.UpstreamError{Provider: Provider, Status: resp.StatusCode, Body: "malformed response: " + err.Error()}
	}
	return out, nil
}

// ImagePart attaches a data URI inline and anything else by reference.
func ImagePart(ref string) Part {
	if mime, data, ok := SplitDataURI(ref); ok {
		return Part{InlineData: &Blob{MimeType: mime, Data: data}}
	}
	return Part{FileData: &FileData{MimeType: "image/png", FileURI: ref}}
}

// SplitDataURI extracts the mime type and base64 payload of a data URI.
func SplitDataURI(s string) (mime, data string, ok bool) {
	rest, found := strings.CutPrefix(s, "data:")
	if !found {
		return "", "", false
	}
	meta, payload, found := strings.Cut(rest, ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", "", false
	}
	mime = strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "image/png"
	}
	return mime, payload, true
}
