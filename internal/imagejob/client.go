// Package imagejob submits signed render jobs and polls them to completion.
package imagejob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"boardgen/internal/domain"
	"boardgen/internal/infra"
)

const (
	provider = "liblib"

	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 60 * time.Second
	defaultAspectRatio  = "1:1"
	guidanceScale       = 3.5
)

// Uploader rehosts an image (data URI or remote URL) on durable storage.
type Uploader interface {
	Upload(ctx context.Context, source string) (string, error)
}

type Options struct {
	Host              string
	AccessKey         string
	SecretKey         string
	TextTemplateUUID  string
	ImageTemplateUUID string
	HTTPClient        *http.Client
	Uploader          Uploader
	Clock             Clock
	Nonce             func() string
	PollInterval      time.Duration
	Timeout           time.Duration
	Logger            *infra.Logger
}

// Client talks to the signed render API. Credentials are read once at
// construction.
type Client struct {
	host          string
	accessKey     string
	secretKey     string
	textTemplate  string
	imageTemplate string
	http          *http.Client
	uploader      Uploader
	clock         Clock
	nonce         func() string
	interval      time.Duration
	timeout       time.Duration
	logger        *infra.Logger
}

func NewClient(opts Options) *Client {
	host := strings.TrimRight(strings.TrimSpace(opts.Host), "/")
	if host == "" {
		host = "https://api.liblbai.cloud"
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	nonce := opts.Nonce
	if nonce == nil {
		nonce = NewNonce
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		host:          host,
		accessKey:     strings.TrimSpace(opts.AccessKey),
		secretKey:     strings.TrimSpace(opts.SecretKey),
		textTemplate:  strings.TrimSpace(opts.TextTemplateUUID),
		imageTemplate: strings.TrimSpace(opts.ImageTemplateUUID),
		http:          hc,
		uploader:      opts.Uploader,
		clock:         clock,
		nonce:         nonce,
		interval:      interval,
		timeout:       timeout,
		logger:        infra.OrDiscard(opts.Logger),
	}
}

// HasCredentials reports whether both keys are present.
func (c *Client) HasCredentials() bool {
	return c != nil && c.accessKey != "" && c.secretKey != ""
}

// PollInterval and Timeout expose the configured polling defaults.
func (c *Client) PollInterval() time.Duration { return c.interval }
func (c *Client) Timeout() time.Duration      { return c.timeout }

// Submit validates req, resolves its source image and creates a job.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if !c.HasCredentials() {
		return "", fmt.Errorf("imagejob: %w: access key and secret key are required", domain.ErrNotConfigured)
	}
	payload, err := c.buildPayload(ctx, req)
	if err != nil {
		return "", err
	}
	var env envelope
	if err := c.post(ctx, req.Mode.path(), payload, &env); err != nil {
		return "", err
	}
	id := env.jobID()
	if id == "" {
		return "", &domain.UpstreamError{Provider: provider, Status: http.StatusOK, Body: "response without generateUuid"}
	}
	c.logger.Info().Str("job_id", id).Str("mode", string(req.Mode)).Bool("chained", req.ParentJobID != "").Msg("image job submitted")
	return id, nil
}

// Poll reads the current state of a job once.
func (c *Client) Poll(ctx context.Context, jobID string) (Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Job{}, domain.Validation("generateUuid", "is required")
	}
	if !c.HasCredentials() {
		return Job{}, fmt.Errorf("imagejob: %w: access key and secret key are required", domain.ErrNotConfigured)
	}
	var env envelope
	if err := c.post(ctx, PathStatus, statusPayload{GenerateUUID: jobID}, &env); err != nil {
		return Job{}, err
	}
	job := Job{ID: jobID, Status: domain.JobStatusPending, Images: env.images()}
	if len(job.Images) > 0 {
		job.Status = domain.JobStatusSucceeded
	}
	return job, nil
}

// Wait polls jobID every interval until it yields images or timeout elapses,
// measured from the moment Wait is called.
func (c *Client) Wait(ctx context.Context, jobID string, interval, timeout time.Duration) (Job, error) {
	if interval <= 0 {
		interval = c.interval
	}
	if timeout <= 0 {
		timeout = c.timeout
	}
	start := c.clock.Now()
	polls := 0
	for {
		elapsed := c.clock.Now().Sub(start)
		if elapsed >= timeout {
			c.logger.Warn().Str("job_id", jobID).Int("polls", polls).Dur("elapsed", elapsed).Msg("image job timed out")
			return Job{ID: jobID, Status: domain.JobStatusPending}, &domain.TimeoutError{Op: "image job " + jobID, Elapsed: elapsed}
		}
		job, err := c.Poll(ctx, jobID)
		polls++
		if err != nil {
			return Job{ID: jobID, Status: domain.JobStatusFailed}, err
		}
		if job.Status == domain.JobStatusSucceeded {
			c.logger.Info().Str("job_id", jobID).Int("polls", polls).Int("images", len(job.Images)).Dur("elapsed", c.clock.Now().Sub(start)).Msg("image job completed")
			return job, nil
		}
		if err := c.clock.Sleep(ctx, interval); err != nil {
			return job, err
		}
	}
}

// GenerateAndWait submits req and waits for its images. The budget starts
// once the submission is accepted. img2img results are rehosted so they can
// seed a chained job; rehosting failures keep the renderer's URL.
func (c *Client) GenerateAndWait(ctx context.Context, req Request, interval, timeout time.Duration) (Job, error) {
	id, err := c.Submit(ctx, req)
	if err != nil {
		return Job{}, err
	}
	job, err := c.Wait(ctx, id, interval, timeout)
	if err != nil {
		return job, err
	}
	if req.Mode == ModeImg2Img && c.uploader != nil {
		for i, u := range job.Images {
			job.Images[i] = c.rehost(ctx, u)
		}
	}
	return job, nil
}

func (c *Client) buildPayload(ctx context.Context, req Request) (submitPayload, error) {
	params := map[string]any{"prompt": req.Prompt}
	template := c.textTemplate
	switch req.Mode {
	case ModeText2Img:
		aspect := strings.TrimSpace(req.AspectRatio)
		if aspect == "" {
			aspect = defaultAspectRatio
		}
		count := req.ImageCount
		if count <= 0 {
			count = 1
		}
		params["model"] = "pro"
		params["aspectRatio"] = aspect
		params["imgCount"] = count
		params["guidance_scale"] = guidanceScale
	case ModeImg2Img:
		src, err := c.resolveSource(ctx, req.SourceImage)
		if err != nil {
			return submitPayload{}, err
		}
		template = c.imageTemplate
		params["model"] = "max"
		params["image_list"] = []string{src}
	}
	if parent := strings.TrimSpace(req.ParentJobID); parent != "" {
		params["parent_generate_uuid"] = parent
	}
	return submitPayload{TemplateUUID: template, GenerateParams: params}, nil
}

// resolveSource returns a URL the renderer can fetch. Data URIs must be
// uploaded; remote URLs are rehosted when possible.
func (c *Client) resolveSource(ctx context.Context, src string) (string, error) {
	src = strings.TrimSpace(src)
	if !strings.HasPrefix(src, "data:") {
		return c.rehost(ctx, src), nil
	}
	if c.uploader == nil {
		return "", fmt.Errorf("imagejob: %w: data URI source needs durable storage", domain.ErrNotConfigured)
	}
	u, err := c.uploader.Upload(ctx, src)
	if err != nil {
		return "", fmt.Errorf("imagejob: upload source: %w", err)
	}
	return u, nil
}

func (c *Client) rehost(ctx context.Context, u string) string {
	if c.uploader == nil {
		return u
	}
	hosted, err := c.uploader.Upload(ctx, u)
	if err != nil || hosted == "" {
		c.logger.Warn().Err(err).Str("url", u).Msg("rehost failed, keeping original url")
		return u
	}
	return hosted
}

func (c *Client) post(ctx context.Context, path string, body any, out *envelope) error {
	signed := NewSignedParams(path, c.secretKey, c.clock.Now(), c.nonce())
	endpoint := c.host + path + "?" + signed.Query(c.accessKey).Encode()

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("imagejob: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("imagejob: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &domain.UpstreamError{Provider: provider, Body: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	text, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &domain.UpstreamError{Provider: provider, Status: resp.StatusCode, Body: err.Error()}
	}
	c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Int("bytes", len(text)).Msg("image job response")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.UpstreamError{Provider: provider, Status: resp.StatusCode, Body: string(text)}
	}
	if len(bytes.TrimSpace(text)) == 0 {
		return nil
	}
	if err := json.Unmarshal(text, out); err != nil {
		return &domain.UpstreamError{Provider: provider, Status: resp.StatusCode, Body: "malformed response: " + string(text)}
	}
	return nil
}
