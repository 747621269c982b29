// Package pipeline turns a board sketch into a final creative prompt and an
// image by chaining role-specific chat steps.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"boardgen/internal/domain"
	"boardgen/internal/imagejob"
	"boardgen/internal/infra"
	"boardgen/internal/providers/image"
	"boardgen/internal/storage"
	"boardgen/internal/themes"
)

// AnalyzeInstruction is the text payload sent with the board to role1.
const AnalyzeInstruction = "Please analyze this draft."

// Stage names a state of one pipeline run.
type Stage string

const (
	StageAnalyze    Stage = "analyze"
	StageBranch     Stage = "branch_fanout"
	StageSynthesize Stage = "synthesize"
	StageImage      Stage = "image_request"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// StepRunner executes one role against the chat provider.
type StepRunner interface {
	Run(ctx context.Context, role domain.Role, systemPrompt, text string, images []string) (string, error)
}

// JobRunner renders a prompt through the signed submit-and-poll API.
type JobRunner interface {
	GenerateAndWait(ctx context.Context, req imagejob.Request, interval, timeout time.Duration) (imagejob.Job, error)
}

// ThemeResolver selects the prompt set for a theme.
type ThemeResolver interface {
	Resolve(themeID string) themes.Resolution
}

// Uploader keeps a durable copy of an image.
type Uploader interface {
	Upload(ctx context.Context, source string) (string, error)
}

type Options struct {
	Themes       ThemeResolver
	Steps        StepRunner
	Images       image.Generator
	Jobs         JobRunner
	Uploader     Uploader
	ImageTimeout time.Duration
	JobInterval  time.Duration
	JobTimeout   time.Duration
	Logger       *infra.Logger
	// OnStage observes state transitions.
	OnStage func(Stage)
}

// Request is one pipeline invocation. Prompts, when set, replaces the theme
// lookup entirely; UseStyle entries override the prompt set's defaults.
type Request struct {
	BoardImage string
	ThemeID    string
	StyleImage string
	UseStyle   map[domain.Role]bool
	Prompts    *domain.RolePromptSet
}

// Result is returned when every stage succeeds. Outputs only contains roles
// that ran.
type Result struct {
	ThemeID   string                 `json:"themeId,omitempty"`
	Defaulted bool                   `json:"defaulted"`
	Outputs   map[domain.Role]string `json:"outputs"`
	Prompt    string                 `json:"prompt"`
	ImageURL  string                 `json:"imageUrl"`
	Images    []string               `json:"images,omitempty"`
	JobID     string                 `json:"generateUuid,omitempty"`
	Persisted storage.Persisted      `json:"persisted"`
}

// Orchestrator sequences ANALYZE, optional BRANCH_FANOUT, SYNTHESIZE and
// IMAGE_REQUEST. It holds no per-run state.
type Orchestrator struct {
	themes       ThemeResolver
	steps        StepRunner
	images       image.Generator
	jobs         JobRunner
	uploader     Uploader
	imageTimeout time.Duration
	jobInterval  time.Duration
	jobTimeout   time.Duration
	logger       *infra.Logger
	onStage      func(Stage)
}

func NewOrchestrator(opts Options) *Orchestrator {
	timeout := opts.ImageTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{
		themes:       opts.Themes,
		steps:        opts.Steps,
		images:       opts.Images,
		jobs:         opts.Jobs,
		uploader:     opts.Uploader,
		imageTimeout: timeout,
		jobInterval:  opts.JobInterval,
		jobTimeout:   opts.JobTimeout,
		logger:       infra.OrDiscard(opts.Logger),
		onStage:      opts.OnStage,
	}
}

// run is the per-invocation state.
type run struct {
	req     Request
	prompts domain.RolePromptSet
	outputs map[domain.Role]string
}

func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.BoardImage) == "" {
		return nil, domain.Validation("imageUrl", "is required")
	}
	if o.steps == nil {
		return nil, fmt.Errorf("pipeline: step runner: %w", domain.ErrNotConfigured)
	}

	res := &Result{}
	var prompts domain.RolePromptSet
	switch {
	case req.Prompts != nil:
		prompts = req.Prompts.Clone()
	case o.themes != nil:
		resolved := o.themes.Resolve(req.ThemeID)
		prompts = resolved.Prompts
		res.ThemeID = resolved.ThemeID
		res.Defaulted = resolved.Defaulted
	default:
		return nil, fmt.Errorf("pipeline: theme registry: %w", domain.ErrNotConfigured)
	}

	r := &run{req: req, prompts: prompts, outputs: map[domain.Role]string{}}
	log := o.logger.With().Str("theme", res.ThemeID).Bool("branch", prompts.Branch).Logger()
	start := time.Now()

	prompt, err := o.text(ctx, r)
	if err != nil {
		o.stage(StageFailed)
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("pipeline failed")
		return nil, err
	}
	res.Outputs = r.outputs
	res.Prompt = prompt

	o.stage(StageImage)
	if err := o.image(ctx, prompts.ImagePath, prompt, res); err != nil {
		o.stage(StageFailed)
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("pipeline image request failed")
		return nil, err
	}
	if o.uploader != nil {
		res.Persisted = storage.Persist(ctx, o.uploader, res.ImageURL, o.logger)
	} else {
		res.Persisted = storage.Persisted{URL: res.ImageURL}
	}
	o.stage(StageDone)
	log.Info().Dur("elapsed", time.Since(start)).Bool("durable", res.Persisted.Durable).Msg("pipeline completed")
	return res, nil
}

func (o *Orchestrator) text(ctx context.Context, r *run) (string, error) {
	o.stage(StageAnalyze)
	role1, err := o.steps.Run(ctx, domain.Role1, r.prompts.Prompt(domain.Role1), AnalyzeInstruction, []string{r.req.BoardImage})
	if err != nil {
		return "", err
	}
	r.outputs[domain.Role1] = role1

	synthesisInput := role1
	if r.prompts.Branch {
		o.stage(StageBranch)
		branch, err := o.fanOut(ctx, r, role1)
		if err != nil {
			return "", err
		}
		parts := []string{role1}
		for i, role := range domain.BranchRoles {
			r.outputs[role] = branch[i]
			parts = append(parts, branch[i])
		}
		synthesisInput = strings.Join(parts, "\n")
	}

	o.stage(StageSynthesize)
	role5, err := o.steps.Run(ctx, domain.Role5, r.prompts.Prompt(domain.Role5), synthesisInput, o.styleFor(r, domain.Role5))
	if err != nil {
		return "", err
	}
	r.outputs[domain.Role5] = role5
	return role5, nil
}

// fanOut runs the branch roles concurrently and returns their outputs in
// BranchRoles order. The first failure cancels the others.
func (o *Orchestrator) fanOut(ctx context.Context, r *run, seed string) ([]string, error) {
	out := make([]string, len(domain.BranchRoles))
	g, gctx := errgroup.WithContext(ctx)
	for i, role := range domain.BranchRoles {
		g.Go(func() error {
			text, err := o.steps.Run(gctx, role, r.prompts.Prompt(role), seed, o.styleFor(r, role))
			if err != nil {
				return err
			}
			out[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) styleFor(r *run, role domain.Role) []string {
	if strings.TrimSpace(r.req.StyleImage) == "" {
		return nil
	}
	use, ok := r.req.UseStyle[role]
	if !ok {
		use = r.prompts.UseStyle[role]
	}
	if !use {
		return nil
	}
	return []string{r.req.StyleImage}
}

func (o *Orchestrator) image(ctx context.Context, path domain.ImagePath, prompt string, res *Result) error {
	if path == domain.ImagePathJob {
		if o.jobs == nil {
			return fmt.Errorf("pipeline: image job client: %w", domain.ErrNotConfigured)
		}
		job, err := o.jobs.GenerateAndWait(ctx, imagejob.Request{Mode: imagejob.ModeText2Img, Prompt: prompt}, o.jobInterval, o.jobTimeout)
		if err != nil {
			return err
		}
		res.JobID = job.ID
		res.Images = job.Images
		if len(job.Images) > 0 {
			res.ImageURL = job.Images[0]
		}
		return nil
	}
	if o.images == nil {
		return fmt.Errorf("pipeline: image generator: %w", domain.ErrNotConfigured)
	}
	asset, err := image.GenerateWithin(ctx, o.images, image.Request{Mode: image.ModeGenerate, Prompt: prompt}, o.imageTimeout)
	if err != nil {
		return err
	}
	res.ImageURL = asset.URL
	res.Images = []string{asset.URL}
	return nil
}

func (o *Orchestrator) stage(s Stage) {
	o.logger.Debug().Str("stage", string(s)).Msg("pipeline stage")
	if o.onStage != nil {
		o.onStage(s)
	}
}
