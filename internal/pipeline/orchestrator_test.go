package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"boardgen/internal/domain"
	"boardgen/internal/imagejob"
	"boardgen/internal/providers/image"
	"boardgen/internal/themes"
)

type stepCall struct {
	role   domain.Role
	system string
	text   string
	images []string
}

type fakeSteps struct {
	mu    sync.Mutex
	calls []stepCall
	reply func(ctx context.Context, role domain.Role, text string) (string, error)
}

func (f *fakeSteps) Run(ctx context.Context, role domain.Role, system, text string, images []string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, stepCall{role: role, system: system, text: text, images: images})
	f.mu.Unlock()
	return f.reply(ctx, role, text)
}

func (f *fakeSteps) call(role domain.Role) (stepCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.role == role {
			return c, true
		}
	}
	return stepCall{}, false
}

type recordingGenerator struct {
	reqs []image.Request
	url  string
	err  error
}

func (g *recordingGenerator) Generate(_ context.Context, req image.Request) (image.Asset, error) {
	g.reqs = append(g.reqs, req)
	if g.err != nil {
		return image.Asset{}, g.err
	}
	return image.Asset{URL: g.url}, nil
}

func promptSet(branch bool) *domain.RolePromptSet {
	return &domain.RolePromptSet{
		Prompts: map[domain.Role]string{
			domain.Role1: "p1", domain.Role2: "p2", domain.Role3: "p3", domain.Role4: "", domain.Role5: "p5",
		},
		Branch: branch,
	}
}

func TestRunWithoutBranchFeedsRole1Verbatim(t *testing.T) {
	steps := &fakeSteps{reply: func(_ context.Context, role domain.Role, _ string) (string, error) {
		if role == domain.Role1 {
			return "A calm fox", nil
		}
		return "A fox figurine, matte ceramic", nil
	}}
	gen := &recordingGenerator{url: "https://img/fox.png"}
	var stages []Stage
	o := NewOrchestrator(Options{Steps: steps, Images: gen, OnStage: func(s Stage) { stages = append(stages, s) }})

	res, err := o.Run(context.Background(), Request{BoardImage: "https://img/board.png", Prompts: promptSet(false)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ImageURL != "https://img/fox.png" {
		t.Fatalf("ImageURL = %q, want %q", res.ImageURL, "https://img/fox.png")
	}
	if len(gen.reqs) != 1 || gen.reqs[0].Prompt != "A fox figurine, matte ceramic" {
		t.Fatalf("image requests = %+v", gen.reqs)
	}
	for _, role := range domain.BranchRoles {
		if _, ok := res.Outputs[role]; ok {
			t.Fatalf("output for %s present without branch", role)
		}
	}
	role5, _ := steps.call(domain.Role5)
	if role5.text != "A calm fox" {
		t.Fatalf("role5 input = %q, want %q", role5.text, "A calm fox")
	}
	role1, _ := steps.call(domain.Role1)
	if role1.text != AnalyzeInstruction || len(role1.images) != 1 || role1.images[0] != "https://img/board.png" {
		t.Fatalf("role1 call = %+v", role1)
	}
	want := []Stage{StageAnalyze, StageSynthesize, StageImage, StageDone}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stages = %v, want %v", stages, want)
		}
	}
	if res.Persisted.Durable || res.Persisted.URL != res.ImageURL {
		t.Fatalf("persisted = %+v", res.Persisted)
	}
}

func TestBranchOutputsJoinInRoleOrder(t *testing.T) {
	role4Done := make(chan struct{})
	role3Done := make(chan struct{})
	steps := &fakeSteps{reply: func(ctx context.Context, role domain.Role, text string) (string, error) {
		switch role {
		case domain.Role1:
			return "r1", nil
		case domain.Role2:
			<-role3Done
			return "r2", nil
		case domain.Role3:
			<-role4Done
			defer close(role3Done)
			return "r3", nil
		case domain.Role4:
			defer close(role4Done)
			return "r4", nil
		}
		return "final", nil
	}}
	o := NewOrchestrator(Options{Steps: steps, Images: &recordingGenerator{url: "u"}})

	res, err := o.Run(context.Background(), Request{BoardImage: "b", Prompts: promptSet(true)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	role5, _ := steps.call(domain.Role5)
	if role5.text != "r1\nr2\nr3\nr4" {
		t.Fatalf("role5 input = %q, want %q", role5.text, "r1\nr2\nr3\nr4")
	}
	for _, role := range domain.BranchRoles {
		c, ok := steps.call(role)
		if !ok || c.text != "r1" {
			t.Fatalf("%s call = %+v, want seeded with role1 output", role, c)
		}
	}
	if res.Outputs[domain.Role4] != "r4" || res.Outputs[domain.Role5] != "final" {
		t.Fatalf("outputs = %v", res.Outputs)
	}
	if c, _ := steps.call(domain.Role4); c.system != "" {
		t.Fatalf("role4 system prompt = %q, want empty", c.system)
	}
}

func TestBranchFailureAbortsPipeline(t *testing.T) {
	steps := &fakeSteps{reply: func(ctx context.Context, role domain.Role, _ string) (string, error) {
		switch role {
		case domain.Role3:
			return "", &domain.StepError{Role: domain.Role3, Err: errors.New("provider down")}
		case domain.Role2, domain.Role4:
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(5 * time.Second):
				return "late", nil
			}
		}
		return "ok", nil
	}}
	gen := &recordingGenerator{url: "u"}
	var stages []Stage
	o := NewOrchestrator(Options{Steps: steps, Images: gen, OnStage: func(s Stage) { stages = append(stages, s) }})

	_, err := o.Run(context.Background(), Request{BoardImage: "b", Prompts: promptSet(true)})
	var stepErr *domain.StepError
	if !errors.As(err, &stepErr) || stepErr.Role != domain.Role3 {
		t.Fatalf("err = %v, want step error for role3", err)
	}
	if _, ok := steps.call(domain.Role5); ok {
		t.Fatalf("role5 ran after a branch failure")
	}
	if len(gen.reqs) != 0 {
		t.Fatalf("image requested after failure")
	}
	if stages[len(stages)-1] != StageFailed {
		t.Fatalf("last stage = %q, want failed", stages[len(stages)-1])
	}
}

func TestRunResolvesThemeAndStyleFlags(t *testing.T) {
	steps := &fakeSteps{reply: func(context.Context, domain.Role, string) (string, error) { return "x", nil }}
	o := NewOrchestrator(Options{Themes: themes.Builtin(), Steps: steps, Images: &recordingGenerator{url: "u"}})

	res, err := o.Run(context.Background(), Request{
		BoardImage: "b",
		ThemeID:    "unknown-theme",
		StyleImage: "https://img/style.png",
		UseStyle:   map[domain.Role]bool{domain.Role5: true},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Defaulted || res.ThemeID != themes.ThemeDefault {
		t.Fatalf("theme = %q defaulted=%v", res.ThemeID, res.Defaulted)
	}
	role5, _ := steps.call(domain.Role5)
	if len(role5.images) != 1 || role5.images[0] != "https://img/style.png" {
		t.Fatalf("role5 images = %v", role5.images)
	}
	role1, _ := steps.call(domain.Role1)
	if len(role1.images) != 1 || role1.images[0] != "b" {
		t.Fatalf("role1 images = %v", role1.images)
	}
}

func TestRunRequiresBoardImage(t *testing.T) {
	o := NewOrchestrator(Options{Steps: &fakeSteps{}})
	_, err := o.Run(context.Background(), Request{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

type fakeJobs struct {
	req imagejob.Request
}

func (f *fakeJobs) GenerateAndWait(_ context.Context, req imagejob.Request, _, _ time.Duration) (imagejob.Job, error) {
	f.req = req
	return imagejob.Job{ID: "job-9", Status: domain.JobStatusSucceeded, Images: []string{"https://render/a.png", "https://render/b.png"}}, nil
}

func TestRunUsesJobPathWhenThemeAsksForIt(t *testing.T) {
	steps := &fakeSteps{reply: func(_ context.Context, role domain.Role, _ string) (string, error) {
		return string(role) + " out", nil
	}}
	jobs := &fakeJobs{}
	set := promptSet(false)
	set.ImagePath = domain.ImagePathJob
	o := NewOrchestrator(Options{Steps: steps, Jobs: jobs})

	res, err := o.Run(context.Background(), Request{BoardImage: "b", Prompts: set})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if jobs.req.Mode != imagejob.ModeText2Img || jobs.req.Prompt != "role5 out" {
		t.Fatalf("job request = %+v", jobs.req)
	}
	if res.JobID != "job-9" || res.ImageURL != "https://render/a.png" || len(res.Images) != 2 {
		t.Fatalf("result = %+v", res)
	}
}

type fakeUploader struct{ err error }

func (f fakeUploader) Upload(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://durable/x.png", nil
}

func TestRunPersistsBestEffort(t *testing.T) {
	steps := &fakeSteps{reply: func(context.Context, domain.Role, string) (string, error) { return "x", nil }}
	gen := &recordingGenerator{url: "data:image/png;base64,QUJD"}

	o := NewOrchestrator(Options{Steps: steps, Images: gen, Uploader: fakeUploader{}})
	res, err := o.Run(context.Background(), Request{BoardImage: "b", Prompts: promptSet(false)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Persisted.Durable || res.Persisted.URL != "https://durable/x.png" {
		t.Fatalf("persisted = %+v", res.Persisted)
	}

	o = NewOrchestrator(Options{Steps: steps, Images: gen, Uploader: fakeUploader{err: errors.New("down")}})
	res, err = o.Run(context.Background(), Request{BoardImage: "b", Prompts: promptSet(false)})
	if err != nil {
		t.Fatalf("Run with failing uploader: %v", err)
	}
	if res.Persisted.Durable || res.ImageURL != gen.url {
		t.Fatalf("persisted = %+v", res.Persisted)
	}
}

func TestEmptySynthesisIsRejectedBeforeImageCall(t *testing.T) {
	steps := &fakeSteps{reply: func(_ context.Context, role domain.Role, _ string) (string, error) {
		if role == domain.Role5 {
			return "", nil
		}
		return "x", nil
	}}
	gen := &recordingGenerator{url: "u"}
	retrying := image.NewRetryingGenerator(gen, image.RetryPolicy{MaxRetries: 3}, nil)
	o := NewOrchestrator(Options{Steps: steps, Images: retrying})
	_, err := o.Run(context.Background(), Request{BoardImage: "b", Prompts: promptSet(false)})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if len(gen.reqs) != 0 {
		t.Fatalf("image calls = %d, want 0", len(gen.reqs))
	}
}
