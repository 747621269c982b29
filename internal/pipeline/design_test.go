package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"boardgen/internal/domain"
	"boardgen/internal/providers/chat"
	"boardgen/internal/providers/image"
)

type fakeCompleter struct {
	req chat.Request
	out string
	err error
}

func (f *fakeCompleter) Complete(_ context.Context, req chat.Request) (string, error) {
	f.req = req
	return f.out, f.err
}

type fakeComposer struct {
	instructions string
	images       []string
	texts        []string
	calls        int
	block        bool
}

func (f *fakeComposer) Compose(ctx context.Context, instructions string, images []string, texts ...string) (image.Asset, string, error) {
	f.calls++
	f.instructions, f.images, f.texts = instructions, images, texts
	if f.block {
		<-ctx.Done()
		return image.Asset{}, "", ctx.Err()
	}
	return image.Asset{URL: "data:image/png;base64,UE5H", Format: "image/png"}, "a red bead", nil
}

type fakeLoader struct{ err error }

func (f fakeLoader) Load(_ context.Context, source string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("ABC"), "image/jpeg", nil
}

func TestDesignAnalyzeSendsBothImages(t *testing.T) {
	analyst := &fakeCompleter{out: "  The feature bead is shaped as a moon.  "}
	d := NewDesignAgent(DesignOptions{Analyst: analyst, Loader: fakeLoader{}})

	out, err := d.Analyze(context.Background(), DesignRequest{
		Whiteboard: "data:image/png;base64,V0I=",
		Product:    "https://cdn/product.jpg",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if out != "The feature bead is shaped as a moon." {
		t.Fatalf("out = %q", out)
	}
	if len(analyst.req.Images) != 2 {
		t.Fatalf("images = %d, want 2", len(analyst.req.Images))
	}
	if analyst.req.Images[0] != "data:image/png;base64,V0I=" {
		t.Fatalf("whiteboard = %q", analyst.req.Images[0])
	}
	if analyst.req.Images[1] != "data:image/jpeg;base64,QUJD" {
		t.Fatalf("product = %q, want it inlined", analyst.req.Images[1])
	}
	if !strings.Contains(analyst.req.SystemPrompt, "feature bead") {
		t.Fatalf("system prompt = %q", analyst.req.SystemPrompt)
	}
}

func TestDesignRequiresBothImages(t *testing.T) {
	analyst := &fakeCompleter{out: "x"}
	d := NewDesignAgent(DesignOptions{Analyst: analyst})

	_, err := d.Analyze(context.Background(), DesignRequest{Whiteboard: "data:image/png;base64,V0I="})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if analyst.req.Images != nil {
		t.Fatalf("analyst called without product image")
	}
}

func TestDesignAnalyzeEmptyIsUpstreamError(t *testing.T) {
	d := NewDesignAgent(DesignOptions{Analyst: &fakeCompleter{out: " "}})
	_, err := d.Analyze(context.Background(), DesignRequest{Whiteboard: "a", Product: "b"})
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("err = %v, want upstream", err)
	}
}

func TestDesignRenderRequiresAnalysis(t *testing.T) {
	composer := &fakeComposer{}
	d := NewDesignAgent(DesignOptions{Composer: composer})

	_, err := d.Render(context.Background(), DesignRequest{Whiteboard: "a", Product: "b", Analysis: "  "})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "node1_1Result" {
		t.Fatalf("err = %v, want node1_1Result validation", err)
	}
	if composer.calls != 0 {
		t.Fatalf("composer called %d times", composer.calls)
	}
}

func TestDesignRenderBuildsOnAnalysis(t *testing.T) {
	composer := &fakeComposer{}
	d := NewDesignAgent(DesignOptions{Composer: composer, Uploader: fakeUploader{}})

	res, err := d.Render(context.Background(), DesignRequest{
		Whiteboard: "data:image/png;base64,V0I=",
		Product:    "data:image/jpeg;base64,UFI=",
		Analysis:   "moon bead",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.ImageURL != "data:image/png;base64,UE5H" || res.Description != "a red bead" || res.BasedOn != "moon bead" {
		t.Fatalf("result = %+v", res)
	}
	if !res.Persisted.Durable {
		t.Fatalf("persisted = %+v, want durable", res.Persisted)
	}
	if len(composer.images) != 2 || composer.texts[0] != "Design analysis: moon bead" {
		t.Fatalf("compose images = %v texts = %v", composer.images, composer.texts)
	}
}

func TestDesignRenderTimesOut(t *testing.T) {
	d := NewDesignAgent(DesignOptions{Composer: &fakeComposer{block: true}, Timeout: 10 * time.Millisecond})
	_, err := d.Render(context.Background(), DesignRequest{Whiteboard: "a", Product: "b", Analysis: "c"})
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestDesignUnreadableImageIsValidation(t *testing.T) {
	d := NewDesignAgent(DesignOptions{Analyst: &fakeCompleter{out: "x"}, Loader: fakeLoader{err: errors.New("status 404")}})
	_, err := d.Analyze(context.Background(), DesignRequest{Whiteboard: "https://cdn/missing.png", Product: "data:image/png;base64,UFI="})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "whiteboardImage" {
		t.Fatalf("err = %v, want whiteboardImage validation", err)
	}
}
