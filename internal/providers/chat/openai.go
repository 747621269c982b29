package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"boardgen/internal/domain"
)

const openAIProvider = "openai"

// OpenAIOptions configures an OpenAI-compatible chat client.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// OpenAICompleter implements Completer and FunctionCaller with openai-go.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

func NewOpenAICompleter(opts OpenAIOptions) (*OpenAICompleter, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("openai api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o"
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base+"/"))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &OpenAICompleter{client: openai.NewClient(reqOpts...), model: model}, nil
}

func (o *OpenAICompleter) Complete(ctx context.Context, req Request) (string, error) {
	reply, err := o.complete(ctx, req, nil)
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

func (o *OpenAICompleter) CompleteWithFunctions(ctx context.Context, req Request, fns []Function) (Reply, error) {
	tools := make([]openai.ChatCompletionToolParam, 0, len(fns))
	for _, fn := range fns {
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        fn.Name,
				Description: openai.String(fn.Description),
				Parameters:  openai.FunctionParameters(fn.Parameters),
			},
		})
	}
	return o.complete(ctx, req, tools)
}

func (o *OpenAICompleter) complete(ctx context.Context, req Request, tools []openai.ChatCompletionToolParam) (Reply, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(o.model),
		Messages:  buildOpenAIMessages(req),
		MaxTokens: openai.Int(int64(maxTokens)),
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Reply{}, openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, nil
	}
	msg := resp.Choices[0].Message
	reply := Reply{Text: msg.Content}
	for _, call := range msg.ToolCalls {
		reply.Calls = append(reply.Calls, FunctionCall{
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}
	return reply, nil
}

func buildOpenAIMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(req.SystemPrompt),
	}
	if len(req.Images) == 0 {
		return append(msgs, openai.UserMessage(req.Text))
	}
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: img}))
	}
	parts = append(parts, openai.TextContentPart(req.Text))
	return append(msgs, openai.UserMessage(parts))
}

func openAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &domain.UpstreamError{Provider: openAIProvider, Status: apiErr.StatusCode, Body: apiErr.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return &domain.UpstreamError{Provider: openAIProvider, Body: err.Error()}
}

var (
	_ Completer      = (*OpenAICompleter)(nil)
	_ FunctionCaller = (*OpenAICompleter)(nil)
)
