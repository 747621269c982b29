// Package chat runs single-turn chat completions against the configured
// provider and attributes failures to the pipeline role that issued them.
package chat

import (
	"context"
	"encoding/json"
)

// Request is one chat completion call. SystemPrompt may be empty and is sent
// as-is; Images are URLs or data URIs attached to the user turn before Text.
type Request struct {
	SystemPrompt string
	Text         string
	Images       []string
	MaxTokens    int
}

// Completer returns the first textual completion for a request, or "" when
// the provider answered without content.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Function is a tool the model may ask the caller to run.
type Function struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// FunctionCall is a structured action requested by the model.
type FunctionCall struct {
	Name      string
	Arguments json.RawMessage
}

// Reply is the outcome of a completion that offered functions.
type Reply struct {
	Text  string
	Calls []FunctionCall
}

// FunctionCaller is implemented by providers that support tool calls.
type FunctionCaller interface {
	CompleteWithFunctions(ctx context.Context, req Request, fns []Function) (Reply, error)
}

const defaultMaxTokens = 1024
