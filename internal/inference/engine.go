// Package inference talks to the text-generation engine. The engine is any
// server that speaks the OpenAI completions or chat completions protocol,
// such as llama.cpp's server, vLLM or a hosted endpoint.
package inference

import (
	"context"
	"fmt"
	"strings"
)

// Params are the decoding parameters of one Generate call.
type Params struct {
	MaxTokens   int
	Stop        []string
	Temperature float64
}

type Engine interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}

// API selects the wire protocol spoken to the engine.
type API string

const (
	APICompletions API = "completions"
	APIChat        API = "chat"
)

func ParseAPI(raw string) (API, error) {
	switch API(strings.ToLower(strings.TrimSpace(raw))) {
	case "", APICompletions:
		return APICompletions, nil
	case APIChat:
		return APIChat, nil
	default:
		return "", fmt.Errorf("unsupported engine api %q", raw)
	}
}
