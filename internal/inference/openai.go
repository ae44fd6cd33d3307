package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	maxErrorBody = 512
	// defaultMaxResponseBody bounds what one engine reply may occupy in memory.
	defaultMaxResponseBody = 4 << 20
)

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	API     API
	Timeout time.Duration
}

type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	api     API
	client  *http.Client
	maxBody int64
}

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	api := cfg.API
	if api == "" {
		api = APICompletions
	}
	if api != APICompletions && api != APIChat {
		return nil, fmt.Errorf("unsupported engine api %q", api)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   model,
		api:     api,
		client:  &http.Client{Timeout: timeout},
		maxBody: defaultMaxResponseBody,
	}, nil
}

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	payload := map[string]any{
		"model":       c.model,
		"temperature": params.Temperature,
	}
	if params.MaxTokens > 0 {
		payload["max_tokens"] = params.MaxTokens
	}
	if len(params.Stop) > 0 {
		payload["stop"] = params.Stop
	}

	path := "/v1/completions"
	if c.api == APIChat {
		path = "/v1/chat/completions"
		payload["messages"] = []map[string]string{{"role": "user", "content": prompt}}
	} else {
		payload["prompt"] = prompt
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal %s payload: %w", c.api, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", c.api, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	rawRespBody, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Choices []struct {
			Text    string `json:"text"`
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return "", fmt.Errorf("decode %s response: %w", c.api, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty %s choices", c.api)
	}
	if c.api == APIChat {
		return parsed.Choices[0].Message.Content, nil
	}
	return parsed.Choices[0].Text, nil
}

// Probe lists the served models and fails unless the configured model is
// among them. Servers that report no models at all are accepted.
func (c *OpenAIClient) Probe(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return fmt.Errorf("build models request: %w", err)
	}
	c.authorize(httpReq)

	rawRespBody, err := c.do(httpReq)
	if err != nil {
		return err
	}
	var parsed struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawRespBody, &parsed); err != nil {
		return fmt.Errorf("decode models response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil
	}
	for _, model := range parsed.Data {
		if model.ID == c.model {
			return nil
		}
	}
	return fmt.Errorf("model %q is not served by %s", c.model, c.baseURL)
}

func (c *OpenAIClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *OpenAIClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read %s response body: %w", req.URL.Path, err)
	}
	if int64(len(rawRespBody)) > c.maxBody && resp.StatusCode < 400 {
		return nil, fmt.Errorf("%s response body exceeds %d bytes", req.URL.Path, c.maxBody)
	}
	if resp.StatusCode >= 400 {
		excerpt := string(rawRespBody)
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, fmt.Errorf("%s failed status=%d body=%s", req.URL.Path, resp.StatusCode, strings.TrimSpace(excerpt))
	}
	return rawRespBody, nil
}
