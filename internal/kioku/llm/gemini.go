package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini adapter.
type GeminiConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL string
	Model   string
	Timeout time.Duration
}

type geminiProvider struct {
	cfg GeminiConfig
}

// NewGemini returns a Provider backed by the Gemini API. The SDK client is
// created per call so that it inherits the request context.
func NewGemini(cfg GeminiConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &geminiProvider{cfg: cfg}, nil
}

func (p *geminiProvider) clientConfig() *genai.ClientConfig {
	cc := &genai.ClientConfig{
		APIKey:     p.cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: p.cfg.Timeout},
	}
	if p.cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.cfg.BaseURL}
	}
	return cc
}

// buildGeminiRequest maps a CompletionRequest onto GenerateContent arguments.
func buildGeminiRequest(req CompletionRequest, defaultModel string) (string, []*genai.Content, *genai.GenerateContentConfig) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}

	system, rest := splitSystem(req.Messages)
	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	return model, contents, config
}

// Complete sends one GenerateContent request.
func (p *geminiProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	client, err := genai.NewClient(ctx, p.clientConfig())
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model, contents, config := buildGeminiRequest(req, p.cfg.Model)
	resp, err := client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return nil, fmt.Errorf("gemini: %w", ErrRateLimit)
		}
		return nil, fmt.Errorf("gemini: %w", err)
	}

	out := &CompletionResponse{
		Message: Message{Role: RoleAssistant, Content: resp.Text()},
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}
