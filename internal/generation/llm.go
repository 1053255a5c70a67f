package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"google.golang.org/api/option"

	"github.com/studyhub/assessment-service/internal/config"
)

var (
	ErrNoJSON        = errors.New("no JSON object found in LLM response")
	ErrEmptyResponse = errors.New("LLM returned an empty response")
)

// Caller sends one prompt to a language model and returns its raw text
type Caller interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// OllamaCaller calls a local model through langchaingo
type OllamaCaller struct {
	llm         *ollama.LLM
	temperature float64
}

func NewOllamaCaller(serverURL, model string, timeout time.Duration) (*OllamaCaller, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(serverURL),
		ollama.WithModel(model),
		ollama.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &OllamaCaller{llm: llm, temperature: 0.4}, nil
}

func (o *OllamaCaller) Call(ctx context.Context, prompt string) (string, error) {
	response, err := o.llm.Call(ctx, prompt, llms.WithTemperature(o.temperature))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("LLM request timed out: %w", err)
		}
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	return response, nil
}

// GeminiCaller calls a hosted Gemini model
type GeminiCaller struct {
	client *genai.Client
	model  string
}

func NewGeminiCaller(ctx context.Context, apiKey, model string) (*GeminiCaller, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiCaller{client: client, model: model}, nil
}

func (g *GeminiCaller) Call(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.GenerativeModel(g.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini call failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

func (g *GeminiCaller) Close() error {
	return g.client.Close()
}

// NewCaller builds the caller selected by the generator configuration
func NewCaller(ctx context.Context, cfg config.GeneratorConfig) (Caller, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiCaller(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case config.ProviderOllama, "":
		return NewOllamaCaller(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Provider)
	}
}

// ExtractJSON strips reasoning blocks and code fences and returns the text
// between the first '{' and the last '}'.
func ExtractJSON(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return "", ErrEmptyResponse
	}

	for {
		start := strings.Index(cleaned, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(cleaned, "</think>")
		if end == -1 || end < start {
			cleaned = cleaned[:start]
			break
		}
		cleaned = cleaned[:start] + cleaned[end+len("</think>"):]
	}

	jsonStart := strings.Index(cleaned, "{")
	jsonEnd := strings.LastIndex(cleaned, "}")
	if jsonStart == -1 || jsonEnd <= jsonStart {
		return "", ErrNoJSON
	}
	return cleaned[jsonStart : jsonEnd+1], nil
}
