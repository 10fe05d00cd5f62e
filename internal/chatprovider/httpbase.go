package chatprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/aios/organizer/internal/orgerrors"
	"github.com/aios/organizer/internal/telemetry"
)

// httpCharLimits documents each variant's request-size cap: a provider
// rejects oversize prompts rather than truncating them silently. These are
// conservative char-based proxies for each vendor's token budget.
var httpCharLimits = map[Variant]int{
	VariantOpenAI:   128_000 * 3,
	VariantGrok:     128_000 * 3,
	VariantDeepseek: 64_000 * 3,
	VariantOllama:   32_000 * 3,
	VariantLMStudio: 32_000 * 3,
}

// chatMessage mirrors internal/ai/providers.OpenAIMessage, shared across
// variants since every configured backend speaks an OpenAI-compatible chat
// schema.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type chatAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type chatResponse struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []chatChoice  `json:"choices"`
	Usage   chatUsage     `json:"usage"`
	Error   *chatAPIError `json:"error,omitempty"`
}

// httpProvider is the shared implementation backing all five HTTP-speaking
// variants, generalized from internal/ai/providers.OpenAIProvider and
// OllamaClient into one configurable shape.
type httpProvider struct {
	variant    Variant
	model      string
	baseURL    string
	apiKey     string
	supportsCV bool

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
	tracer     trace.Tracer
	usage      Usage
}

// Config configures a single chat provider instance.
type Config struct {
	Variant       Variant
	Model         string
	BaseURL       string
	APIKey        string
	RequestsPerSecond float64
	Logger        *logrus.Logger
}

var defaultBaseURL = map[Variant]string{
	VariantOpenAI:   "https://api.openai.com/v1",
	VariantGrok:     "https://api.x.ai/v1",
	VariantDeepseek: "https://api.deepseek.com/v1",
	VariantOllama:   "http://localhost:11434/v1",
	VariantLMStudio: "http://localhost:1234/v1",
}

var visionCapable = map[Variant]bool{
	VariantOpenAI: true,
	VariantGrok:   true,
	VariantOllama: true,
}

// New constructs a Provider for the given variant. Differences in API key,
// base URL, and model are resolved once here; the pipeline never branches
// on variant again.
func New(cfg Config) (Provider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("chatprovider: model is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL[cfg.Variant]
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NewLogger("info", "json")
	}

	return &httpProvider{
		variant:    cfg.Variant,
		model:      cfg.Model,
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		supportsCV: visionCapable[cfg.Variant],
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		logger:     logger,
		tracer:     telemetry.Tracer("chatprovider"),
	}, nil
}

func (p *httpProvider) Variant() Variant { return p.variant }
func (p *httpProvider) Model() string    { return p.model }

func (p *httpProvider) checkSize(prompt string) error {
	limit, ok := httpCharLimits[p.variant]
	if !ok {
		return nil
	}
	if len(prompt) > limit {
		return &PromptTooLargeError{Variant: p.variant, Limit: limit, Got: len(prompt)}
	}
	return nil
}

func (p *httpProvider) Chat(ctx context.Context, prompt string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "httpProvider.Chat")
	defer span.End()

	if err := p.checkSize(prompt); err != nil {
		return "", err
	}

	return p.complete(ctx, []chatMessage{{Role: "user", Content: prompt}})
}

func (p *httpProvider) Vision(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	ctx, span := p.tracer.Start(ctx, "httpProvider.Vision")
	defer span.End()

	if !p.supportsCV {
		return "", ErrVisionUnsupported
	}
	if err := p.checkSize(prompt); err != nil {
		return "", err
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	content := []map[string]any{
		{"type": "text", "text": prompt},
		{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
	}
	return p.complete(ctx, []chatMessage{{Role: "user", Content: content}})
}

func (p *httpProvider) complete(ctx context.Context, messages []chatMessage) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", orgerrors.Cancelled(err)
	}

	reqBody := chatRequest{Model: p.model, Messages: messages, Stream: false}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("chatprovider: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("chatprovider: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", &NetworkError{Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkError{Cause: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &AuthError{Cause: fmt.Errorf("status %d: %s", resp.StatusCode, body)}
	}
	if resp.StatusCode >= 500 {
		return "", &ServerError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("%s", body)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ServerError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &ServerError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("%s: %s", parsed.Error.Type, parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &ServerError{StatusCode: resp.StatusCode, Cause: fmt.Errorf("empty choices")}
	}

	p.usage.PromptTokens += parsed.Usage.PromptTokens
	p.usage.CompletionTokens += parsed.Usage.CompletionTokens
	p.usage.TotalTokens += parsed.Usage.TotalTokens
	p.usage.Requests++

	if s, ok := parsed.Choices[0].Message.Content.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", parsed.Choices[0].Message.Content), nil
}
