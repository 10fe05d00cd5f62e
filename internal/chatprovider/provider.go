// Package chatprovider implements the single abstract Chat Provider
// capability the Organization Pipeline depends on: chat(prompt) -> text,
// with an optional vision(image, prompt) capability. The pipeline never
// branches on which vendor backs a Provider; that's resolved once here, at
// construction, generalizing the per-vendor
// internal/ai/providers.{OpenAIProvider,OllamaClient} structs into one
// shared HTTP-based shape (httpbase.go) plus five thin variant configs.
package chatprovider

import "context"

// Variant identifies which configured backend a Provider talks to.
type Variant string

const (
	VariantOpenAI   Variant = "openai"
	VariantGrok     Variant = "grok"
	VariantDeepseek Variant = "deepseek"
	VariantOllama   Variant = "ollama"
	VariantLMStudio Variant = "lmstudio"
)

// Provider is the capability the pipeline and JSON coercer depend on.
// Responses are treated as opaque text; Provider implementations never
// parse JSON themselves.
type Provider interface {
	// Chat sends prompt and returns the model's raw text response.
	Chat(ctx context.Context, prompt string) (string, error)

	// Vision sends an image plus a prompt and returns the model's raw text
	// caption. Returns ErrVisionUnsupported if the variant has no vision
	// capability.
	Vision(ctx context.Context, image []byte, mimeType, prompt string) (string, error)

	// Variant reports which backend this Provider talks to, for logging.
	Variant() Variant

	// Model reports the configured model identifier.
	Model() string
}

// Usage mirrors internal/ai/providers.ProviderUsage bookkeeping, tracked
// per Provider instance. It is not exposed through the Provider interface
// or the daemon's metrics.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Requests         int64
}
