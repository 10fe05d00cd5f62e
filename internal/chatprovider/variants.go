package chatprovider

import "github.com/sirupsen/logrus"

// NewOpenAI, NewGrok, NewDeepseek, NewOllama, and NewLMStudio are thin
// constructors over the shared httpProvider, kept as named entry points so
// callers (and tests) don't have to spell out a Config literal's Variant
// field by hand — a one-struct-per-vendor feel without duplicating the
// HTTP plumbing five times.

func NewOpenAI(model, apiKey string, logger *logrus.Logger) (Provider, error) {
	return New(Config{Variant: VariantOpenAI, Model: model, APIKey: apiKey, Logger: logger})
}

func NewGrok(model, apiKey string, logger *logrus.Logger) (Provider, error) {
	return New(Config{Variant: VariantGrok, Model: model, APIKey: apiKey, Logger: logger})
}

func NewDeepseek(model, apiKey string, logger *logrus.Logger) (Provider, error) {
	return New(Config{Variant: VariantDeepseek, Model: model, APIKey: apiKey, Logger: logger})
}

func NewOllama(model, baseURL string, logger *logrus.Logger) (Provider, error) {
	return New(Config{Variant: VariantOllama, Model: model, BaseURL: baseURL, Logger: logger})
}

func NewLMStudio(model, baseURL string, logger *logrus.Logger) (Provider, error) {
	return New(Config{Variant: VariantLMStudio, Model: model, BaseURL: baseURL, Logger: logger})
}
