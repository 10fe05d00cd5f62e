// Package coercer implements the self-correcting JSON parser that converts
// free-text LLM output into a schema-checked record. The retry policy is
// split into a pure function, NextPrompt(prompt, history) -> nextPrompt,
// composed by Coerce with the Chat Provider — keeping the policy testable
// without a live model.
package coercer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aios/organizer/internal/orgerrors"
	"github.com/aios/organizer/internal/telemetry"
)

// Chatter is the minimal capability Coerce needs from a Chat Provider.
// Defined locally (rather than depending on chatprovider.Provider directly)
// so callers can satisfy it with a bare func in tests.
type Chatter interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// Attempt records one failed parse/validate cycle.
type Attempt struct {
	N       int
	RawText string
	Err     error
}

// FailedError is returned once MaxAttempts is exhausted. It carries the
// full attempt history; its Error text names only the last attempt's
// error, and nothing in this module writes the history to a file.
type FailedError struct {
	Schema   string
	Attempts []Attempt
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("coercer: schema %q failed after %d attempts, last error: %v",
		e.Schema, len(e.Attempts), e.lastErr())
}

func (e *FailedError) lastErr() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// Options configures one Coerce invocation.
type Options struct {
	Schema        Schema
	MaxAttempts   int           // default 10
	RetryInterval time.Duration // default 1s

	// AllowedValues constrains specific required fields to a closed set,
	// e.g. {"selectedTemplateId": registry.IDs()} for template selection,
	// or {"selectedFolderPath": template.FolderStructure} when
	// enforceTemplateStructure is set. A value outside the set is a
	// validation failure like any other, feeding the retry loop.
	AllowedValues map[string][]string

	sleep func(time.Duration) // overridden in tests
}

const (
	defaultMaxAttempts   = 10
	defaultRetryInterval = time.Second
)

// Coerce drives the extract -> parse -> validate -> retry loop. On success
// it returns the validated record as a generic map
// (the pipeline's sub-steps translate it into typed structs / AnalysisResult
// fields). On exhaustion it returns a *FailedError.
func Coerce(ctx context.Context, chat Chatter, prompt string, opts Options) (map[string]any, error) {
	tracer := telemetry.Tracer("coercer")
	ctx, span := tracer.Start(ctx, "Coerce")
	defer span.End()

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	interval := opts.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	sleep := opts.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var attempts []Attempt
	currentPrompt := prompt

	for n := 1; n <= maxAttempts; n++ {
		raw, err := chat.Chat(ctx, currentPrompt)
		if err != nil {
			// Transport/auth/server errors are not content errors: the
			// coercer's retry budget is for JSON shape, not connectivity.
			return nil, orgerrors.Provider(err)
		}

		obj, verr := extractAndValidate(raw, opts)
		if verr == nil {
			return obj, nil
		}

		attempts = append(attempts, Attempt{N: n, RawText: raw, Err: verr})
		if n == maxAttempts {
			break
		}
		currentPrompt = NextPrompt(prompt, attempts)
		sleep(interval)
	}

	failed := &FailedError{Schema: opts.Schema.Name, Attempts: attempts}
	return nil, orgerrors.CoerceFailed(failed)
}

// NextPrompt re-emits the original prompt with the accumulated failure
// history appended under a "previous attempts failed" section, instructing
// the model to fix the specific issues observed. Pure function: same inputs
// always produce the same output, independent of any provider call.
func NextPrompt(originalPrompt string, history []Attempt) string {
	var b strings.Builder
	b.WriteString(originalPrompt)
	b.WriteString("\n\n--- previous attempts failed ---\n")
	b.WriteString("Your previous response(s) could not be parsed as valid JSON matching the required schema. Fix the specific issues below and respond with ONLY the corrected JSON object.\n\n")
	for _, a := range history {
		fmt.Fprintf(&b, "Attempt %d error: %v\nAttempt %d raw response:\n%s\n\n", a.N, a.Err, a.N, a.RawText)
	}
	return b.String()
}

// extractAndValidate strips markdown fences/prose, isolates the outermost
// {...} span, parses it, and checks required fields/types and any
// AllowedValues constraints.
func extractAndValidate(raw string, opts Options) (map[string]any, error) {
	span, err := extractJSONSpan(raw)
	if err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if err := validateSchema(obj, opts.Schema); err != nil {
		return nil, err
	}

	for field, allowed := range opts.AllowedValues {
		v, ok := obj[field]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("field %q must be a string to validate against allowed values", field)
		}
		if !contains(allowed, s) {
			return nil, fmt.Errorf("field %q value %q is not one of the allowed values %v", field, s, allowed)
		}
	}

	return obj, nil
}

// extractJSONSpan finds the outermost balanced {...} span in raw, skipping
// markdown fences and any leading/trailing prose.
func extractJSONSpan(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	start := strings.IndexByte(trimmed, '{')
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return trimmed[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

func validateSchema(obj map[string]any, schema Schema) error {
	for _, f := range schema.Required {
		v, ok := obj[f.Name]
		if !ok || v == nil {
			return fmt.Errorf("missing required field %q", f.Name)
		}
		if err := checkType(f.Name, v, f.Type); err != nil {
			return err
		}
	}
	return nil
}

func checkType(name string, v any, want string) error {
	switch want {
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Errorf("field %q: expected string, got %T", name, v)
		}
	case "number":
		switch v.(type) {
		case float64, json.Number:
		default:
			return fmt.Errorf("field %q: expected number, got %T", name, v)
		}
	case "bool":
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("field %q: expected bool, got %T", name, v)
		}
	case "array":
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("field %q: expected array, got %T", name, v)
		}
	case "object":
		if _, ok := v.(map[string]any); !ok {
			return fmt.Errorf("field %q: expected object, got %T", name, v)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Float64 is a convenience used by callers translating raw map values
// (e.g. "confidence") into typed float64 fields.
func Float64(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
