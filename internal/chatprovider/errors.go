package chatprovider

import (
	"errors"
	"fmt"
)

// ErrVisionUnsupported is returned by Vision on variants with no image
// capability (deepseek, lmstudio in their default configuration).
var ErrVisionUnsupported = errors.New("chatprovider: vision not supported by this variant")

// PromptTooLargeError is returned instead of silently truncating a prompt
// that exceeds a variant's documented token/character cap.
type PromptTooLargeError struct {
	Variant Variant
	Limit   int
	Got     int
}

func (e *PromptTooLargeError) Error() string {
	return fmt.Sprintf("chatprovider: prompt of %d chars exceeds %d char limit for %s", e.Got, e.Limit, e.Variant)
}

// AuthError, NetworkError, and ServerError let retry policy discriminate
// transport/auth failures (never retried by the pipeline) from content
// errors (retried by the JSON coercer).
type AuthError struct{ Cause error }

func (e *AuthError) Error() string { return fmt.Sprintf("chatprovider: authentication failed: %v", e.Cause) }
func (e *AuthError) Unwrap() error { return e.Cause }

type NetworkError struct{ Cause error }

func (e *NetworkError) Error() string { return fmt.Sprintf("chatprovider: network error: %v", e.Cause) }
func (e *NetworkError) Unwrap() error { return e.Cause }

type ServerError struct {
	StatusCode int
	Cause      error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("chatprovider: server error (status %d): %v", e.StatusCode, e.Cause)
}
func (e *ServerError) Unwrap() error { return e.Cause }
