package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrInvalidTrack      = errors.New("invalid track")
	ErrDeclined          = errors.New("declined")
	ErrPlaybackRejected  = errors.New("playback rejected")
	ErrSessionDestroyed  = errors.New("session destroyed")
	ErrNetworkError      = errors.New("network error")
	ErrTimeout           = errors.New("request timeout")
	ErrServerUnavailable = errors.New("server unavailable")
	ErrConfigNotFound    = errors.New("config file not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrUploadFailed      = errors.New("upload failed")
)

// WeradioError wraps an error with a user-friendly suggestion.
type WeradioError struct {
	Err        error
	Suggestion string
}

func (e *WeradioError) Error() string {
	return e.Err.Error()
}

func (e *WeradioError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &WeradioError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var wrErr *WeradioError
	if errors.As(err, &wrErr) && wrErr.Suggestion != "" {
		return wrErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	// Authentication errors
	if errors.Is(err, ErrNotAuthenticated) || strings.Contains(errStr, "not authenticated") ||
		strings.Contains(errStr, "authentication required") || strings.Contains(errStr, "invalid or expired token") {
		return "Run 'weradio auth login' to sign in"
	}

	if errors.Is(err, ErrInvalidTrack) || strings.Contains(errStr, "track not found") {
		return "Run 'weradio tracks' to refresh the library listing"
	}

	if errors.Is(err, ErrPlaybackRejected) || errors.Is(err, ErrPlayerNotFound) {
		return "Install ffplay or mpv, or set [player] command in your config"
	}

	// Stream not ready yet
	if errors.Is(err, ErrServerUnavailable) || strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "not ready") {
		return "The station is starting up. Wait a few seconds and try again"
	}

	// Network errors
	if errors.Is(err, ErrNetworkError) || errors.Is(err, ErrTimeout) ||
		strings.Contains(errStr, "network") || strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") {
		return "Check that the station server is reachable (see 'weradio config show')"
	}

	if errors.Is(err, ErrUploadFailed) || strings.Contains(errStr, "storage full") {
		return "Check the file format and the server's free space"
	}

	// Config errors
	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) || strings.Contains(errStr, "config") {
		return "Run 'weradio config init' to create a configuration file"
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "server error") {
		return "The station server is having issues. Try again in a moment"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// PartialResult represents a result that may have partial failures.
type PartialResult[T any] struct {
	Data   T
	Errors []error
}

// HasErrors returns true if there were any errors.
func (p *PartialResult[T]) HasErrors() bool {
	return len(p.Errors) > 0
}

// AddError adds an error to the partial result.
func (p *PartialResult[T]) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// ErrorSummary returns a summary of all errors.
func (p *PartialResult[T]) ErrorSummary() string {
	if len(p.Errors) == 0 {
		return ""
	}
	if len(p.Errors) == 1 {
		return p.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(p.Errors)))
	for i, err := range p.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}
