// Package resolver expands short request ID prefixes typed on the command line.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/hri/pkg/blackboard"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// ResponseScanner lists stored response IDs by prefix.
type ResponseScanner interface {
	ScanResponses(ctx context.Context, prefix string) ([]string, error)
	GetResponse(ctx context.Context, requestID string) (*blackboard.ResponseEvent, error)
}

// ResolveRequestID resolves a short request ID prefix to the full UUID of a
// stored response. A full UUID is checked for existence and returned as-is.
func ResolveRequestID(ctx context.Context, src ResponseScanner, shortID string) (string, error) {
	if len(shortID) == 36 && strings.Count(shortID, "-") == 4 {
		if _, err := src.GetResponse(ctx, shortID); err != nil {
			if blackboard.IsNotFound(err) {
				return "", &NotFoundError{ShortID: shortID}
			}
			return "", fmt.Errorf("failed to verify response existence: %w", err)
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	matches, err := src.ScanResponses(ctx, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for response: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no stored response matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no responses found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple stored responses matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d responses", e.ShortID, len(e.Matches))
}

// Suggestions lists up to five matching IDs for display.
func (e *AmbiguousError) Suggestions() []string {
	n := len(e.Matches)
	if n > 5 {
		n = 5
	}
	out := append([]string(nil), e.Matches[:n]...)
	if len(e.Matches) > 5 {
		out = append(out, fmt.Sprintf("...and %d more", len(e.Matches)-5))
	}
	return out
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
