package reasoning

import (
	"context"
	"strings"
)

// TypeStatic is a backend with canned answers.
const TypeStatic = "static"

// Static answers with params["answer"], with "{prompt}" replaced by the
// prompt. Without an answer it echoes the prompt.
type Static struct {
	answer string
}

// NewStatic is the Factory for TypeStatic.
func NewStatic(spec Spec) (Backend, error) {
	return &Static{answer: spec.Params["answer"]}, nil
}

func (s *Static) Ask(_ context.Context, prompt string) (string, error) {
	if s.answer == "" {
		return prompt, nil
	}
	return strings.ReplaceAll(s.answer, "{prompt}", prompt), nil
}
