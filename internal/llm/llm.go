package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts the vision model used for page classification, OCR
// extraction and text completions.
type Client interface {
	// ClassifyPage returns the model's raw label for a rendered page
	// image. Callers normalize the label; the client does not.
	ClassifyPage(ctx context.Context, image []byte) (string, error)

	// ExtractPage runs OCR-style structured extraction over a page image
	// and returns a JSON object with whatever the model could read.
	ExtractPage(ctx context.Context, image []byte, docType string) (json.RawMessage, error)

	// Complete runs a plain JSON-mode completion. maxTokens bounds the
	// response; the caller owns the budget.
	Complete(ctx context.Context, system, user string, maxTokens int) (json.RawMessage, error)
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub used when no provider is configured. Jobs
// processed against it fail cleanly instead of panicking.
type PlaceholderClient struct{}

func (PlaceholderClient) ClassifyPage(ctx context.Context, image []byte) (string, error) {
	_ = ctx
	_ = image
	return "", ErrNotImplemented
}

func (PlaceholderClient) ExtractPage(ctx context.Context, image []byte, docType string) (json.RawMessage, error) {
	_ = ctx
	_ = image
	_ = docType
	return nil, ErrNotImplemented
}

func (PlaceholderClient) Complete(ctx context.Context, system, user string, maxTokens int) (json.RawMessage, error) {
	_ = ctx
	_ = system
	_ = user
	_ = maxTokens
	return nil, ErrNotImplemented
}
