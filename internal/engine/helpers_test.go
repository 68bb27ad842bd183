package engine

import (
	"context"
	"io"
	"log"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// stubSearch adapts a func to the SearchProvider interface.
type stubSearch struct {
	name string
	fn   func(ctx context.Context, req SearchRequest) ([]SearchRecord, error)
}

func (s stubSearch) Name() string { return s.name }
func (s stubSearch) Search(ctx context.Context, req SearchRequest) ([]SearchRecord, error) {
	return s.fn(ctx, req)
}

// stubGen adapts a func to the GenerationProvider interface.
type stubGen struct {
	name  string
	model string
	fn    func(ctx context.Context, req GenerationRequest) (GenerationResponse, error)
}

func (s stubGen) Name() string  { return s.name }
func (s stubGen) Model() string { return s.model }
func (s stubGen) Generate(ctx context.Context, req GenerationRequest) (GenerationResponse, error) {
	return s.fn(ctx, req)
}

// stubRunner adapts a func to the SearchRunner interface.
type stubRunner struct {
	fn func(ctx context.Context, query, sessionID string) (*AggregatedResult, error)
}

func (s stubRunner) RunSearch(ctx context.Context, query, sessionID string) (*AggregatedResult, error) {
	return s.fn(ctx, query, sessionID)
}
