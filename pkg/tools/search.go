package tools

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SearchToolName is the name the model uses to request a web search.
const SearchToolName = "search"

// Backend answers a search query with a short summary.
type Backend interface {
	Search(ctx context.Context, query string) (string, error)
}

// SearchTool exposes a Backend to the model. It is meant for real-time
// information only: prices, weather, news.
type SearchTool struct {
	Backend Backend
	Logger  *zap.Logger
}

// NewSearchTool wraps backend; a nil backend uses StubBackend.
func NewSearchTool(backend Backend, logger *zap.Logger) *SearchTool {
	if backend == nil {
		backend = &StubBackend{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchTool{Backend: backend, Logger: logger}
}

func (s *SearchTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        SearchToolName,
		Description: "Searches the web for the given query and returns a summary of the results. Use this only for real-time information like market prices, weather or news, never for general knowledge.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query to look up online.",
				},
			},
			"required": []string{"query"},
		},
		Examples: []map[string]any{{"query": "wheat mandi price today Punjab"}},
	}
}

// Invoke runs the search. Backend failures are reported as tool call failures.
func (s *SearchTool) Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	query := req.StringArg("query")
	if query == "" {
		return ToolResponse{}, fmt.Errorf("search: failed to call tool: query is required")
	}
	s.Logger.Info("search tool invoked", zap.String("query", query))
	summary, err := s.Backend.Search(ctx, query)
	if err != nil {
		s.Logger.Warn("search backend failed", zap.String("query", query), zap.Error(err))
		return ToolResponse{}, fmt.Errorf("search: failed to call tool: %w", err)
	}
	return ToolResponse{Content: summary, Metadata: map[string]string{"query": query}}, nil
}

// StubBackend simulates a search service with a fixed delay and a placeholder summary.
type StubBackend struct {
	Delay time.Duration
}

const defaultStubDelay = 500 * time.Millisecond

// Search waits for the configured delay (500ms when zero) and returns a
// placeholder summary. A negative delay disables the wait.
func (b *StubBackend) Search(ctx context.Context, query string) (string, error) {
	delay := b.Delay
	if delay == 0 {
		delay = defaultStubDelay
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return StubSummary(query), nil
}

// StubSummary is the placeholder text returned by StubBackend.
func StubSummary(query string) string {
	return fmt.Sprintf("Search results for %q: [Mock Result] According to web sources, the information related to your query suggests... (Note: This is a placeholder response. Real-time search not implemented).", query)
}
