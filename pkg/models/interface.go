package models

import "context"

// File is an in-memory attachment passed alongside a prompt, e.g. a recorded
// voice clip. MIME is best-effort and normalized by each provider.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Agent is the generative-model capability. Implementations return either a
// string or a provider-specific value; use CompletionText to read it.
type Agent interface {
	Generate(ctx context.Context, prompt string) (any, error)
	GenerateWithFiles(ctx context.Context, prompt string, files []File) (any, error)
}
