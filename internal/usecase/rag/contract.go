package rag

import (
	"context"

	"github.com/kailas-cloud/jobrag/internal/domain/search"
	"github.com/kailas-cloud/jobrag/internal/usecase/retrieval"
)

// Retriever ranks the tenant's chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, tenant string, req retrieval.Request) (search.Results, error)
}

// Generator produces free text from a system instruction and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}
