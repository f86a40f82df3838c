// Package rag answers questions grounded in the tenant's jobs and resume.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain/corpus"
	"github.com/kailas-cloud/jobrag/internal/domain/search"
	"github.com/kailas-cloud/jobrag/internal/usecase/retrieval"
)

// DefaultSystemPrompt frames the model as a recruiter reading the supplied context.
const DefaultSystemPrompt = "You are a senior software engineer and recruiter. " +
	"Use the provided context to answer the question. Cite relevant context blocks when useful. " +
	"Answer as clearly and practically as possible."

// InsufficientInformation is returned without calling the model when no context was found.
const InsufficientInformation = "I don't have enough information to answer that: " +
	"no jobs or resume have been indexed for this account yet."

// Default number of context chunks per corpus.
const (
	DefaultKJobs    = 5
	DefaultKResumes = 5
)

// Answer is a generated reply with the context it was grounded on.
type Answer struct {
	Answer   string         `json:"answer"`
	Context  search.Results `json:"context"`
	Grounded bool           `json:"grounded"`
}

// Service retrieves context and asks the generator.
type Service struct {
	retriever Retriever
	generator Generator
	system    string
	kJobs     int
	kResumes  int
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a RAG service.
func New(retriever Retriever, generator Generator, logger *zap.Logger) *Service {
	return &Service{
		retriever: retriever,
		generator: generator,
		system:    DefaultSystemPrompt,
		kJobs:     DefaultKJobs,
		kResumes:  DefaultKResumes,
		logger:    logger,
	}
}

// WithSystemPrompt overrides the system instruction.
func (s *Service) WithSystemPrompt(p string) *Service {
	if strings.TrimSpace(p) != "" {
		s.system = p
	}
	return s
}

// WithK sets how many chunks of each corpus go into the context.
func (s *Service) WithK(kJobs, kResumes int) *Service {
	if kJobs >= 0 {
		s.kJobs = kJobs
	}
	if kResumes >= 0 {
		s.kResumes = kResumes
	}
	return s
}

// WithGenerateTimeout bounds a single generator call. Zero leaves it unbounded.
func (s *Service) WithGenerateTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Ask answers question from the tenant's corpora.
func (s *Service) Ask(ctx context.Context, tenant, question string) (Answer, error) {
	hits, err := s.retriever.Retrieve(ctx, tenant, retrieval.Request{
		Query:    question,
		KJobs:    s.kJobs,
		KResumes: s.kResumes,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve context: %w", err)
	}
	if hits.Empty() {
		return Answer{Answer: InsufficientInformation, Context: hits}, nil
	}

	genCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.generator.Generate(genCtx, s.system, BuildPrompt(hits, question))
	if err != nil {
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	s.logger.Info("Question answered",
		zap.String("tenant", tenant),
		zap.Int("job_hits", len(hits.Jobs)),
		zap.Int("resume_hits", len(hits.Resumes)),
		zap.Duration("duration", time.Since(start)),
	)
	return Answer{Answer: strings.TrimSpace(text), Context: hits, Grounded: true}, nil
}

// BuildContext renders job hits then resume hits, each as a labeled block.
func BuildContext(hits search.Results) string {
	var b strings.Builder
	writeBlocks(&b, corpus.Job, hits.Jobs)
	writeBlocks(&b, corpus.Resume, hits.Resumes)
	return b.String()
}

func writeBlocks(b *strings.Builder, t corpus.Type, hits []search.Hit) {
	for _, h := range hits {
		fmt.Fprintf(b, "\n[%s] (score=%.3f)\n%s\n", t.Label(), h.Score, h.Chunk.Text)
	}
}

// BuildPrompt wraps the context and the question into the user prompt.
func BuildPrompt(hits search.Results, question string) string {
	return "Context:\n" + BuildContext(hits) + "\nQuestion: " + strings.TrimSpace(question) + "\n"
}
