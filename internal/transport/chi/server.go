// Package chi exposes the jobrag use cases over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	domcorpus "github.com/kailas-cloud/jobrag/internal/domain/corpus"
	"github.com/kailas-cloud/jobrag/internal/domain/job"
	dommatch "github.com/kailas-cloud/jobrag/internal/domain/match"
	"github.com/kailas-cloud/jobrag/internal/domain/resume"
	domusage "github.com/kailas-cloud/jobrag/internal/domain/usage"
	"github.com/kailas-cloud/jobrag/internal/metrics"
	healthuc "github.com/kailas-cloud/jobrag/internal/usecase/health"
	retrievaluc "github.com/kailas-cloud/jobrag/internal/usecase/retrieval"
)

// Options hold request defaults and limits.
type Options struct {
	APIKeys          []string
	DefaultKJobs     int
	DefaultKResumes  int
	DefaultThreshold float64
	MaxBodyBytes     int64
}

// Services bundles the use cases the server dispatches to.
type Services struct {
	Corpus    CorpusService
	Retrieval RetrievalService
	Match     MatchService
	Notify    NotifyService
	Ask       AskService
	Usage     UsageService
	Health    HealthService
}

// Server implements the jobrag HTTP API.
type Server struct {
	svc    Services
	opts   Options
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, opts Options, logger *zap.Logger) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 32 << 20
	}
	if opts.DefaultThreshold == 0 {
		opts.DefaultThreshold = dommatch.DefaultThreshold
	}
	return &Server{svc: svc, opts: opts, logger: logger}
}

// Handler returns the routed handler with the full middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.opts.APIKeys))
	r.Use(metrics.Middleware("/health", "/metrics"))

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/v1/usage", s.GetUsage)
	r.Route("/v1/tenants/{tenant}", func(r chi.Router) {
		r.Put("/jobs", s.ReplaceJobs)
		r.Get("/jobs", s.ListJobs)
		r.Put("/resumes", s.ReplaceResumes)
		r.Post("/resume", s.UploadResume)
		r.Get("/corpora/{type}/chunks", s.ListChunks)
		r.Post("/search", s.Search)
		r.Post("/matches", s.Match)
		r.Post("/match-runs", s.RunMatchNotifications)
		r.Post("/ask", s.Ask)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

type replaceJobsRequest struct {
	Jobs *[]job.Job `json:"jobs"`
}

// ReplaceJobs handles PUT /v1/tenants/{tenant}/jobs.
func (s *Server) ReplaceJobs(w http.ResponseWriter, r *http.Request) {
	var req replaceJobsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Jobs == nil {
		writeError(w, http.StatusBadRequest, CodeInvalidArgument, "jobs is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.svc.Corpus.ReplaceJobs(ctx, tenant(r), *req.Jobs)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, report)
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// ListJobs handles GET /v1/tenants/{tenant}/jobs.
func (s *Server) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.svc.Corpus.Jobs(r.Context(), tenant(r))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[job.Job]{Items: jobs, Total: len(jobs)})
}

type resumeSource struct {
	URL      string `json:"url,omitempty"`
	Content  []byte `json:"content_base64,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Name     string `json:"name,omitempty"`
}

type replaceResumesRequest struct {
	Sources []resumeSource `json:"sources"`
}

// ReplaceResumes handles PUT /v1/tenants/{tenant}/resumes.
func (s *Server) ReplaceResumes(w http.ResponseWriter, r *http.Request) {
	var req replaceResumesRequest
	if !s.decode(w, r, &req) {
		return
	}

	sources := make([]resume.Source, len(req.Sources))
	for i, src := range req.Sources {
		sources[i] = resume.Source{URL: src.URL, Content: src.Content, MIMEType: src.MIMEType, Name: src.Name}
	}
	s.replaceResumes(w, r, sources)
}

// UploadResume handles POST /v1/tenants/{tenant}/resume with a multipart "file" field.
func (s *Server) UploadResume(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid upload: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid upload: "+err.Error())
		return
	}

	s.replaceResumes(w, r, []resume.Source{{
		Content:  data,
		MIMEType: header.Header.Get("Content-Type"),
		Name:     header.Filename,
	}})
}

func (s *Server) replaceResumes(w http.ResponseWriter, r *http.Request, sources []resume.Source) {
	ctx, usage := domain.NewContextWithUsage(r.Context())
	report, err := s.svc.Corpus.ReplaceResumes(ctx, tenant(r), sources)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, report)
}

type chunksResponse struct {
	CorpusType string            `json:"corpus_type"`
	Generation string            `json:"generation,omitempty"`
	UpdatedAt  *time.Time        `json:"updated_at,omitempty"`
	Dimensions int               `json:"dimensions"`
	Items      []domcorpus.Chunk `json:"items"`
	Total      int               `json:"total"`
}

// ListChunks handles GET /v1/tenants/{tenant}/corpora/{type}/chunks.
func (s *Server) ListChunks(w http.ResponseWriter, r *http.Request) {
	t, err := domcorpus.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	snap, err := s.svc.Corpus.All(r.Context(), tenant(r), t)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	resp := chunksResponse{
		CorpusType: string(t),
		Generation: snap.Generation,
		Dimensions: snap.Dim(),
		Items:      snap.Chunks,
		Total:      snap.Len(),
	}
	if resp.Items == nil {
		resp.Items = []domcorpus.Chunk{}
	}
	if !snap.UpdatedAt.IsZero() {
		resp.UpdatedAt = &snap.UpdatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

type searchRequest struct {
	Query    string `json:"query"`
	KJobs    *int   `json:"k_jobs"`
	KResumes *int   `json:"k_resumes"`
}

// Search handles POST /v1/tenants/{tenant}/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.svc.Retrieval.Retrieve(ctx, tenant(r), retrievaluc.Request{
		Query:    req.Query,
		KJobs:    derefInt(req.KJobs, s.opts.DefaultKJobs),
		KResumes: derefInt(req.KResumes, s.opts.DefaultKResumes),
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, results)
}

type matchRequest struct {
	Threshold *float64 `json:"threshold"`
	Recipient string   `json:"recipient,omitempty"`
}

type matchResponse struct {
	Threshold float64            `json:"threshold"`
	Items     []dommatch.Matched `json:"items"`
	Total     int                `json:"total"`
}

// Match handles POST /v1/tenants/{tenant}/matches.
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !s.decode(w, r, &req) {
		return
	}

	threshold := derefFloat(req.Threshold, s.opts.DefaultThreshold)
	matches, err := s.svc.Match.MatchJobs(r.Context(), tenant(r), threshold)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Threshold: threshold, Items: matches, Total: len(matches)})
}

// RunMatchNotifications handles POST /v1/tenants/{tenant}/match-runs.
func (s *Server) RunMatchNotifications(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !s.decode(w, r, &req) {
		return
	}

	report, err := s.svc.Notify.Run(r.Context(), tenant(r), req.Recipient, derefFloat(req.Threshold, s.opts.DefaultThreshold))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask handles POST /v1/tenants/{tenant}/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	answer, err := s.svc.Ask.Ask(ctx, tenant(r), req.Question)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, answer)
}

// GetUsage handles GET /v1/usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, err := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	report, err := s.svc.Usage.Report(r.Context(), period)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HealthCheck handles GET /health. A degraded service still answers 200.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.svc.Health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeLimitExceeded,
				fmt.Sprintf("request body above %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func tenant(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "tenant"))
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.FormatInt(usage.TotalTokens(), 10))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func derefInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func derefFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
