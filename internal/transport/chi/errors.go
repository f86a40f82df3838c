package chi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobrag/internal/domain"
	"github.com/kailas-cloud/jobrag/internal/logger"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest        = "bad_request"
	CodeUnauthorized      = "unauthorized"
	CodeInvalidArgument   = "invalid_argument"
	CodeLimitExceeded     = "limit_exceeded"
	CodeNotFound          = "not_found"
	CodeVectorDimMismatch = "vector_dim_mismatch"
	CodeIntegrity         = "integrity_violation"
	CodeUnreadable        = "unreadable_document"
	CodeRateLimited       = "rate_limited"
	CodeQuotaExceeded     = "embedding_quota_exceeded"
	CodeProviderError     = "embedding_provider_error"
	CodeGenerationError   = "generation_error"
	CodeSourceFetch       = "source_fetch_failed"
	CodeNotifyFailed      = "notification_failed"
	CodeUnavailable       = "unavailable"
	CodeNotImplemented    = "not_implemented"
	CodeInternal          = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// errorHandlers are tried in order; specific sentinels precede the classes they wrap.
var errorHandlers = []errorHandler{
	callerHandler(domain.ErrLimitExceeded, http.StatusBadRequest, CodeLimitExceeded),
	callerHandler(domain.ErrInvalidArgument, http.StatusBadRequest, CodeInvalidArgument),
	sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
	sentinelHandler(domain.ErrVectorDimMismatch, http.StatusConflict, CodeVectorDimMismatch),
	sentinelHandler(domain.ErrIntegrity, http.StatusConflict, CodeIntegrity),
	sentinelHandler(domain.ErrUnreadableDocument, http.StatusUnprocessableEntity, CodeUnreadable),
	sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
	sentinelHandler(domain.ErrEmbeddingQuotaExceeded, http.StatusTooManyRequests, CodeQuotaExceeded),
	sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeProviderError),
	sentinelHandler(domain.ErrGenerationError, http.StatusBadGateway, CodeGenerationError),
	sentinelHandler(domain.ErrSourceFetch, http.StatusBadGateway, CodeSourceFetch),
	sentinelHandler(domain.ErrNotifyFailed, http.StatusBadGateway, CodeNotifyFailed),
	sentinelHandler(domain.ErrTransient, http.StatusServiceUnavailable, CodeUnavailable),
	sentinelHandler(context.DeadlineExceeded, http.StatusServiceUnavailable, CodeUnavailable),
	sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
}

// sentinelHandler answers with the sentinel's own text so internals never leak.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// callerHandler answers with the full message: caller errors describe the caller's input.
func callerHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	for _, h := range errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
