package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mw "github.com/swaraj/complaints-backend/internal/adapters/primary/http/middleware"
	apperrors "github.com/swaraj/complaints-backend/internal/core/errors"
)

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	return mw.GetRequestID(ctx)
}

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorResponse carries field-level validation errors.
type ValidationErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// ErrorHandler translates errors into HTTP responses and logs them.
type ErrorHandler struct {
	logger *slog.Logger
}

func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle writes the HTTP response for err. AppError and ValidationErrors
// carry their own status; anything else is mapped through the domain error
// taxonomy, with unknown errors becoming an opaque 500.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.logError(r, appErr.StatusCode, appErr.Err)
		WriteJSON(w, appErr.StatusCode, ErrorResponse{
			Error:   appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		})
		return
	}

	var validationErrs *apperrors.ValidationErrors
	if errors.As(err, &validationErrs) {
		h.logError(r, http.StatusBadRequest, err)
		WriteJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: validationErrs.Errors,
		})
		return
	}

	statusCode, response := h.mapDomainError(err)
	h.logError(r, statusCode, err)
	WriteJSON(w, statusCode, response)
}

// mapDomainError converts domain sentinel errors to HTTP responses.
func (h *ErrorHandler) mapDomainError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorResponse{
			Error: "Authentication required",
			Code:  "UNAUTHORIZED",
		}
	case errors.Is(err, apperrors.ErrSelfUpvote):
		return http.StatusForbidden, ErrorResponse{
			Error: "You cannot upvote your own complaint",
			Code:  "SELF_UPVOTE",
		}
	case errors.Is(err, apperrors.ErrComplaintNotPublic):
		return http.StatusForbidden, ErrorResponse{
			Error: "This complaint is not open for engagement",
			Code:  "COMPLAINT_NOT_PUBLIC",
		}
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{
			Error: "You do not have permission to perform this action",
			Code:  "FORBIDDEN",
		}
	case errors.Is(err, apperrors.ErrComplaintNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: "Complaint not found",
			Code:  "COMPLAINT_NOT_FOUND",
		}
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: "Resource not found",
			Code:  "NOT_FOUND",
		}
	case errors.Is(err, apperrors.ErrComplaintIDRequired),
		errors.Is(err, apperrors.ErrUserIDRequired),
		errors.Is(err, apperrors.ErrBadRequest):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_ERROR",
		}
	case errors.Is(err, apperrors.ErrTransientStore):
		// The write lost a serialization conflict or timed out. The client
		// can safely retry the toggle.
		return http.StatusServiceUnavailable, ErrorResponse{
			Error: "The service is temporarily unavailable. Please retry.",
			Code:  "TRANSIENT_STORE_ERROR",
		}
	case errors.Is(err, apperrors.ErrRateLimited):
		return http.StatusTooManyRequests, ErrorResponse{
			Error: "Too many requests. Please try again later.",
			Code:  "RATE_LIMITED",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "An unexpected error occurred",
			Code:  "INTERNAL_ERROR",
		}
	}
}

func (h *ErrorHandler) logError(r *http.Request, statusCode int, err error) {
	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", statusCode,
		"error", err.Error(),
	}

	switch {
	case statusCode >= 500:
		h.logger.ErrorContext(r.Context(), "server error", attrs...)
	case statusCode >= 400:
		h.logger.WarnContext(r.Context(), "client error", attrs...)
	default:
		h.logger.InfoContext(r.Context(), "request error", attrs...)
	}
}

// HandleError reports whether err was non-nil and, if so, writes the error
// response. Callers return immediately when it reports true.
func HandleError(w http.ResponseWriter, r *http.Request, err error, handler *ErrorHandler) bool {
	if err != nil {
		handler.Handle(w, r, err)
		return true
	}
	return false
}
