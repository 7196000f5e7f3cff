package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/swaraj/complaints-backend/internal/adapters/primary/http/middleware"
	"github.com/swaraj/complaints-backend/internal/adapters/primary/validation"
	"github.com/swaraj/complaints-backend/internal/auth"
	"github.com/swaraj/complaints-backend/internal/core/domain"
	apperrors "github.com/swaraj/complaints-backend/internal/core/errors"
	"github.com/swaraj/complaints-backend/internal/core/ports"
	"github.com/swaraj/complaints-backend/internal/infrastructure/metrics"
)

// EngagementHandler handles HTTP requests for complaint engagement
type EngagementHandler struct {
	service      ports.EngagementService
	errorHandler *ErrorHandler
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewEngagementHandler creates a new engagement handler
func NewEngagementHandler(
	service ports.EngagementService,
	errorHandler *ErrorHandler,
	m *metrics.Metrics,
	logger *slog.Logger,
) *EngagementHandler {
	return &EngagementHandler{
		service:      service,
		errorHandler: errorHandler,
		metrics:      m,
		logger:       logger.With("handler", "engagement"),
	}
}

// Router sets up a new chi Router for all engagement routes.
func (h *EngagementHandler) Router() http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes sets up the routing for all engagement endpoints. Expected
// to be mounted under /complaints.
func (h *EngagementHandler) RegisterRoutes(r chi.Router) {
	r.Route("/{complaintID}", func(r chi.Router) {
		r.Post("/upvote", h.HandleToggleUpvote)
		r.Get("/upvotes", h.HandleGetUpvoteStatus)
	})
}

// UpvoteStatusDTO defines the JSON response for upvote state.
type UpvoteStatusDTO struct {
	UpvoteCount int  `json:"upvoteCount"`
	HasUpvoted  bool `json:"hasUpvoted"`
}

func toUpvoteStatusDTO(status *domain.UpvoteStatus) UpvoteStatusDTO {
	return UpvoteStatusDTO{
		UpvoteCount: status.UpvoteCount,
		HasUpvoted:  status.HasUpvoted,
	}
}

// HandleToggleUpvote handles POST /complaints/{complaintID}/upvote
func (h *EngagementHandler) HandleToggleUpvote(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	complaintID, ok := h.parseComplaintID(w, r)
	if !ok {
		return
	}

	start := time.Now()
	status, err := h.service.ToggleUpvote(r.Context(), ports.ToggleUpvoteParams{
		ComplaintID:  complaintID,
		ActingUserID: claims.UserID,
	})
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	if h.metrics != nil {
		h.metrics.ToggleDuration.Observe(time.Since(start).Seconds())
		action := "removed"
		if status.HasUpvoted {
			action = "added"
		}
		h.metrics.TogglesTotal.WithLabelValues(action).Inc()
	}

	WriteSuccess(w, toUpvoteStatusDTO(status))
}

// HandleGetUpvoteStatus handles GET /complaints/{complaintID}/upvotes
func (h *EngagementHandler) HandleGetUpvoteStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.getClaims(w, r)
	if !ok {
		return
	}

	complaintID, ok := h.parseComplaintID(w, r)
	if !ok {
		return
	}

	status, err := h.service.GetUpvoteStatus(r.Context(), ports.UpvoteStatusParams{
		ComplaintID: complaintID,
		ViewerID:    claims.UserID,
	})
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteSuccess(w, toUpvoteStatusDTO(status))
}

// getClaims extracts the authenticated claims or writes a 401 response.
func (h *EngagementHandler) getClaims(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := mw.ClaimsFromContext(r.Context())
	if !ok || claims.UserID == uuid.Nil {
		h.errorHandler.Handle(w, r, apperrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

// parseComplaintID extracts the complaint ID path parameter or writes a 400
// response.
func (h *EngagementHandler) parseComplaintID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "complaintID")

	v := validation.NewValidator()
	v.Required("complaintId", raw).UUID("complaintId", raw)
	if v.HasErrors() {
		h.errorHandler.Handle(w, r, v.Errors())
		return uuid.Nil, false
	}

	complaintID, err := uuid.Parse(raw)
	if err != nil {
		h.errorHandler.Handle(w, r,
			apperrors.NewBadRequestError(err, "Complaint ID must be a valid UUID"))
		return uuid.Nil, false
	}
	return complaintID, true
}
