package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	identitymodels "affinet/internal/identity/models"
	paymentmodels "affinet/internal/payments/models"
	"affinet/internal/transport/http/shared"
	"affinet/pkg/domain"
	dErrors "affinet/pkg/domain-errors"
	"affinet/pkg/requestcontext"
)

// PaymentService is the orchestrator surface the transport needs.
type PaymentService interface {
	Onboard(ctx context.Context, contact identitymodels.Contact, role identitymodels.Role, upline domain.UIN, currency string) (*paymentmodels.OnboardResult, error)
	Execute(ctx context.Context, req paymentmodels.TransactionRequest) (*paymentmodels.ExecutionResult, error)
	ReleaseEscrow(ctx context.Context, correlationID domain.CorrelationID) (*paymentmodels.ExecutionResult, error)
	Stats(ctx context.Context, uin domain.UIN) (*paymentmodels.Stats, error)
	Validate(ctx context.Context, req paymentmodels.TransactionRequest) (*paymentmodels.ValidationResult, error)
}

// AffiliateService is the referral surface the transport needs.
type AffiliateService interface {
	Link(ctx context.Context, uin domain.UIN) (string, error)
	Attribute(ctx context.Context, rawToken string, visitorID string) (domain.UIN, error)
	UplineFor(ctx context.Context, visitorID string) (domain.UIN, error)
}

// visitorCookie carries the anonymous visitor ID between a referral click
// and the onboarding form.
const visitorCookie = "affinet_vid"

// Handler is the thin HTTP layer. It delegates to domain services without
// embedding business logic so transport concerns remain isolated.
type Handler struct {
	payments  PaymentService
	affiliate AffiliateService
	logger    *slog.Logger
}

func NewHandler(payments PaymentService, affiliate AffiliateService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		payments:  payments,
		affiliate: affiliate,
		logger:    logger,
	}
}

func (h *Handler) handleOnboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req OnboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	upline, err := req.upline()
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	// No explicit upline: fall back to the visitor's referral binding, if
	// one survives from a clicked link.
	if upline.IsZero() {
		if cookie, cerr := r.Cookie(visitorCookie); cerr == nil {
			if bound, berr := h.affiliate.UplineFor(ctx, cookie.Value); berr == nil {
				upline = bound
			}
		}
	}

	result, err := h.payments.Onboard(ctx, req.contact(), identitymodels.Role(req.Role), upline, req.Currency)
	if err != nil {
		h.logger.WarnContext(ctx, "onboarding rejected",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}

	result, err := h.payments.Execute(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "transaction rejected",
			"kind", string(req.Kind),
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTransaction(w, r)
	if !ok {
		return
	}

	result, err := h.payments.Validate(r.Context(), req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleReleaseEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	correlationID, err := domain.ParseCorrelationID(chi.URLParam(r, "correlationID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed correlation id"))
		return
	}

	result, err := h.payments.ReleaseEscrow(ctx, correlationID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	uin, ok := h.pathUIN(w, r)
	if !ok {
		return
	}

	stats, err := h.payments.Stats(r.Context(), uin)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleAffiliateLink(w http.ResponseWriter, r *http.Request) {
	uin, ok := h.pathUIN(w, r)
	if !ok {
		return
	}

	link, err := h.affiliate.Link(r.Context(), uin)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]string{"link": link})
}

// handleReferral attributes a referral click and sends the visitor on to the
// onboarding form with the upline pre-filled. Broken or expired tokens still
// redirect; the visitor just arrives unattributed.
func (h *Handler) handleReferral(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ref := r.URL.Query().Get("ref")
	if ref == "" {
		http.Redirect(w, r, "/onboard", http.StatusFound)
		return
	}

	visitorID := h.ensureVisitorID(w, r)
	upline, err := h.affiliate.Attribute(ctx, ref, visitorID)
	if err != nil {
		h.logger.InfoContext(ctx, "referral click not attributed",
			"error", err.Error(),
			"request_id", requestcontext.RequestID(ctx),
		)
		http.Redirect(w, r, "/onboard", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/onboard?upline="+upline.String(), http.StatusFound)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodeTransaction(w http.ResponseWriter, r *http.Request) (paymentmodels.TransactionRequest, bool) {
	var wire TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return paymentmodels.TransactionRequest{}, false
	}
	req, err := wire.toModel()
	if err != nil {
		shared.WriteError(w, err)
		return paymentmodels.TransactionRequest{}, false
	}
	return req, true
}

func (h *Handler) pathUIN(w http.ResponseWriter, r *http.Request) (domain.UIN, bool) {
	uin, err := domain.ParseUIN(chi.URLParam(r, "uin"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "malformed uin"))
		return domain.UIN(""), false
	}
	return uin, true
}

func (h *Handler) ensureVisitorID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(visitorCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	visitorID := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     visitorCookie,
		Value:    visitorID,
		Path:     "/",
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return visitorID
}
