/**
 * @description
 * This file defines the HTTP handlers for the user-manager API. Handlers
 * parse requests, call the appropriate service method and write the
 * response. The confirmation endpoints render HTML pages for the approver's
 * browser; everything else speaks JSON.
 *
 * Error mapping on the confirmation page distinguishes three audiences: the
 * approver's own mistakes (authorization, unknown request) render a plain
 * explanation, state conflicts render what already happened, and technical
 * failures render a generic apology while the operator is notified with the
 * full context.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/19pdh/user-manager/internal/app"
	"github.com/19pdh/user-manager/internal/auth"
	"github.com/19pdh/user-manager/internal/config"
	"github.com/19pdh/user-manager/internal/domain"
)

// AccountService is the request workflow surface the handlers call.
type AccountService interface {
	Intake(ctx context.Context, req app.IntakeRequest) (*domain.Row, error)
	Approve(ctx context.Context, rawToken, stateToken, identifier string) (*app.ApprovalResult, error)
	Provision(ctx context.Context, rowID int64) (*app.ProvisionResult, error)
}

// GroupSyncer reconciles the leadership org unit against a target list.
type GroupSyncer interface {
	SyncGroup(ctx context.Context, targets []string) (*app.ReconcileResult, error)
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	service    AccountService
	reconciler GroupSyncer
	notifier   app.Notifier
	logger     *slog.Logger
	cfg        config.Config
}

// NewHandler creates a new Handler.
func NewHandler(service AccountService, reconciler GroupSyncer, notifier app.Notifier, logger *slog.Logger, cfg config.Config) *Handler {
	return &Handler{
		service:    service,
		reconciler: reconciler,
		notifier:   notifier,
		logger:     logger,
		cfg:        cfg,
	}
}

// CreateRequestResponse is the JSON body returned for a recorded request.
type CreateRequestResponse struct {
	ID           int64  `json:"id"`
	PrimaryEmail string `json:"primary_email"`
	Status       string `json:"status"`
}

// CreateRequest handles the submission of a new account request.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req app.IntakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	row, err := h.service.Intake(r.Context(), req)
	if err != nil {
		if errors.Is(err, app.ErrValidation) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("intake failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to record the request")
		return
	}

	h.writeJSON(w, http.StatusCreated, CreateRequestResponse{
		ID:           row.ID,
		PrimaryEmail: row.PrimaryEmail,
		Status:       row.Status,
	})
}

// ShowConfirmation renders the confirmation page the approver opens from
// the mailed link. The page carries the identifier and state token through
// to the sign-in form.
func (h *Handler) ShowConfirmation(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("id")
	if identifier == "" {
		h.renderResult(w, http.StatusBadRequest, "Invalid link",
			"The confirmation link is missing the account identifier. Use the link from the email unchanged.")
		return
	}

	h.renderPage(w, http.StatusOK, confirmTemplate, confirmPage{
		Identifier: identifier,
		State:      r.URL.Query().Get("state"),
		ClientID:   h.cfg.OAuthClientID,
	})
}

// SubmitConfirmation consumes the signed-in approver's identity assertion
// and runs the approval.
func (h *Handler) SubmitConfirmation(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderResult(w, http.StatusBadRequest, "Invalid submission", "The form could not be read.")
		return
	}
	credential := r.PostFormValue("credential")
	stateToken := r.PostFormValue("state")
	identifier := r.PostFormValue("id")
	if credential == "" {
		h.renderResult(w, http.StatusBadRequest, "Sign-in required",
			"No identity was supplied. Sign in and try again.")
		return
	}

	result, err := h.service.Approve(r.Context(), credential, stateToken, identifier)
	if err != nil {
		h.renderApprovalError(r.Context(), w, identifier, err)
		return
	}

	switch result.Outcome {
	case app.OutcomeReconfirmed:
		h.renderResult(w, http.StatusOK, "Account confirmed",
			fmt.Sprintf("The account %s was confirmed and any scheduled deactivation was cancelled.", result.PrimaryEmail))
	default:
		h.renderResult(w, http.StatusOK, "Request approved",
			fmt.Sprintf("The request for %s was passed to the administrator for provisioning.", result.PrimaryEmail))
	}
}

// renderApprovalError maps a confirmation failure to the page the approver
// sees. Technical failures additionally notify the operator with the
// identifier and the error.
func (h *Handler) renderApprovalError(ctx context.Context, w http.ResponseWriter, identifier string, err error) {
	var orgUnitErr *app.OrgUnitPathError
	switch {
	case errors.As(err, &orgUnitErr):
		h.renderResult(w, http.StatusForbidden, "Not authorized",
			fmt.Sprintf("The account %s is not allowed to confirm requests. Ask someone from %s to open the link.",
				orgUnitErr.UserEmail, orgUnitErr.OrgUnitPath))
	case errors.Is(err, auth.ErrMalformedToken),
		errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrKeyNotFound):
		h.renderResult(w, http.StatusUnauthorized, "Sign-in failed",
			"Your sign-in could not be verified. Reload the page and sign in again.")
	case errors.Is(err, domain.ErrNotFound):
		h.renderResult(w, http.StatusNotFound, "Request not found",
			"No pending request matches this link. It may have been withdrawn or already rejected.")
	case errors.Is(err, app.ErrInvalidTransition):
		h.renderResult(w, http.StatusConflict, "Nothing to confirm",
			"This request was already handled.")
	default:
		h.logger.Error("confirmation failed", "identifier", identifier, "error", err)
		h.notifyOperator(ctx, identifier, err)
		h.renderResult(w, http.StatusInternalServerError, "Something went wrong",
			"The confirmation could not be completed. The administrator has been notified.")
	}
}

func (h *Handler) notifyOperator(ctx context.Context, identifier string, cause error) {
	body := fmt.Sprintf("Confirmation for %q failed:\n\n%v\n", identifier, cause)
	if err := h.notifier.Send(ctx, []string{h.cfg.AdminEmail}, "Confirmation failure", body, ""); err != nil {
		h.logger.Error("failed to notify operator", "error", err)
	}
}

// ProvisionRow creates the directory account for an approved request row.
func (h *Handler) ProvisionRow(w http.ResponseWriter, r *http.Request) {
	rowID, err := strconv.ParseInt(chi.URLParam(r, "rowID"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid row id")
		return
	}

	result, err := h.service.Provision(r.Context(), rowID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "row not found")
		case errors.Is(err, app.ErrInvalidTransition), errors.Is(err, app.ErrDuplicateAccount):
			h.writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("provisioning failed", "row", rowID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "provisioning failed")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// SyncGroupRequest is the JSON body for a group sync.
type SyncGroupRequest struct {
	Emails []string `json:"emails"`
}

// SyncGroup reconciles the leadership org unit against the posted list.
func (h *Handler) SyncGroup(w http.ResponseWriter, r *http.Request) {
	var req SyncGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.reconciler.SyncGroup(r.Context(), req.Emails)
	if err != nil {
		if errors.Is(err, app.ErrValidation) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("group sync failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "group sync failed")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// RequireAdminKey guards the admin routes with the configured API key.
func (h *Handler) RequireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.AdminAPIKey == "" || r.Header.Get("X-API-Key") != h.cfg.AdminAPIKey {
			h.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON is a helper for writing JSON responses.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
