package social

import (
	"encoding/json"
	"net/http"

	"github.com/atriumverse/atrium/internal/common/errors"
	"go.uber.org/zap"
)

// Handler is the small REST surface the identity/commerce backend calls to
// manage invitations. Socket pushes triggered here go through the service's
// Notifier.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /invitations", h.createInvitation)
	mux.HandleFunc("POST /invitations/accept", h.acceptInvitation)
	mux.HandleFunc("POST /invitations/reject", h.rejectInvitation)
	mux.HandleFunc("GET /friends", h.listFriends)
	mux.HandleFunc("GET /invitations", h.listInvitations)
}

type invitationRequest struct {
	InviterID   string `json:"inviterId"`
	InviterName string `json:"inviterName"`
	InvitedID   string `json:"invitedId"`
	InvitedName string `json:"invitedName"`
}

func (h *Handler) createInvitation(w http.ResponseWriter, r *http.Request) {
	var req invitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.InviterID == "" || req.InvitedID == "" {
		writeError(w, errors.BadRequest("inviterId and invitedId are required"))
		return
	}

	if err := h.service.InviteFriend(r.Context(), req.InviterID, req.InviterName, req.InvitedID); err != nil {
		h.logger.Warn("create invitation failed",
			zap.String("inviter_id", req.InviterID),
			zap.String("invited_id", req.InvitedID),
			zap.Error(err),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "invitation sent",
	})
}

func (h *Handler) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	var req invitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.service.AcceptInvitation(r.Context(), req.InviterID, req.InviterName, req.InvitedID, req.InvitedName); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "invitation accepted",
	})
}

func (h *Handler) rejectInvitation(w http.ResponseWriter, r *http.Request) {
	var req invitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if err := h.service.RejectInvitation(r.Context(), req.InviterID, req.InvitedID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "invitation rejected",
	})
}

func (h *Handler) listFriends(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, errors.BadRequest("userId is required"))
		return
	}

	friends, err := h.service.Friends(r.Context(), userID)
	if err != nil {
		writeError(w, errors.Internal("failed to list friends", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    friends,
		"count":   len(friends),
	})
}

func (h *Handler) listInvitations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, errors.BadRequest("userId is required"))
		return
	}

	invitations, err := h.service.PendingInvitations(r.Context(), userID)
	if err != nil {
		writeError(w, errors.Internal("failed to list invitations", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    invitations,
		"count":   len(invitations),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := errors.CodeInternal

	var appErr *errors.AppError
	if e, ok := err.(*errors.AppError); ok {
		appErr = e
	}
	if appErr != nil {
		code = appErr.Code
		switch appErr.Code {
		case errors.CodeNotFound:
			status = http.StatusNotFound
		case errors.CodeBadRequest:
			status = http.StatusBadRequest
		case errors.CodeConflict:
			status = http.StatusConflict
		case errors.CodeUnauthorized:
			status = http.StatusUnauthorized
		}
	}

	writeJSON(w, status, map[string]any{
		"success": false,
		"code":    code,
		"message": err.Error(),
	})
}
