package http

import (
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/rs/zerolog"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/bridge"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/codec"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/identity"
	"github.com/marcelofinamorvieira/record-comments/internal/comment/service"
)

type Handler struct {
	svc    service.CommentService
	secret []byte
	logger zerolog.Logger
}

func New(svc service.CommentService, jwtSecret []byte, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, secret: jwtSecret, logger: logger}
}

type editCommentRequest struct {
	Text            string `json:"text"`
	ParentTimestamp string `json:"parent_timestamp"`
}

type upvoteRequest struct {
	AlreadyUpvoted  *bool  `json:"already_upvoted"`
	ParentTimestamp string `json:"parent_timestamp"`
}

func (h *Handler) GetFieldSettings(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	res, err := h.svc.FieldSettings(r.Context(), r.PathValue("modelID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, res)
}

func (h *Handler) GetComments(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	res, err := h.svc.List(r.Context(), r.PathValue("recordID"), principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, res)
}

func (h *Handler) CreateComment(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	res, err := h.svc.Add(r.Context(), r.PathValue("recordID"), principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusCreated, res)
}

func (h *Handler) CreateReply(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	res, err := h.svc.Reply(r.Context(), r.PathValue("recordID"), r.PathValue("ts"), principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusCreated, res)
}

func (h *Handler) EditComment(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var req editCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, stdhttp.StatusBadRequest, map[string]any{"error": "bad json"})
		return
	}

	res, err := h.svc.Edit(r.Context(), r.PathValue("recordID"), r.PathValue("ts"), req.ParentTimestamp, req.Text, principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, res)
}

func (h *Handler) DeleteComment(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	parent := r.URL.Query().Get("parent")

	res, err := h.svc.Delete(r.Context(), r.PathValue("recordID"), r.PathValue("ts"), parent, principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, res)
}

func (h *Handler) ToggleUpvote(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	var req upvoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, stdhttp.StatusBadRequest, map[string]any{"error": "bad json"})
		return
	}

	res, err := h.svc.ToggleUpvote(r.Context(), r.PathValue("recordID"), r.PathValue("ts"), req.ParentTimestamp, req.AlreadyUpvoted, principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, stdhttp.StatusOK, res)
}

func (h *Handler) writeError(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	var missing *bridge.FieldMissingError
	switch {
	case errors.As(err, &missing):
		writeJSON(w, stdhttp.StatusConflict, map[string]any{"error": "comment log field missing", "prompt": missing.Prompt})
	case errors.Is(err, service.ErrInvalidInput):
		writeJSON(w, stdhttp.StatusBadRequest, map[string]any{"error": "invalid input"})
	case errors.Is(err, service.ErrForbidden):
		writeJSON(w, stdhttp.StatusForbidden, map[string]any{"error": "forbidden"})
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, stdhttp.StatusNotFound, map[string]any{"error": "not found"})
	case errors.Is(err, codec.ErrMalformed):
		writeJSON(w, stdhttp.StatusUnprocessableEntity, map[string]any{"error": "stored comment log is malformed"})
	default:
		requestLogger(r, h.logger).Error().Err(err).Msg("request failed")
		writeJSON(w, stdhttp.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func principal(r *stdhttp.Request) identity.Principal {
	p, _ := identity.FromContext(r.Context())
	return p
}

func writeJSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
