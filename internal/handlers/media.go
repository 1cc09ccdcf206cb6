package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/velour-beauty/api/internal/platform/auth"
	"github.com/velour-beauty/api/internal/platform/httpx"
	"github.com/velour-beauty/api/internal/platform/media"
)

const maxMediaBodySize = 4 * 1024

// MediaHandlers issues signed upload URLs for product imagery.
type MediaHandlers struct {
	authn *auth.Authenticator
	store media.Store
}

// NewMediaHandlers constructs the media handler group.
func NewMediaHandlers(authn *auth.Authenticator, store media.Store) *MediaHandlers {
	return &MediaHandlers{authn: authn, store: store}
}

// Routes wires the /media endpoints onto the provided router.
func (h *MediaHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/uploads", h.signUpload)
}

type signUploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type signUploadResponse struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	ExpiresAt string            `json:"expiresAt"`
	Headers   map[string]string `json:"headers,omitempty"`
}

func (h *MediaHandlers) signUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.store != nil)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxMediaBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req signUploadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.FileName) == "" || strings.TrimSpace(req.ContentType) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "fileName and contentType are required", http.StatusBadRequest))
		return
	}

	ticket, err := h.store.SignUpload(ctx, identity.UID, req.FileName, req.ContentType)
	if err != nil {
		writeMediaError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, signUploadResponse{
		URL:       ticket.URL,
		Method:    ticket.Method,
		Path:      ticket.Path,
		ExpiresAt: formatTime(ticket.ExpiresAt),
		Headers:   ticket.Headers,
	})
}

func writeMediaError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, media.ErrContentTypeDenied):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_media_type", "content type is not allowed", http.StatusUnsupportedMediaType))
	case errors.Is(err, media.ErrInvalidObjectPath):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "file name is invalid", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("media_unavailable", "media service is unavailable", http.StatusServiceUnavailable))
	}
}
