package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/velour-beauty/api/internal/platform/media"
)

type stubMediaStore struct {
	ticket       media.UploadTicket
	err          error
	lastUserID   string
	lastFileName string
	lastType     string
}

func (s *stubMediaStore) SignUpload(_ context.Context, userID, fileName, contentType string) (media.UploadTicket, error) {
	s.lastUserID = userID
	s.lastFileName = fileName
	s.lastType = contentType
	if s.err != nil {
		return media.UploadTicket{}, s.err
	}
	return s.ticket, nil
}

func (s *stubMediaStore) SignDownload(_ context.Context, objectPath string, _ time.Duration) (string, error) {
	return "https://storage.example.com/" + objectPath, nil
}

func (s *stubMediaStore) PublicURL(objectPath string) string {
	return "https://cdn.example.com/" + objectPath
}

func newMediaRouter(store media.Store) chi.Router {
	r := chi.NewRouter()
	NewMediaHandlers(newTestAuthenticator(), store).Routes(r)
	return r
}

func TestSignUploadRequiresLogin(t *testing.T) {
	router := newMediaRouter(&stubMediaStore{})

	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(`{"fileName":"look.jpg","contentType":"image/jpeg"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestSignUploadIssuesTicket(t *testing.T) {
	store := &stubMediaStore{ticket: media.UploadTicket{
		URL:       "https://storage.example.com/velour-media/signed",
		Method:    http.MethodPut,
		Path:      "uploads/user-1/2026/03/look.jpg",
		ExpiresAt: time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC),
		Headers:   map[string]string{"Content-Type": "image/jpeg"},
	}}
	router := newMediaRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(`{"fileName":"look.jpg","contentType":"image/jpeg"}`))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var body signUploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Method != http.MethodPut || body.Path != "uploads/user-1/2026/03/look.jpg" {
		t.Fatalf("unexpected ticket payload %+v", body)
	}
	if store.lastUserID != "user-1" || store.lastType != "image/jpeg" {
		t.Fatalf("expected identity and content type forwarded, got %q %q", store.lastUserID, store.lastType)
	}
}

func TestSignUploadRejectsMissingFields(t *testing.T) {
	store := &stubMediaStore{}
	router := newMediaRouter(store)

	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(`{"fileName":"look.jpg"}`))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if store.lastFileName != "" {
		t.Fatalf("expected no store call on invalid request")
	}
}

func TestSignUploadMapsContentTypeDenied(t *testing.T) {
	router := newMediaRouter(&stubMediaStore{err: media.ErrContentTypeDenied})

	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(`{"fileName":"look.gif","contentType":"image/gif"}`))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", rr.Code)
	}
}

func TestSignUploadMapsInvalidPath(t *testing.T) {
	router := newMediaRouter(&stubMediaStore{err: media.ErrInvalidObjectPath})

	req := httptest.NewRequest(http.MethodPost, "/uploads", strings.NewReader(`{"fileName":"../escape.jpg","contentType":"image/jpeg"}`))
	req.Header.Set("Authorization", "Bearer token")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}
