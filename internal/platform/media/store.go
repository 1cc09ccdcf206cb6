package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultUploadTTL   = 15 * time.Minute
	defaultDownloadTTL = 5 * time.Minute
	maxDownloadTTL     = 15 * time.Minute
	maxUploadSize      = 10 << 20
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

var (
	ErrInvalidObjectPath = errors.New("media: invalid object path")
	ErrContentTypeDenied = errors.New("media: content type not allowed")
	ErrExpiryTooLong     = errors.New("media: expiry exceeds permitted maximum")
	errSignerRequired    = errors.New("media: signer is required")
	errBucketRequired    = errors.New("media: bucket name is required")
)

// UploadTicket describes a signed upload URL handed back to the client.
type UploadTicket struct {
	URL       string
	Method    string
	Path      string
	ExpiresAt time.Time
	Headers   map[string]string
}

// Store issues signed URLs for product imagery stored in Cloud Storage.
type Store interface {
	SignUpload(ctx context.Context, userID, fileName, contentType string) (UploadTicket, error)
	SignDownload(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
	PublicURL(objectPath string) string
}

// GCSStore implements Store over a single bucket using V4 signed URLs.
type GCSStore struct {
	bucket        string
	signer        Signer
	uploadTTL     time.Duration
	publicBaseURL string
	now           func() time.Time
}

// GCSOption customises GCSStore instances.
type GCSOption func(*GCSStore)

// WithUploadTTL overrides how long signed upload URLs remain valid.
func WithUploadTTL(ttl time.Duration) GCSOption {
	return func(s *GCSStore) {
		if ttl > 0 {
			s.uploadTTL = ttl
		}
	}
}

// WithPublicBaseURL sets the CDN base used for public object URLs.
func WithPublicBaseURL(base string) GCSOption {
	return func(s *GCSStore) {
		s.publicBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// WithClock injects a custom clock, useful for tests.
func WithClock(clock func() time.Time) GCSOption {
	return func(s *GCSStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewGCSStore constructs a signed URL store over the given bucket.
func NewGCSStore(bucket string, signer Signer, opts ...GCSOption) (*GCSStore, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errBucketRequired
	}
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errSignerRequired
	}

	store := &GCSStore{
		bucket:    bucket,
		signer:    signer,
		uploadTTL: defaultUploadTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// SignUpload issues a PUT signed URL for a user-scoped upload object.
func (s *GCSStore) SignUpload(ctx context.Context, userID, fileName, contentType string) (UploadTicket, error) {
	if s == nil || s.signer == nil {
		return UploadTicket{}, errSignerRequired
	}

	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !imageTypeAllowed(contentType) {
		return UploadTicket{}, ErrContentTypeDenied
	}

	objectPath, err := BuildUploadPath(userID, fileName, s.now())
	if err != nil {
		return UploadTicket{}, err
	}

	expiresAt := s.now().Add(s.uploadTTL)
	sizeRange := fmt.Sprintf("0,%d", maxUploadSize)

	opts := &storage.SignedURLOptions{
		GoogleAccessID: s.signer.Email(),
		Scheme:         storage.SigningSchemeV4,
		Method:         "PUT",
		ContentType:    contentType,
		Expires:        expiresAt,
		Headers:        []string{"x-goog-content-length-range:" + sizeRange},
		SignBytes: func(payload []byte) ([]byte, error) {
			return s.signer.SignBytes(ctx, payload)
		},
	}

	signedURL, err := storage.SignedURL(s.bucket, objectPath, opts)
	if err != nil {
		return UploadTicket{}, fmt.Errorf("media: sign upload url: %w", err)
	}

	return UploadTicket{
		URL:       signedURL,
		Method:    "PUT",
		Path:      objectPath,
		ExpiresAt: expiresAt,
		Headers: map[string]string{
			"Content-Type":                contentType,
			"x-goog-content-length-range": sizeRange,
		},
	}, nil
}

// SignDownload issues a short-lived GET signed URL for the given object.
func (s *GCSStore) SignDownload(ctx context.Context, objectPath string, ttl time.Duration) (string, error) {
	if s == nil || s.signer == nil {
		return "", errSignerRequired
	}
	objectPath = strings.TrimSpace(objectPath)
	if objectPath == "" || strings.Contains(objectPath, "..") {
		return "", ErrInvalidObjectPath
	}
	if ttl <= 0 {
		ttl = defaultDownloadTTL
	}
	if ttl > maxDownloadTTL {
		return "", ErrExpiryTooLong
	}

	opts := &storage.SignedURLOptions{
		GoogleAccessID: s.signer.Email(),
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        s.now().Add(ttl),
		SignBytes: func(payload []byte) ([]byte, error) {
			return s.signer.SignBytes(ctx, payload)
		},
	}

	signedURL, err := storage.SignedURL(s.bucket, objectPath, opts)
	if err != nil {
		return "", fmt.Errorf("media: sign download url: %w", err)
	}
	return signedURL, nil
}

// PublicURL resolves an object path to its public CDN address.
func (s *GCSStore) PublicURL(objectPath string) string {
	objectPath = strings.TrimLeft(strings.TrimSpace(objectPath), "/")
	if objectPath == "" {
		return ""
	}
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + objectPath
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, url.PathEscape(objectPath))
}

// BuildUploadPath composes a user-scoped object key for a new upload.
// Keys are date-partitioned so lifecycle rules can expire abandoned uploads.
func BuildUploadPath(userID, fileName string, now time.Time) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.ContainsAny(userID, "/\\") {
		return "", ErrInvalidObjectPath
	}

	fileName = path.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." || fileName == ".." {
		return "", ErrInvalidObjectPath
	}

	return path.Join("uploads", userID, now.UTC().Format("2006/01/02"), fileName), nil
}

func imageTypeAllowed(contentType string) bool {
	for _, candidate := range allowedImageTypes {
		if contentType == candidate {
			return true
		}
	}
	return false
}

var _ Store = (*GCSStore)(nil)
