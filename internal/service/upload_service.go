package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
	"github.com/isagip/barangay-dashboard-api/pkg/storage"
)

// DefaultMaxUploadBytes caps photo and proof uploads.
const DefaultMaxUploadBytes int64 = 5 << 20

var defaultUploadMIMEs = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

type fileStore interface {
	SaveStream(filename string, r io.Reader, limit int64) (int64, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type urlSigner interface {
	Generate(owner, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (storage.Grant, error)
}

// UploadConfig limits accepted files.
type UploadConfig struct {
	APIPrefix    string
	MaxBytes     int64
	AllowedMIMEs []string
}

// UploadResult describes a stored file.
type UploadResult struct {
	Ref         string    `json:"ref"`
	Token       string    `json:"token"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// UploadService stores report photos and registration proofs.
type UploadService struct {
	files   fileStore
	signer  urlSigner
	cfg     UploadConfig
	allowed map[string]struct{}
	logger  *zap.Logger
}

// NewUploadService constructs the service.
func NewUploadService(files fileStore, signer urlSigner, cfg UploadConfig, logger *zap.Logger) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxUploadBytes
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = defaultUploadMIMEs
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &UploadService{files: files, signer: signer, cfg: cfg, allowed: allowed, logger: logger}
}

// Save sniffs the content type, enforces the size cap and stores the file
// under a generated name.
func (s *UploadService) Save(ctx context.Context, owner, filename string, size int64, r io.Reader) (*UploadResult, error) {
	if size > s.cfg.MaxBytes {
		return nil, appErrors.WithField(appErrors.ErrValidation, "file", "file must be 5MB or smaller")
	}
	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unable to read upload")
	}
	if len(head) == 0 {
		return nil, appErrors.WithField(appErrors.ErrValidation, "file", "file is empty")
	}
	contentType := http.DetectContentType(head)
	if _, ok := s.allowed[contentType]; !ok {
		return nil, appErrors.WithField(appErrors.ErrValidation, "file", "only image uploads are accepted")
	}

	ref := path.Join(time.Now().UTC().Format("2006/01"), uuid.NewString()+extensionFor(contentType, filename))
	n, err := s.files.SaveStream(ref, br, s.cfg.MaxBytes)
	if err != nil {
		if n > s.cfg.MaxBytes {
			return nil, appErrors.WithField(appErrors.ErrValidation, "file", "file must be 5MB or smaller")
		}
		return nil, appErrors.Internal(err, "failed to store upload")
	}

	result, err := s.Sign(owner, ref)
	if err != nil {
		_ = s.files.Delete(ref)
		return nil, err
	}
	result.ContentType = contentType
	result.Size = n
	s.logger.Info("file uploaded", zap.String("ref", ref), zap.String("owner", owner), zap.Int64("size", n))
	return result, nil
}

// Sign issues a fresh download token for a stored reference.
func (s *UploadService) Sign(owner, ref string) (*UploadResult, error) {
	token, expires, err := s.signer.Generate(owner, ref)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign file url")
	}
	return &UploadResult{
		Ref:       ref,
		Token:     token,
		URL:       strings.TrimRight(s.cfg.APIPrefix, "/") + "/files/" + token,
		ExpiresAt: expires,
	}, nil
}

// Open resolves a download token to the stored file.
func (s *UploadService) Open(token string) (*os.File, storage.Grant, error) {
	grant, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrExpiredToken) {
			return nil, grant, appErrors.Clone(appErrors.ErrForbidden, "file link expired")
		}
		return nil, grant, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	file, err := s.files.Open(grant.Path)
	if err != nil {
		return nil, grant, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	return file, grant, nil
}

func extensionFor(contentType, filename string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return strings.ToLower(path.Ext(filename))
}
