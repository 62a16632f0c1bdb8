package apiapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elite6108/sitesafe/internal/domain"
	"github.com/elite6108/sitesafe/internal/storage"
	"github.com/elite6108/sitesafe/internal/store"
)

// signatureVerifier is implemented by drivers that sign links back to this
// API rather than to the object store itself.
type signatureVerifier interface {
	VerifySignature(bucket, name, expires, sig string) bool
}

type fileView struct {
	domain.StoredFile
	URL string `json:"url,omitempty"`
}

func (s *server) view(file domain.StoredFile) fileView {
	v := fileView{StoredFile: file}
	if storage.IsPublic(file.Bucket) {
		v.URL = s.files.PublicURL(file.Bucket, file.Name)
	}
	return v
}

func (s *server) filesHandler(w http.ResponseWriter, r *http.Request) {
	bucket := r.PathValue("bucket")
	if err := storage.CheckBucket(bucket); err != nil {
		s.fail(w, r, err, "")
		return
	}
	switch r.Method {
	case http.MethodGet:
		rows, err := s.store.Files.ListWhere(r.Context(), "bucket", bucket)
		if err != nil {
			s.fail(w, r, err, "unable to load files")
			return
		}
		out := make([]fileView, 0, len(rows))
		for _, f := range rows {
			out = append(out, s.view(f))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		file, err := s.storeUpload(w, r, bucket, "file")
		if err != nil {
			s.fail(w, r, err, "unable to upload file")
			return
		}
		writeJSON(w, http.StatusCreated, s.view(*file))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) fileHandler(w http.ResponseWriter, r *http.Request) {
	bucket, name := r.PathValue("bucket"), r.PathValue("name")
	if err := storage.CheckBucket(bucket); err != nil {
		s.fail(w, r, err, "")
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !storage.IsPublic(bucket) && !s.downloadAllowed(r, bucket, name) {
			writeError(w, http.StatusForbidden, "a signed link is required")
			return
		}
		data, err := s.files.Download(r.Context(), bucket, name)
		if err != nil {
			s.fail(w, r, err, "unable to download file")
			return
		}
		contentType := "application/octet-stream"
		if meta, err := s.store.FileByObject(r.Context(), bucket, name); err == nil && meta.MimeType != "" {
			contentType = meta.MimeType
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
		w.Header().Set("Cache-Control", "private, max-age=300")
		_, _ = w.Write(data)
	case http.MethodDelete:
		if !s.requireAdmin(w, r) {
			return
		}
		if err := s.removeFile(r.Context(), bucket, name); err != nil {
			s.fail(w, r, err, "unable to delete file")
			return
		}
		s.logger.Info("file removed", zap.String("bucket", bucket), zap.String("name", name), zap.String("user", currentUser(r)))
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) signedURLHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	bucket, name := r.PathValue("bucket"), r.PathValue("name")
	if _, err := s.store.FileByObject(r.Context(), bucket, name); err != nil {
		s.fail(w, r, err, "unable to load file")
		return
	}
	link, err := s.files.SignedURL(r.Context(), bucket, name, s.signedURLTTL)
	if err != nil {
		s.fail(w, r, err, "unable to sign link")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":        link,
		"expires_at": s.now().Add(s.signedURLTTL).UTC().Format(time.RFC3339),
	})
}

func (s *server) downloadAllowed(r *http.Request, bucket, name string) bool {
	q := r.URL.Query()
	if v, ok := s.files.(signatureVerifier); ok && v.VerifySignature(bucket, name, q.Get("expires"), q.Get("sig")) {
		return true
	}
	return s.gate.Check(r.Header.Get(adminPasswordHeader)) == nil
}

func (s *server) parseUploadForm(w http.ResponseWriter, r *http.Request) error {
	if r.MultipartForm != nil {
		return nil
	}
	limit := s.maxUpload + (2 << 20)
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		return invalid("invalid upload form")
	}
	return nil
}

func (s *server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, string, error) {
	if err := s.parseUploadForm(w, r); err != nil {
		return nil, "", err
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", invalid(strings.ReplaceAll(field, "_", " ") + " is required")
	}
	defer file.Close()
	raw, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		return nil, "", invalid("unable to read uploaded file")
	}
	if len(raw) == 0 {
		return nil, "", invalid("uploaded file is empty")
	}
	return raw, strings.TrimSpace(header.Filename), nil
}

// storeUpload validates the multipart file in field, uploads it to bucket and
// records its metadata. If the metadata insert fails the object is removed
// again.
func (s *server) storeUpload(w http.ResponseWriter, r *http.Request, bucket, field string) (*domain.StoredFile, error) {
	raw, fileName, err := s.readUpload(w, r, field)
	if err != nil {
		return nil, err
	}
	mime, err := storage.Validate(bucket, raw, s.maxUpload)
	if err != nil {
		return nil, err
	}
	name := storage.ObjectName(uuid.NewString()[:8], fileName)
	ctx := r.Context()
	if err := s.files.Upload(ctx, bucket, name, raw, mime); err != nil {
		return nil, fmt.Errorf("upload %s/%s: %w", bucket, name, err)
	}
	rec := &domain.StoredFile{
		Bucket:     bucket,
		Name:       name,
		Title:      strings.TrimSpace(r.FormValue("title")),
		MimeType:   mime,
		Size:       int64(len(raw)),
		UploadedBy: currentUser(r),
	}
	if err := s.store.Files.Create(ctx, rec); err != nil {
		if rmErr := s.files.Remove(ctx, bucket, name); rmErr != nil {
			s.logger.Error("orphaned upload", zap.String("bucket", bucket), zap.String("name", name), zap.Error(rmErr))
		}
		return nil, err
	}
	return rec, nil
}

// discardUpload undoes storeUpload when a later step fails.
func (s *server) discardUpload(ctx context.Context, file *domain.StoredFile) {
	if err := s.removeFile(ctx, file.Bucket, file.Name); err != nil {
		s.logger.Error("unable to discard upload", zap.String("bucket", file.Bucket), zap.String("name", file.Name), zap.Error(err))
	}
}

// removeFile deletes the object and its metadata row. Either may already be
// gone; it is only an error if both are.
func (s *server) removeFile(ctx context.Context, bucket, name string) error {
	objErr := s.files.Remove(ctx, bucket, name)
	if objErr != nil && !errors.Is(objErr, storage.ErrObjectNotFound) {
		return objErr
	}
	meta, err := s.store.FileByObject(ctx, bucket, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return objErr
	case err != nil:
		return err
	}
	return s.store.Files.Delete(ctx, meta.ID)
}
