package documents

import (
	"archive/tar"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/ulikunitz/xz"
	"go.uber.org/zap"

	"github.com/elite6108/sitesafe/internal/domain"
	"github.com/elite6108/sitesafe/internal/pdfgen"
)

type BundleEntry struct {
	Kind  Kind   `json:"kind"`
	ID    string `json:"id"`
	File  string `json:"file,omitempty"`
	Pages int    `json:"pages,omitempty"`
	Error string `json:"error,omitempty"`
}

type BundleManifest struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Documents   []BundleEntry       `json:"documents"`
	Files       []domain.StoredFile `json:"files"`
}

func (s *Service) recordIDs(ctx context.Context, kind Kind) ([]string, error) {
	var ids []string
	switch kind {
	case KindIncident:
		rows, err := s.store.Incidents.List(ctx)
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		return ids, err
	case KindRiskAssessment:
		rows, err := s.store.RiskAssessments.List(ctx)
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		return ids, err
	case KindSignOff:
		rows, err := s.store.SignOffs.List(ctx)
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		return ids, err
	case KindDSE:
		rows, err := s.store.DSEAssessments.List(ctx)
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		return ids, err
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// ExportBundle writes every document as a PDF inside an xz-compressed tar,
// followed by manifest.json. Entries are named <kind>/<id>-<file name>; the id
// keeps them unique when record numbers collide. A record that cannot be rendered is listed in
// the manifest with its error; missing company settings abort the export.
func (s *Service) ExportBundle(ctx context.Context, w io.Writer, now time.Time) (*BundleManifest, error) {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("start xz stream: %w", err)
	}
	tw := tar.NewWriter(xw)
	manifest := &BundleManifest{GeneratedAt: now.UTC()}

	for _, kind := range Kinds() {
		ids, err := s.recordIDs(ctx, kind)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			entry := BundleEntry{Kind: kind, ID: id}
			out, err := s.Generate(ctx, kind, id)
			switch {
			case errors.Is(err, pdfgen.ErrMissingSettings):
				return nil, err
			case err != nil:
				entry.Error = err.Error()
				s.logger.Warn("bundle entry skipped", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
			default:
				entry.File = path.Join(string(kind), id+"-"+out.FileName)
				entry.Pages = out.Pages
				if err := writeTarFile(tw, entry.File, out.PDF, now); err != nil {
					return nil, err
				}
			}
			manifest.Documents = append(manifest.Documents, entry)
		}
	}

	files, err := s.store.Files.List(ctx)
	if err != nil {
		return nil, err
	}
	manifest.Files = files
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeTarFile(tw, "manifest.json", raw, now); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	if err := xw.Close(); err != nil {
		return nil, fmt.Errorf("close xz stream: %w", err)
	}
	s.logger.Info("bundle exported", zap.Int("documents", len(manifest.Documents)), zap.Int("files", len(files)))
	return manifest, nil
}

func writeTarFile(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: modTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("tar header %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("tar write %s: %w", name, err)
	}
	return nil
}
