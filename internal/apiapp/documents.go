package apiapp

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/elite6108/sitesafe/internal/documents"
	"github.com/elite6108/sitesafe/internal/viewer"
)

const viewerCSP = "default-src 'self'; script-src 'unsafe-inline'; style-src 'unsafe-inline'; connect-src 'self'; frame-src 'self'; frame-ancestors 'none'"

// documentHandler serves a generated document as JSON with a data URL, as
// the raw PDF, or wrapped in the viewer page.
func (s *server) documentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	kind, err := documents.ParseKind(r.PathValue("kind"))
	if err != nil {
		s.fail(w, r, err, "")
		return
	}
	format := r.PathValue("format")
	switch format {
	case "", "pdf", "view":
	default:
		http.NotFound(w, r)
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	out, err := s.docs.Generate(r.Context(), kind, id)
	if err != nil {
		s.fail(w, r, err, "unable to generate document")
		return
	}
	if skipped := out.Skipped(); len(skipped) > 0 {
		s.logger.Warn("document generated with skipped assets",
			zap.String("kind", string(kind)), zap.String("id", id), zap.Int("skipped", len(skipped)))
	}

	switch format {
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", out.FileName))
		w.Header().Set("Content-Length", strconv.Itoa(len(out.PDF)))
		// The viewer page embeds this response in a same-origin frame.
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'self'")
		_, _ = w.Write(out.PDF)
	case "view":
		var buf bytes.Buffer
		page := viewer.Page{
			Title:    strings.TrimSuffix(out.FileName, ".pdf"),
			FileName: out.FileName,
			PDFURL:   "/api/documents/" + string(kind) + "/" + id + "/pdf",
			IOS:      viewer.IsIOSSafari(r.UserAgent()),
		}
		if err := viewer.Render(&buf, page); err != nil {
			s.fail(w, r, err, "unable to render viewer")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Security-Policy", viewerCSP)
		_, _ = w.Write(buf.Bytes())
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"dataUrl":  out.DataURL(),
			"fileName": out.FileName,
			"pages":    out.Pages,
			"assets":   out.Assets,
		})
	}
}

// bundleHandler returns a tar.xz of every document. It exposes every record
// at once, so it needs the admin password.
func (s *server) bundleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}
	var buf bytes.Buffer
	manifest, err := s.docs.ExportBundle(r.Context(), &buf, s.now())
	if err != nil {
		s.fail(w, r, err, "unable to export documents")
		return
	}
	name := fmt.Sprintf("sitesafe-documents-%s.tar.xz", manifest.GeneratedAt.Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/x-xz")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	_, _ = w.Write(buf.Bytes())
}
