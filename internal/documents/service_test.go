package documents

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"go.uber.org/zap"

	"github.com/elite6108/sitesafe/internal/domain"
	"github.com/elite6108/sitesafe/internal/pdfgen"
	"github.com/elite6108/sitesafe/internal/store"
)

type noFetch struct{}

func (noFetch) Fetch(context.Context, string) ([]byte, error) {
	return nil, errors.New("offline")
}

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "docs.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	gen := pdfgen.New(noFetch{}, zap.NewNop(), pdfgen.WithCompression(false))
	return NewService(st, gen, zap.NewNop(), 2), st
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("sign-offs")
	require.NoError(t, err)
	assert.Equal(t, KindSignOff, k)

	_, err = ParseKind("invoices")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestGenerateNeedsSettings(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	rec := &domain.IncidentReport{Description: "Cut hand"}
	require.NoError(t, st.Incidents.Create(ctx, rec))

	_, err := svc.Generate(ctx, KindIncident, rec.ID)
	assert.ErrorIs(t, err, pdfgen.ErrMissingSettings)

	require.NoError(t, st.SaveSettings(ctx, &domain.CompanySettings{Name: "Acme"}))
	out, err := svc.Generate(ctx, KindIncident, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "incident-report-ir-0001.pdf", out.FileName)

	_, err = svc.Generate(ctx, KindIncident, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.Generate(ctx, Kind("invoices"), rec.ID)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestGenerateSignOffJoinsProjectAndCustomer(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	require.NoError(t, st.SaveSettings(ctx, &domain.CompanySettings{Name: "Acme"}))

	project := &domain.Project{Name: "Mill Lane"}
	require.NoError(t, st.Projects.Create(ctx, project))
	so := &domain.SignOff{ProjectID: project.ID, CustomerID: "gone"}
	require.NoError(t, st.SignOffs.Create(ctx, so))

	_, err := svc.Generate(ctx, KindSignOff, so.ID)
	require.ErrorIs(t, err, pdfgen.ErrMissingRecord)
	assert.Contains(t, err.Error(), "customer gone")

	customer := &domain.Customer{Name: "Pat"}
	require.NoError(t, st.Customers.Create(ctx, customer))
	so.CustomerID = customer.ID
	require.NoError(t, st.SignOffs.Update(ctx, so.ID, so))

	out, err := svc.Generate(ctx, KindSignOff, so.ID)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(out.PDF, []byte("(Mill Lane)")))
}

func TestExportBundle(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	require.NoError(t, st.SaveSettings(ctx, &domain.CompanySettings{Name: "Acme"}))
	require.NoError(t, st.Incidents.Create(ctx, &domain.IncidentReport{Description: "Trip"}))
	require.NoError(t, st.RiskAssessments.Create(ctx, &domain.RiskAssessment{Name: "Roof"}))
	require.NoError(t, st.SignOffs.Create(ctx, &domain.SignOff{ProjectID: "none", CustomerID: "none"}))
	require.NoError(t, st.Files.Create(ctx, &domain.StoredFile{Bucket: "msds", Name: "x.pdf"}))

	var buf bytes.Buffer
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	manifest, err := svc.ExportBundle(ctx, &buf, now)
	require.NoError(t, err)
	require.Len(t, manifest.Documents, 3)
	assert.Len(t, manifest.Files, 1)

	xr, err := xz.NewReader(&buf)
	require.NoError(t, err)
	tr := tar.NewReader(xr)
	contents := map[string][]byte{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		raw, err := io.ReadAll(tr)
		require.NoError(t, err)
		contents[hdr.Name] = raw
	}
	for _, e := range manifest.Documents {
		if e.Error == "" {
			assert.Contains(t, contents, e.File)
		}
	}
	incidents, err := st.Incidents.List(ctx)
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Contains(t, contents, "incidents/"+incidents[0].ID+"-incident-report-ir-0001.pdf")
	require.Contains(t, contents, "manifest.json")

	var decoded BundleManifest
	require.NoError(t, json.Unmarshal(contents["manifest.json"], &decoded))
	var failed []BundleEntry
	for _, e := range decoded.Documents {
		if e.Error != "" {
			failed = append(failed, e)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, KindSignOff, failed[0].Kind)
}

func TestExportBundleKeepsRecordsWithSameNumber(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	require.NoError(t, st.SaveSettings(ctx, &domain.CompanySettings{Name: "Acme"}))
	require.NoError(t, st.Incidents.Create(ctx, &domain.IncidentReport{Description: "Trip", ReportNumber: "IR-7"}))
	require.NoError(t, st.Incidents.Create(ctx, &domain.IncidentReport{Description: "Slip", ReportNumber: "IR-7"}))

	var buf bytes.Buffer
	_, err := svc.ExportBundle(ctx, &buf, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	xr, err := xz.NewReader(&buf)
	require.NoError(t, err)
	tr := tar.NewReader(xr)
	seen := map[string]int{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		seen[hdr.Name]++
	}
	assert.Len(t, seen, 3)
	for name, n := range seen {
		assert.Equal(t, 1, n, name)
	}
}
