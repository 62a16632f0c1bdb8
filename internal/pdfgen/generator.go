// Package pdfgen renders incident reports, risk assessments, sign-offs and
// DSE assessments as paginated PDF documents.
package pdfgen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"github.com/elite6108/sitesafe/internal/assets"
	"github.com/elite6108/sitesafe/internal/domain"
)

var (
	ErrMissingSettings = errors.New("company settings have not been set up")
	ErrMissingRecord   = errors.New("required record not found")
)

// Output is a finished document.
type Output struct {
	PDF      []byte        `json:"-"`
	FileName string        `json:"fileName"`
	Pages    int           `json:"pages"`
	Assets   []AssetResult `json:"assets"`
}

func (o *Output) DataURL() string {
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(o.PDF)
}

// Skipped lists the assets that could not be embedded.
func (o *Output) Skipped() []AssetResult {
	var out []AssetResult
	for _, a := range o.Assets {
		if a.Status == AssetSkipped {
			out = append(out, a)
		}
	}
	return out
}

type Generator struct {
	fetcher  assets.Fetcher
	logger   *zap.Logger
	compress bool
	parallel int
}

type Option func(*Generator)

// WithCompression toggles stream compression. Uncompressed output keeps page
// text searchable.
func WithCompression(on bool) Option {
	return func(g *Generator) { g.compress = on }
}

// WithParallelFetches bounds concurrent attachment fetches.
func WithParallelFetches(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.parallel = n
		}
	}
}

func New(fetcher assets.Fetcher, logger *zap.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Generator{
		fetcher:  fetcher,
		logger:   logger.Named("pdfgen"),
		compress: true,
		parallel: 4,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// block is one content section. A block either formats a schema section
// against the record values or carries a prebuilt grid table, and may end
// with a signature image.
type block struct {
	section   *Section
	table     *Table
	signature string
}

type document struct {
	title       string
	fileStem    string
	identity    Section
	blocks      []block
	values      map[string]any
	attachments []string
	created     time.Time
}

// tables resolves every block to its table, dropping empty ones.
func (d document) tables() []Table {
	var out []Table
	for _, b := range d.blocks {
		if t, ok := d.blockTable(b); ok {
			out = append(out, t)
		}
	}
	return out
}

func (d document) blockTable(b block) (Table, bool) {
	switch {
	case b.table != nil:
		return *b.table, len(b.table.Rows) > 0
	case b.section != nil:
		return buildSection(*b.section, d.values)
	}
	return Table{}, false
}

var companySection = Section{
	Title: "COMPANY DETAILS",
	Fields: []Field{
		{Key: "name", Label: "COMPANY", Type: FieldText},
		{Key: "address", Label: "ADDRESS", Type: FieldText},
		{Key: "phone", Label: "PHONE", Type: FieldText},
		{Key: "email", Label: "EMAIL", Type: FieldText},
		{Key: "website", Label: "WEBSITE", Type: FieldText},
	},
}

func companyValues(s *domain.CompanySettings) map[string]any {
	var address []string
	for _, part := range []string{s.AddressLine1, s.AddressLine2, s.Town, s.County, s.Postcode} {
		if p := strings.TrimSpace(part); p != "" {
			address = append(address, p)
		}
	}
	return map[string]any{
		"name":    s.Name,
		"address": strings.Join(address, "\n"),
		"phone":   s.Phone,
		"email":   s.Email,
		"website": s.Website,
	}
}

func footerText(s *domain.CompanySettings) string {
	parts := []string{strings.TrimSpace(s.Name)}
	if n := strings.TrimSpace(s.CompanyNumber); n != "" {
		parts = append(parts, "Company No: "+n)
	}
	if n := strings.TrimSpace(s.VATNumber); n != "" {
		parts = append(parts, "VAT No: "+n)
	}
	return strings.Join(parts, " | ")
}

var fallbackDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

func (g *Generator) render(ctx context.Context, settings *domain.CompanySettings, doc document) (*Output, error) {
	if settings == nil {
		return nil, ErrMissingSettings
	}
	stamp := doc.created
	if stamp.IsZero() {
		stamp = fallbackDate
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(false, marginBottom)
	pdf.SetCompression(g.compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetTitle(doc.title, true)
	pdf.SetAuthor(settings.Name, true)
	pdf.SetCreator("sitesafe", false)
	pdf.AddPage()
	pdf.SetFont(fontFamily, "", fontSizeBody)

	l := newLayout(pdf)
	var results []AssetResult

	if src := strings.TrimSpace(settings.LogoURL); src != "" {
		results = append(results, g.drawLogo(ctx, l, src))
	}

	l.setText(colorPrimary)
	pdf.SetFont(fontFamily, "B", fontSizeTitle)
	pdf.SetXY(marginLeft, titleY)
	pdf.CellFormat(l.contentWidth(), 10, l.tr(doc.title), "", 0, "R", false, 0, "")

	l.y = g.drawSummary(l, settings, doc)

	for i, b := range doc.blocks {
		if t, ok := doc.blockTable(b); ok {
			l.drawTable(t)
		}
		if src := strings.TrimSpace(b.signature); src != "" {
			results = append(results, g.drawSignature(ctx, l, fmt.Sprintf("signature-%d", i+1), src))
		}
	}

	results = append(results, g.drawAttachments(ctx, l, cleanSources(doc.attachments))...)

	stampFooters(l, footerText(settings))

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render %s: %w", doc.title, err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write %s: %w", doc.title, err)
	}
	out := &Output{
		PDF:      buf.Bytes(),
		FileName: fileName(doc.fileStem),
		Pages:    pdf.PageCount(),
		Assets:   results,
	}
	g.logger.Info("document generated",
		zap.String("title", doc.title),
		zap.String("file", out.FileName),
		zap.Int("pages", out.Pages),
		zap.Int("skipped_assets", len(out.Skipped())),
	)
	return out, nil
}

// drawSummary draws the company and identity tables side by side and
// returns the cursor below the taller one.
func (g *Generator) drawSummary(l *layout, settings *domain.CompanySettings, doc document) float64 {
	half := (l.contentWidth() - summaryGap) / 2
	bottom := summaryY
	if t, ok := buildSection(companySection, companyValues(settings)); ok {
		bottom = max(bottom, l.drawTableAt(t, marginLeft, summaryY, half))
	}
	if t, ok := buildSection(doc.identity, doc.values); ok {
		bottom = max(bottom, l.drawTableAt(t, marginLeft+half+summaryGap, summaryY, half))
	}
	return bottom + sectionSpacing
}

func stampFooters(l *layout, text string) {
	pdf := l.pdf
	total := pdf.PageCount()
	y := l.pageH - footerOffset
	for page := 1; page <= total; page++ {
		pdf.SetPage(page)
		l.setDraw(colorBorder)
		pdf.Line(marginLeft, y-1.5, l.pageW-marginRight, y-1.5)
		pdf.SetFont(fontFamily, "", fontSizeFooter)
		l.setText(colorMuted)
		pdf.SetXY(marginLeft, y)
		pdf.CellFormat(l.contentWidth()*0.75, 5, l.tr(text), "", 0, "L", false, 0, "")
		pdf.SetXY(marginLeft, y)
		pdf.CellFormat(l.contentWidth(), 5, fmt.Sprintf("Page %d of %d", page, total), "", 0, "R", false, 0, "")
	}
}

func cleanSources(sources []string) []string {
	var out []string
	for _, s := range sources {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func fileName(stem string) string {
	stem = strings.Trim(unsafeFileChars.ReplaceAllString(stem, "-"), "-")
	if stem == "" {
		stem = "document"
	}
	return strings.ToLower(stem) + ".pdf"
}
