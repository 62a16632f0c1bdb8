package pdfgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elite6108/sitesafe/internal/assets"
)

type AssetStatus string

const (
	AssetEmbedded AssetStatus = "embedded"
	AssetSkipped  AssetStatus = "skipped"
)

const (
	RoleLogo       = "logo"
	RoleAttachment = "attachment"
	RoleSignature  = "signature"
)

// AssetResult records what happened to one image the document refers to.
type AssetResult struct {
	Role   string      `json:"role"`
	Source string      `json:"source"`
	Status AssetStatus `json:"status"`
	Reason string      `json:"reason,omitempty"`
}

// assetError pairs the short reason reported to callers with the full cause,
// which only goes to the log.
type assetError struct {
	reason string
	err    error
}

func (e *assetError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *assetError) Unwrap() error { return e.err }

type loadedImage struct {
	img assets.Image
	err error
}

// loadImage fetches and decodes source.
func (g *Generator) loadImage(ctx context.Context, source string) loadedImage {
	raw, err := g.fetcher.Fetch(ctx, source)
	if err != nil {
		return loadedImage{err: &assetError{reason: "image could not be fetched", err: err}}
	}
	img, err := assets.Decode(raw)
	if err != nil {
		return loadedImage{err: &assetError{reason: "image could not be decoded", err: err}}
	}
	return loadedImage{img: img}
}

// loadImages fetches every source concurrently and returns results in input
// order. Individual failures are carried in the result, never returned.
func (g *Generator) loadImages(ctx context.Context, sources []string) []loadedImage {
	out := make([]loadedImage, len(sources))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(g.parallel)
	for i, source := range sources {
		group.Go(func() error {
			out[i] = g.loadImage(gctx, source)
			return nil
		})
	}
	_ = group.Wait()
	return out
}

// register adds img to the document under name. A rejected image leaves the
// document usable.
func register(pdf *fpdf.Fpdf, name string, img assets.Image) error {
	pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: img.Type}, bytes.NewReader(img.Data))
	if pdf.Err() {
		err := pdf.Error()
		pdf.ClearError()
		return &assetError{reason: "image could not be embedded", err: err}
	}
	return nil
}

func (g *Generator) result(role, source string, err error) AssetResult {
	label := sourceLabel(source)
	if err == nil {
		return AssetResult{Role: role, Source: label, Status: AssetEmbedded}
	}
	g.logger.Warn("asset skipped",
		zap.String("role", role),
		zap.String("source", label),
		zap.Error(err),
	)
	reason := "image unavailable"
	var ae *assetError
	if errors.As(err, &ae) {
		reason = ae.reason
	}
	return AssetResult{Role: role, Source: label, Status: AssetSkipped, Reason: reason}
}

// sourceLabel shortens inline data URLs to their media type.
func sourceLabel(source string) string {
	if rest, ok := strings.CutPrefix(source, "data:"); ok {
		mime, _, _ := strings.Cut(rest, ";")
		return "data:" + mime
	}
	return source
}

func logoSize(maxW, maxH, ratio float64) (float64, float64) {
	w := maxW
	h := w / ratio
	if h > maxH {
		h = maxH
		w = h * ratio
	}
	return w, h
}

func (g *Generator) drawLogo(ctx context.Context, l *layout, source string) AssetResult {
	loaded := g.loadImage(ctx, source)
	if loaded.err != nil {
		return g.result(RoleLogo, source, loaded.err)
	}
	if err := register(l.pdf, "logo", loaded.img); err != nil {
		return g.result(RoleLogo, source, err)
	}
	w, h := logoSize(logoMaxW, logoMaxH, logoRatio)
	l.pdf.ImageOptions("logo", logoX, logoY, w, h, false, fpdf.ImageOptions{ImageType: loaded.img.Type}, 0, "")
	return g.result(RoleLogo, source, nil)
}

// imageDisplaySize converts pixels to millimetres at 96 dpi and shrinks the
// result to fit maxW by maxH.
func imageDisplaySize(img assets.Image, maxW, maxH float64) (float64, float64) {
	w := float64(img.Width) * pxToMM
	h := float64(img.Height) * pxToMM
	if w > maxW {
		h *= maxW / w
		w = maxW
	}
	if h > maxH {
		w *= maxH / h
		h = maxH
	}
	return w, h
}

// drawAttachments appends the ADDITIONAL IMAGES block. Nothing is drawn when
// sources is empty.
func (g *Generator) drawAttachments(ctx context.Context, l *layout, sources []string) []AssetResult {
	if len(sources) == 0 {
		return nil
	}
	loaded := g.loadImages(ctx, sources)
	l.reserve(headerHeight + lineHeight)
	l.drawTitleBar("ADDITIONAL IMAGES", marginLeft, l.contentWidth())
	l.y += imageGap

	results := make([]AssetResult, 0, len(sources))
	for i, source := range sources {
		if loaded[i].err != nil {
			results = append(results, g.result(RoleAttachment, source, loaded[i].err))
			continue
		}
		name := fmt.Sprintf("attachment-%d", i+1)
		if err := register(l.pdf, name, loaded[i].img); err != nil {
			results = append(results, g.result(RoleAttachment, source, err))
			continue
		}
		w, h := imageDisplaySize(loaded[i].img, l.contentWidth(), l.usableHeight())
		l.reserve(h)
		l.pdf.ImageOptions(name, marginLeft, l.y, w, h, false, fpdf.ImageOptions{ImageType: loaded[i].img.Type}, 0, "")
		l.y += h + imageGap
		results = append(results, g.result(RoleAttachment, source, nil))
	}
	return results
}

// drawSignature places a signature image under its table.
func (g *Generator) drawSignature(ctx context.Context, l *layout, name, source string) AssetResult {
	loaded := g.loadImage(ctx, source)
	if loaded.err != nil {
		return g.result(RoleSignature, source, loaded.err)
	}
	if err := register(l.pdf, name, loaded.img); err != nil {
		return g.result(RoleSignature, source, err)
	}
	w, h := imageDisplaySize(loaded.img, signatureMaxW, signatureMaxH)
	l.reserve(h + 2*cellPadding)
	l.setDraw(colorBorder)
	l.pdf.Rect(marginLeft, l.y, signatureMaxW+2*cellPadding, h+2*cellPadding, "D")
	l.pdf.ImageOptions(name, marginLeft+cellPadding, l.y+cellPadding, w, h, false, fpdf.ImageOptions{ImageType: loaded.img.Type}, 0, "")
	l.y += h + 2*cellPadding + sectionSpacing
	return g.result(RoleSignature, source, nil)
}
