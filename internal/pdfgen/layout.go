package pdfgen

import (
	"strings"

	"github.com/go-pdf/fpdf"
)

// layout carries the document and the vertical cursor through every drawing
// step. Drawing methods advance y themselves.
type layout struct {
	pdf   *fpdf.Fpdf
	tr    func(string) string
	pageW float64
	pageH float64
	y     float64
}

func newLayout(pdf *fpdf.Fpdf) *layout {
	w, h := pdf.GetPageSize()
	return &layout{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		pageW: w,
		pageH: h,
		y:     marginTop,
	}
}

func (l *layout) contentWidth() float64 {
	return l.pageW - marginLeft - marginRight
}

func (l *layout) usableHeight() float64 {
	return l.pageH - marginTop - marginBottom
}

func (l *layout) newPage() {
	l.pdf.AddPage()
	l.y = marginTop
}

// reserve starts a new page when a block of height h does not fit below the
// cursor. It reports whether a page was added.
func (l *layout) reserve(h float64) bool {
	y, brk := placeBlock(l.y, h, l.pageH, marginTop, marginBottom)
	if brk {
		l.newPage()
	}
	l.y = y
	return brk
}

// placeBlock returns where a block of height h starting at y is drawn and
// whether a page break must precede it. A block that overflows an already
// fresh page is drawn in place.
func placeBlock(y, h, pageH, top, bottom float64) (float64, bool) {
	if y+h > pageH-bottom && y > top {
		return top, true
	}
	return y, false
}

func (l *layout) setFill(c rgb) { l.pdf.SetFillColor(c.r, c.g, c.b) }
func (l *layout) setDraw(c rgb) { l.pdf.SetDrawColor(c.r, c.g, c.b) }
func (l *layout) setText(c rgb) { l.pdf.SetTextColor(c.r, c.g, c.b) }

// lines translates text to the core font encoding and wraps it to width
// using the current font.
func (l *layout) lines(text string, width float64) []string {
	return wrapText(l.pdf.GetStringWidth, l.tr(text), width)
}

// wrapText breaks text into lines no wider than width. Explicit newlines are
// kept; words longer than a line are split.
func wrapText(measure func(string) float64, text string, width float64) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := ""
		for _, word := range words {
			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if measure(candidate) <= width {
				line = candidate
				continue
			}
			if line != "" {
				out = append(out, line)
				line = ""
			}
			for measure(word) > width && len(word) > 1 {
				cut := fitPrefix(measure, word, width)
				out = append(out, word[:cut])
				word = word[cut:]
			}
			line = word
		}
		out = append(out, line)
	}
	return out
}

// fitPrefix returns the length of the longest prefix of word that fits,
// never less than one byte. Text is single-byte encoded at this point.
func fitPrefix(measure func(string) float64, word string, width float64) int {
	n := 1
	for n < len(word) && measure(word[:n+1]) <= width {
		n++
	}
	return n
}
