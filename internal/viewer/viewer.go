// Package viewer renders the HTML page used to open a generated document.
package viewer

import (
	"embed"
	"html/template"
	"io"
	"strings"
)

//go:embed templates/viewer.html
var templatesFS embed.FS

var viewerTmpl = template.Must(template.ParseFS(templatesFS, "templates/viewer.html"))

type Page struct {
	Title    string
	FileName string
	// PDFURL is where the raw PDF can be fetched from, usually the
	// document's /pdf endpoint.
	PDFURL string
	IOS    bool
}

// IsIOSSafari reports whether the user agent is Safari (or a WebKit shell)
// on an iPhone, iPad or iPod. iPadOS desktop mode is not detected.
func IsIOSSafari(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	if !strings.Contains(ua, "iphone") && !strings.Contains(ua, "ipad") && !strings.Contains(ua, "ipod") {
		return false
	}
	return strings.Contains(ua, "applewebkit")
}

// Render writes the viewer. iOS gets a blob download prompt since it cannot
// show an embedded PDF with a working download; everything else gets an
// embedded viewer and a download button.
func Render(w io.Writer, page Page) error {
	return viewerTmpl.Execute(w, page)
}
