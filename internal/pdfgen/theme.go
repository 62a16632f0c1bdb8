package pdfgen

type rgb struct {
	r, g, b int
}

var (
	colorPrimary    = rgb{0, 59, 92}
	colorHeaderText = rgb{255, 255, 255}
	colorText       = rgb{33, 37, 41}
	colorMuted      = rgb{108, 117, 125}
	colorBorder     = rgb{206, 212, 218}
	colorLabelFill  = rgb{241, 243, 245}
	colorWhite      = rgb{255, 255, 255}
)

const (
	fontFamily     = "Helvetica"
	fontSizeBody   = 9.0
	fontSizeHeader = 10.0
	fontSizeTitle  = 18.0
	fontSizeFooter = 8.0

	// A4 portrait, millimetres.
	marginLeft   = 14.0
	marginRight  = 14.0
	marginTop    = 15.0
	marginBottom = 20.0

	logoX    = 14.0
	logoY    = 10.0
	logoMaxW = 50.0
	logoMaxH = 20.0

	// logoRatio is applied to every logo regardless of its real dimensions.
	logoRatio = 300.0 / 91.0

	titleY         = 14.0
	summaryY       = 40.0
	summaryGap     = 6.0
	sectionSpacing = 6.0

	lineHeight       = 4.5
	cellPadding      = 1.8
	headerHeight     = 7.0
	labelColumnRatio = 0.35

	footerOffset = 12.0
	imageGap     = 4.0
	pxToMM       = 25.4 / 96

	signatureMaxW = 60.0
	signatureMaxH = 25.0
)
