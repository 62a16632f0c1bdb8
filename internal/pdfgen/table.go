package pdfgen

func (t Table) columnWidths(width float64) []float64 {
	if len(t.Columns) == 0 {
		label := width * labelColumnRatio
		return []float64{label, width - label}
	}
	widths := make([]float64, len(t.Columns))
	used := 0.0
	for i, c := range t.Columns {
		if i == len(t.Columns)-1 {
			widths[i] = width - used
			break
		}
		widths[i] = width * c.Width
		used += widths[i]
	}
	return widths
}

func (t Table) hasColumnHeaders() bool {
	for _, c := range t.Columns {
		if c.Header != "" {
			return true
		}
	}
	return false
}

// keyValue tables draw their first column as a shaded bold label.
func (t Table) isLabelCell(col int) bool {
	return len(t.Columns) == 0 && col == 0
}

func (l *layout) cellFont(bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	l.pdf.SetFont(fontFamily, style, fontSizeBody)
}

// wrapRow wraps every cell of row and returns the lines and the row height.
func (l *layout) wrapRow(t Table, row []string, widths []float64) ([][]string, float64) {
	cells := make([][]string, len(widths))
	maxLines := 1
	for i := range widths {
		text := ""
		if i < len(row) {
			text = row[i]
		}
		l.cellFont(t.isLabelCell(i))
		cells[i] = l.lines(text, widths[i]-2*cellPadding)
		maxLines = max(maxLines, len(cells[i]))
	}
	return cells, float64(maxLines)*lineHeight + 2*cellPadding
}

// drawTable draws t across the content width at the cursor, breaking pages
// between rows and repeating the header rows on each new page.
func (l *layout) drawTable(t Table) {
	widths := t.columnWidths(l.contentWidth())
	heading := headerHeight
	if t.hasColumnHeaders() {
		heading += headerHeight
	}
	first := 0.0
	if len(t.Rows) > 0 {
		_, first = l.wrapRow(t, t.Rows[0], widths)
	}
	l.reserve(heading + first)
	l.drawHeading(t, marginLeft, widths)
	for _, row := range t.Rows {
		cells, h := l.wrapRow(t, row, widths)
		if l.reserve(h) {
			l.drawHeading(t, marginLeft, widths)
		}
		l.drawRow(t, marginLeft, cells, widths, h)
	}
	l.y += sectionSpacing
}

// drawTableAt draws t at a fixed position without page breaks and returns
// the y just below it. Used for the summary tables on the first page.
func (l *layout) drawTableAt(t Table, x, y, width float64) float64 {
	saved := l.y
	l.y = y
	widths := t.columnWidths(width)
	l.drawHeading(t, x, widths)
	for _, row := range t.Rows {
		cells, h := l.wrapRow(t, row, widths)
		l.drawRow(t, x, cells, widths, h)
	}
	bottom := l.y
	l.y = saved
	return bottom
}

func (l *layout) drawHeading(t Table, x float64, widths []float64) {
	width := 0.0
	for _, w := range widths {
		width += w
	}
	l.drawTitleBar(t.Title, x, width)
	if !t.hasColumnHeaders() {
		return
	}
	l.setFill(colorLabelFill)
	l.setDraw(colorBorder)
	l.setText(colorPrimary)
	l.pdf.SetFont(fontFamily, "B", fontSizeBody)
	cx := x
	for i, c := range t.Columns {
		l.pdf.Rect(cx, l.y, widths[i], headerHeight, "FD")
		l.pdf.SetXY(cx+cellPadding, l.y)
		l.pdf.CellFormat(widths[i]-2*cellPadding, headerHeight, l.tr(c.Header), "", 0, "L", false, 0, "")
		cx += widths[i]
	}
	l.y += headerHeight
}

func (l *layout) drawTitleBar(title string, x, width float64) {
	l.setFill(colorPrimary)
	l.pdf.Rect(x, l.y, width, headerHeight, "F")
	l.setText(colorHeaderText)
	l.pdf.SetFont(fontFamily, "B", fontSizeHeader)
	l.pdf.SetXY(x+cellPadding, l.y)
	l.pdf.CellFormat(width-2*cellPadding, headerHeight, l.tr(title), "", 0, "L", false, 0, "")
	l.y += headerHeight
}

func (l *layout) drawRow(t Table, x float64, cells [][]string, widths []float64, h float64) {
	l.setDraw(colorBorder)
	cx := x
	for i, lines := range cells {
		label := t.isLabelCell(i)
		if label {
			l.setFill(colorLabelFill)
			l.setText(colorPrimary)
		} else {
			l.setFill(colorWhite)
			l.setText(colorText)
		}
		l.pdf.Rect(cx, l.y, widths[i], h, "FD")
		l.cellFont(label)
		for n, line := range lines {
			if line == "" {
				continue
			}
			l.pdf.SetXY(cx+cellPadding, l.y+cellPadding+float64(n)*lineHeight)
			l.pdf.CellFormat(widths[i]-2*cellPadding, lineHeight, line, "", 0, "L", false, 0, "")
		}
		cx += widths[i]
	}
	l.y += h
}
