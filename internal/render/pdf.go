package render

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin     = 72.0
	pdfBodySize   = 12.0
	pdfListIndent = 20.0
	pdfLeading    = 1.2
)

var pdfHeadingSizes = [...]float64{24, 20, 16, 14}

// PDF writes blocks as an A4 document in the core Helvetica family.
func PDF(w io.Writer, blocks []Block) error {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.AddPage()
	// core fonts are cp1252; accented text is translated rather than dropped
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, b := range blocks {
		switch b.Kind {
		case BlockHeading:
			size := pdfHeadingSizes[clampLevel(b.Level)-1]
			pdf.Ln(size * 0.5)
			writePDFRuns(pdf, tr, b.Runs, size, true)
			pdf.Ln(size * pdfLeading)
			pdf.Ln(size * 0.3)
		case BlockListItem:
			pdf.SetLeftMargin(pdfMargin + pdfListIndent)
			pdf.SetX(pdfMargin + pdfListIndent)
			runs := append([]Run{{Text: bullet}}, b.Runs...)
			writePDFRuns(pdf, tr, runs, pdfBodySize, false)
			pdf.Ln(pdfBodySize * pdfLeading)
			pdf.SetLeftMargin(pdfMargin)
		default:
			writePDFRuns(pdf, tr, b.Runs, pdfBodySize, false)
			pdf.Ln(pdfBodySize * pdfLeading)
			pdf.Ln(pdfBodySize * 0.3)
		}
		if err := pdf.Error(); err != nil {
			return fmt.Errorf("render pdf: %w", err)
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func writePDFRuns(pdf *fpdf.Fpdf, tr func(string) string, runs []Run, size float64, heading bool) {
	for _, r := range runs {
		family, style := "Helvetica", ""
		if r.Code {
			family = "Courier"
		}
		if r.Bold || heading {
			style += "B"
		}
		if r.Italic {
			style += "I"
		}
		pdf.SetFont(family, style, size)
		pdf.Write(size*pdfLeading, tr(r.Text))
	}
}
