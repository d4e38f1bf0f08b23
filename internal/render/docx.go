package render

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

	docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

	docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

	wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`
)

// heading sizes are in half-points
var docxHeadingSizes = [...]int{48, 40, 32, 28}

func docxStyles() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<w:styles ` + wordNS + `>`)
	sb.WriteString(`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/>` +
		`<w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri"/><w:sz w:val="24"/></w:rPr></w:style>`)
	for i, size := range docxHeadingSizes {
		fmt.Fprintf(&sb, `<w:style w:type="paragraph" w:styleId="Heading%[1]d"><w:name w:val="heading %[1]d"/>`+
			`<w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>`+
			`<w:pPr><w:keepNext/><w:outlineLvl w:val="%[2]d"/></w:pPr>`+
			`<w:rPr><w:b/><w:sz w:val="%[3]d"/></w:rPr></w:style>`, i+1, i, size)
	}
	sb.WriteString(`</w:styles>`)
	return sb.String()
}

// DOCX writes blocks as a minimal WordprocessingML package.
func DOCX(w io.Writer, blocks []Block) error {
	zw := zip.NewWriter(w)
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRootRels},
		{"word/_rels/document.xml.rels", docxDocumentRels},
		{"word/styles.xml", docxStyles()},
		{"word/document.xml", docxDocument(blocks)},
	}
	for _, p := range parts {
		f, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := io.WriteString(f, p.body); err != nil {
			return fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close docx: %w", err)
	}
	return nil
}

func docxDocument(blocks []Block) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString(`<w:document ` + wordNS + `><w:body>`)
	for _, b := range blocks {
		sb.WriteString(`<w:p><w:pPr>`)
		runs := b.Runs
		switch b.Kind {
		case BlockHeading:
			fmt.Fprintf(&sb, `<w:pStyle w:val="Heading%d"/><w:spacing w:before="240" w:after="120"/>`, clampLevel(b.Level))
		case BlockListItem:
			sb.WriteString(`<w:spacing w:before="60" w:after="60"/><w:ind w:left="720"/>`)
			runs = append([]Run{{Text: bullet}}, runs...)
		default:
			sb.WriteString(`<w:spacing w:before="120" w:after="120"/>`)
		}
		sb.WriteString(`</w:pPr>`)
		for _, r := range runs {
			writeDocxRun(&sb, r)
		}
		sb.WriteString(`</w:p>`)
	}
	sb.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="708" w:footer="708" w:gutter="0"/>` +
		`</w:sectPr></w:body></w:document>`)
	return sb.String()
}

func writeDocxRun(sb *strings.Builder, r Run) {
	sb.WriteString(`<w:r>`)
	if r.Bold || r.Italic || r.Code {
		sb.WriteString(`<w:rPr>`)
		if r.Code {
			sb.WriteString(`<w:rFonts w:ascii="Courier New" w:hAnsi="Courier New" w:cs="Courier New"/>`)
		}
		if r.Bold {
			sb.WriteString(`<w:b/>`)
		}
		if r.Italic {
			sb.WriteString(`<w:i/>`)
		}
		sb.WriteString(`</w:rPr>`)
	}
	sb.WriteString(`<w:t xml:space="preserve">`)
	_ = xml.EscapeText(sb, []byte(r.Text))
	sb.WriteString(`</w:t></w:r>`)
}

// clampLevel maps heading levels 5 and 6 onto the smallest heading style.
func clampLevel(level int) int {
	switch {
	case level < 1:
		return 1
	case level > len(docxHeadingSizes):
		return len(docxHeadingSizes)
	}
	return level
}
