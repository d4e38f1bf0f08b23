package render

import (
	"bytes"

	"agentdocs/internal/apperr"
	"agentdocs/internal/models"
)

const bullet = "• "

// Render parses content and encodes it in the requested format.
func Render(content string, typ models.DocumentType) ([]byte, error) {
	blocks := Parse(content)
	var buf bytes.Buffer
	var err error
	switch typ {
	case models.DocumentDOCX:
		err = DOCX(&buf, blocks)
	case models.DocumentPDF:
		err = PDF(&buf, blocks)
	default:
		return nil, apperr.Invalid("type must be docx or pdf")
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
