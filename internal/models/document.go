package models

import "time"

type DocumentType string

const (
	DocumentDOCX DocumentType = "docx"
	DocumentPDF  DocumentType = "pdf"
)

// ParseDocumentType accepts only docx and pdf.
func ParseDocumentType(s string) (DocumentType, bool) {
	switch DocumentType(s) {
	case DocumentDOCX, DocumentPDF:
		return DocumentType(s), true
	}
	return "", false
}

// ContentType is the MIME type served for downloads.
func (t DocumentType) ContentType() string {
	if t == DocumentPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
}

// Document is a rendered export attached to a conversation.
type Document struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Type           DocumentType `json:"type"`
	URL            string       `json:"url"`
	FileName       string       `json:"-"`
	ConversationID string       `json:"conversationId"`
	CreatedAt      time.Time    `json:"createdAt"`
}
