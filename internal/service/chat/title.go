package chat

import "strings"

const (
	maxTitleLen   = 50
	titleEllipsis = "..."
)

// SummarizeTitle derives a conversation title from its first message: whitespace runs become
// single spaces, and anything longer than 50 characters is cut to 47 plus "...".
func SummarizeTitle(content string) string {
	title := strings.Join(strings.Fields(content), " ")
	runes := []rune(title)
	if len(runes) <= maxTitleLen {
		return title
	}
	return string(runes[:maxTitleLen-len(titleEllipsis)]) + titleEllipsis
}
