// Package render turns the markdown subset produced by agents into DOCX and PDF files.
package render

import (
	"regexp"
	"strings"
)

type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
)

// Block is one rendered paragraph. Level is set for headings only.
type Block struct {
	Kind  BlockKind
	Level int
	Runs  []Run
}

// Text is the block's plain text.
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	bulletRe   = regexp.MustCompile(`^[-*]\s+`)
	numberedRe = regexp.MustCompile(`^\d+\.\s+`)
)

// Parse splits content into blocks, one per non-blank line. Fence lines are dropped and
// the lines between them become ordinary paragraphs.
func Parse(content string) []Block {
	var blocks []Block
	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		var b Block
		switch {
		case headingRe.MatchString(line):
			m := headingRe.FindStringSubmatch(line)
			b = Block{Kind: BlockHeading, Level: len(m[1]), Runs: Inline(m[2])}
		case bulletRe.MatchString(line):
			b = Block{Kind: BlockListItem, Runs: Inline(bulletRe.ReplaceAllString(line, ""))}
		case numberedRe.MatchString(line):
			b = Block{Kind: BlockListItem, Runs: Inline(numberedRe.ReplaceAllString(line, ""))}
		default:
			b = Block{Kind: BlockParagraph, Runs: Inline(line)}
		}
		if len(b.Runs) == 0 {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks
}
