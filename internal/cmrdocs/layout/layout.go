package layout

import (
	"bytes"
	"fmt"
	"strings"
)

// Document is a fixed-layout consignment note ready for encoding:
// ordered sections of labeled fields plus optional table rows. It
// carries no rendering state, so encoding the same document twice
// yields identical bytes.
type Document struct {
	Title    string
	Sections []Section
}

// Section is one block of the note (a party block, the goods table,
// a signature block, the photo page).
type Section struct {
	Heading string
	Fields  []Field
	Rows    [][]string
}

// Field is a single labeled value.
type Field struct {
	Label string
	Value string
}

// Renderer turns a document into its final byte form. Drawing glyphs
// and boxes is delegated to implementations; the default encoder
// produces a deterministic plain-text form suitable for hashing,
// concatenation and archival.
type Renderer interface {
	Render(doc Document) ([]byte, error)
}

// PageBreak separates concatenated documents in a merged artifact.
var PageBreak = []byte("\n\f\n")

type textRenderer struct{}

// NewTextRenderer returns the deterministic default encoder.
func NewTextRenderer() Renderer {
	return textRenderer{}
}

func (textRenderer) Render(doc Document) ([]byte, error) {
	if doc.Title == "" {
		return nil, fmt.Errorf("document title required")
	}
	var buf bytes.Buffer
	rule := strings.Repeat("=", 72)
	buf.WriteString(rule + "\n")
	buf.WriteString(doc.Title + "\n")
	buf.WriteString(rule + "\n")
	for _, section := range doc.Sections {
		buf.WriteString("\n" + section.Heading + "\n")
		buf.WriteString(strings.Repeat("-", len(section.Heading)) + "\n")
		for _, field := range section.Fields {
			fmt.Fprintf(&buf, "%-24s %s\n", field.Label+":", field.Value)
		}
		for _, row := range section.Rows {
			buf.WriteString(strings.Join(row, " | ") + "\n")
		}
	}
	return buf.Bytes(), nil
}
