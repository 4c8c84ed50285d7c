// Package extract pulls readable text out of user-supplied documents so it
// can be inlined into prompts for models without native binary-file support.
// Fidelity is deliberately modest: text is hard-capped and unsupported
// formats are reported, not guessed at. Callers needing richer parsing (PDF
// layout, OCR) plug in their own [Extractor].
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxExtractedChars caps the text kept from a single document. Longer
// documents are truncated and flagged.
const MaxExtractedChars = 6000

// ErrUnsupported is returned for file types the extractor cannot handle.
var ErrUnsupported = errors.New("extract: unsupported file type")

// Document is the text pulled from a non-native attachment.
type Document struct {
	Name      string // Base file name.
	MIMEType  string // Detected MIME type.
	Text      string // Extracted text, capped at MaxExtractedChars.
	Truncated bool   // True when the cap cut the text short.
}

// PromptBlock formats the document for inclusion in a chat prompt.
func (d *Document) PromptBlock() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[file: %s | type: %s]\n", d.Name, d.MIMEType)
	b.WriteString(strings.TrimSpace(d.Text))
	if d.Truncated {
		b.WriteString("\n... (remaining content omitted)")
	}

	return b.String()
}

// Extractor turns a file path into a Document. Implementations return
// ErrUnsupported (possibly wrapped) for file types they cannot handle.
type Extractor interface {
	Extract(path string) (*Document, error)
}

// FileExtractor is the default Extractor. It reads plain text and markdown
// directly and emits placeholder documents for binary document formats it
// has no parser for, so the file still surfaces in the prompt rather than
// vanishing silently.
type FileExtractor struct{}

var _ Extractor = FileExtractor{}

// Extract reads the file at path and returns its capped text content.
func (FileExtractor) Extract(path string) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return readTextFile(path, "text/plain")
	case ".md":
		return readTextFile(path, "text/markdown")
	case ".pdf":
		return placeholder(path, "application/pdf",
			"(PDF text extraction is not built in; attach to a model with native PDF support or supply a custom extractor.)")
	case ".docx":
		return placeholder(path, "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"(DOCX text extraction is not built in; supply a custom extractor to inline this document.)")
	case ".doc":
		return placeholder(path, "application/msword",
			"(Legacy DOC files are not supported; convert to DOCX or plain text.)")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
}

func readTextFile(path, mimeType string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path was validated by the attachment normalizer
	if err != nil {
		return nil, fmt.Errorf("extract: read %s: %w", filepath.Base(path), err)
	}

	text, truncated := truncate(string(data))

	return &Document{
		Name:      filepath.Base(path),
		MIMEType:  mimeType,
		Text:      text,
		Truncated: truncated,
	}, nil
}

func placeholder(path, mimeType, note string) (*Document, error) {
	return &Document{
		Name:     filepath.Base(path),
		MIMEType: mimeType,
		Text:     note,
	}, nil
}

// truncate enforces MaxExtractedChars and reports whether text was cut.
func truncate(text string) (string, bool) {
	if len(text) <= MaxExtractedChars {
		return text, false
	}

	return text[:MaxExtractedChars], true
}
