package request

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mireles/aibridge/pkg/extract"
	"github.com/mireles/aibridge/pkg/registry"
)

// Default output-token ceilings applied when the caller does not set one.
// Reasoning-class models get the high ceiling; everything else the low one.
const (
	reasoningMaxTokens = 20000
	standardMaxTokens  = 2000
)

// reasoningKeywords classify a model name as reasoning-class for the
// max-token default. The set is a behavioral fixture; changing it changes
// billing-relevant defaults.
var reasoningKeywords = []string{"gpt-5", "o3", "opus", "sonnet", "grok-4", "deep-research", "code-fast-1"}

// The stdlib mime table does not cover every document extension on every
// platform; register the ones attachment classification depends on.
func init() {
	for ext, typ := range map[string]string{
		".txt":  "text/plain",
		".md":   "text/markdown",
		".pdf":  "application/pdf",
		".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		".doc":  "application/msword",
	} {
		_ = mime.AddExtensionType(ext, typ)
	}
}

// Attachments is the result of classifying raw caller attachments.
type Attachments struct {
	Images      []string           // Image paths/URLs, including images found in Files.
	Files       []string           // Every normalized file path, in input order.
	NativeFiles []string           // Files the target model ingests as raw binary.
	Documents   []extract.Document // Extracted text for everything else.
}

// Normalizer builds canonical requests from raw inputs. It consults the
// registry for native-file capability and delegates text extraction to the
// configured Extractor. Given identical inputs it produces identical output
// apart from the request timestamp.
type Normalizer struct {
	Registry  *registry.Registry
	Extractor extract.Extractor
}

// NewNormalizer creates a Normalizer with the default file extractor.
func NewNormalizer(reg *registry.Registry) *Normalizer {
	return &Normalizer{Registry: reg, Extractor: extract.FileExtractor{}}
}

// PrepareAttachments resolves paths, classifies files by MIME type, and
// splits them into images, native binary files, and extracted documents.
// Image MIME types join the image list; types on the target model's native
// allow-list stay opaque for the provider adapter to upload; everything else
// goes through the extractor. Files that do not exist, and files the
// extractor does not support, are skipped.
func (n *Normalizer) PrepareAttachments(model, image string, images, files []string) Attachments {
	var out Attachments

	if image != "" {
		out.Images = append(out.Images, NormalizePathOrURL(image))
	}
	for _, img := range images {
		out.Images = append(out.Images, NormalizePathOrURL(img))
	}

	nativeTypes := n.Registry.NativeFileTypes(model)

	for _, f := range files {
		normalized := NormalizePathOrURL(f)
		out.Files = append(out.Files, normalized)

		if _, err := os.Stat(normalized); err != nil {
			continue
		}

		mimeType := mime.TypeByExtension(filepath.Ext(normalized))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		// TypeByExtension can append charset parameters (e.g.
		// "text/plain; charset=utf-8"); classification uses the bare type.
		if base, _, err := mime.ParseMediaType(mimeType); err == nil {
			mimeType = base
		}

		if strings.HasPrefix(mimeType, "image/") {
			out.Images = append(out.Images, normalized)
			continue
		}

		if containsString(nativeTypes, mimeType) {
			out.NativeFiles = append(out.NativeFiles, normalized)
			continue
		}

		// Unsupported formats and read failures are both skipped; attachment
		// handling is best-effort and must not fail the request.
		doc, err := n.Extractor.Extract(normalized)
		if err != nil {
			continue
		}
		out.Documents = append(out.Documents, *doc)
	}

	return out
}

// BuildContextMessages produces the ordered context blocks for a request:
// the memory snapshot first (a labeled key/value list with keys sorted for
// determinism), then one block per extracted document.
func BuildContextMessages(documents []extract.Document, memorySnapshot map[string]string) []string {
	var messages []string

	if len(memorySnapshot) > 0 {
		keys := make([]string, 0, len(memorySnapshot))
		for k := range memorySnapshot {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		b.WriteString("[memory snapshot]")
		for _, k := range keys {
			fmt.Fprintf(&b, "\n- %s: %s", k, memorySnapshot[k])
		}
		messages = append(messages, b.String())
	}

	for i := range documents {
		messages = append(messages, documents[i].PromptBlock())
	}

	return messages
}

// NormalizeHistory drops turns missing a role or content and returns nil
// when nothing survives.
func NormalizeHistory(history []Turn) []Turn {
	var out []Turn
	for _, t := range history {
		if t.Role == "" || t.Content == "" {
			continue
		}
		out = append(out, t)
	}

	return out
}

// NormalizeMaxTokens applies the default output-token policy. A caller-
// supplied value (> 0) is used unchanged. Otherwise reasoning-class models
// get the high ceiling and everything else the low one.
func NormalizeMaxTokens(userValue int, model string) int {
	if userValue > 0 {
		return userValue
	}

	lower := strings.ToLower(model)
	for _, kw := range reasoningKeywords {
		if strings.Contains(lower, kw) {
			return reasoningMaxTokens
		}
	}

	return standardMaxTokens
}

// NormalizePathOrURL resolves existing local paths to absolute form and
// returns everything else (URLs, missing paths) unchanged.
func NormalizePathOrURL(value string) string {
	if strings.Contains(value, "://") {
		return value
	}

	if _, err := os.Stat(value); err != nil {
		return value
	}

	abs, err := filepath.Abs(value)
	if err != nil {
		return value
	}

	return abs
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
