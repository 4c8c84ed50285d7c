package request_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mireles/aibridge/pkg/extract"
	"github.com/mireles/aibridge/pkg/registry"
	"github.com/mireles/aibridge/pkg/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestNormalizeMaxTokens(t *testing.T) {
	tests := []struct {
		model string
		user  int
		want  int
	}{
		{"gpt-5-foo", 0, 20000},
		{"gpt-4.1-mini", 0, 2000},
		{"claude-opus-4", 0, 20000},
		{"claude-sonnet-4", 0, 20000},
		{"o3-deep-research", 0, 20000},
		{"grok-code-fast-1", 0, 20000},
		{"gemini-2.5-flash", 0, 2000},
		{"anything", 42, 42},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, request.NormalizeMaxTokens(tt.user, tt.model))
		})
	}
}

func TestNormalizeHistory(t *testing.T) {
	history := []request.Turn{
		{Role: "user", Content: "hi"},
		{Role: "", Content: "dropped"},
		{Role: "assistant", Content: ""},
		{Role: "assistant", Content: "hello"},
	}

	got := request.NormalizeHistory(history)
	require.Len(t, got, 2)
	assert.Equal(t, "hi", got[0].Content)
	assert.Equal(t, "hello", got[1].Content)
}

func TestNormalizeHistory_AllInvalid(t *testing.T) {
	assert.Nil(t, request.NormalizeHistory([]request.Turn{{Role: "user"}, {Content: "x"}}))
	assert.Nil(t, request.NormalizeHistory(nil))
}

func TestNormalizePathOrURL(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "x")

	abs := request.NormalizePathOrURL(path)
	assert.True(t, filepath.IsAbs(abs))

	// URLs and missing paths pass through untouched.
	assert.Equal(t, "https://example.com/cat.png", request.NormalizePathOrURL("https://example.com/cat.png"))
	assert.Equal(t, "no/such/file.txt", request.NormalizePathOrURL("no/such/file.txt"))
}

func TestPrepareAttachments_Classification(t *testing.T) {
	dir := t.TempDir()
	imagePath := writeFile(t, dir, "photo.png", "\x89PNG")
	textPath := writeFile(t, dir, "notes.txt", "plain text")
	zipPath := writeFile(t, dir, "data.zip", "PK")

	n := request.NewNormalizer(registry.New())

	got := n.PrepareAttachments("gpt-5", "", nil, []string{imagePath, textPath, zipPath})

	require.Len(t, got.Images, 1)
	assert.Equal(t, imagePath, got.Images[0])

	require.Len(t, got.Documents, 1)
	assert.Equal(t, "notes.txt", got.Documents[0].Name)

	assert.Empty(t, got.NativeFiles)
	assert.Len(t, got.Files, 3) // every input path is retained
}

// A PDF routed to a model with native PDF support must become a native file
// with no extracted document; the same PDF on a model without native support
// goes through extraction instead.
func TestPrepareAttachments_NativeFileRouting(t *testing.T) {
	dir := t.TempDir()
	pdfPath := writeFile(t, dir, "paper.pdf", "%PDF-1.4")

	n := request.NewNormalizer(registry.New())

	native := n.PrepareAttachments("gemini-2.5-flash", "", nil, []string{pdfPath})
	require.Len(t, native.NativeFiles, 1)
	assert.Empty(t, native.Documents)

	extracted := n.PrepareAttachments("gpt-5", "", nil, []string{pdfPath})
	assert.Empty(t, extracted.NativeFiles)
	require.Len(t, extracted.Documents, 1)
	assert.Equal(t, "application/pdf", extracted.Documents[0].MIMEType)
}

func TestPrepareAttachments_MissingFileSkipped(t *testing.T) {
	n := request.NewNormalizer(registry.New())

	got := n.PrepareAttachments("gpt-5", "", nil, []string{"no/such/file.txt"})
	assert.Len(t, got.Files, 1)
	assert.Empty(t, got.Documents)
	assert.Empty(t, got.Images)
}

func TestPrepareAttachments_SingleImageAndList(t *testing.T) {
	n := request.NewNormalizer(registry.New())

	got := n.PrepareAttachments("gpt-5", "https://example.com/a.png",
		[]string{"https://example.com/b.png"}, nil)
	assert.Equal(t, []string{"https://example.com/a.png", "https://example.com/b.png"}, got.Images)
}

func TestBuildContextMessages_Order(t *testing.T) {
	docs := []extract.Document{
		{Name: "a.txt", MIMEType: "text/plain", Text: "alpha"},
		{Name: "b.txt", MIMEType: "text/plain", Text: "beta"},
	}
	snapshot := map[string]string{"name": "Ada", "city": "London"}

	got := request.BuildContextMessages(docs, snapshot)
	require.Len(t, got, 3)

	// Memory snapshot comes first with sorted keys.
	assert.True(t, strings.HasPrefix(got[0], "[memory snapshot]"))
	assert.Less(t, strings.Index(got[0], "city"), strings.Index(got[0], "name"))

	assert.Contains(t, got[1], "a.txt")
	assert.Contains(t, got[2], "b.txt")
}

func TestBuildContextMessages_Empty(t *testing.T) {
	assert.Empty(t, request.BuildContextMessages(nil, nil))
}

func TestRequestValidate(t *testing.T) {
	err := (&request.Request{}).Validate()
	require.Error(t, err)

	var verr *request.ValidationError
	require.ErrorAs(t, err, &verr)

	assert.NoError(t, (&request.Request{Message: "hi"}).Validate())
	assert.NoError(t, (&request.Request{History: []request.Turn{{Role: "user", Content: "hi"}}}).Validate())

	assert.Error(t, (&request.Request{Type: request.TypeImageGeneration}).Validate())
	assert.NoError(t, (&request.Request{Type: request.TypeImageGeneration, Prompt: "a cat"}).Validate())
	assert.Error(t, (&request.Request{Type: request.TypeAudioTranscription}).Validate())
	assert.Error(t, (&request.Request{Type: request.TypeTextToSpeech}).Validate())
}

func TestRequestKind(t *testing.T) {
	assert.Equal(t, request.TypeChat, (&request.Request{}).Kind())
	assert.Equal(t, request.TypeTextToSpeech, (&request.Request{Type: request.TypeTextToSpeech}).Kind())
}
