package providers

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// ImageRef converts an image reference into a form provider payloads accept:
// http(s) URLs pass through, local paths are inlined as base64 data URLs.
func ImageRef(ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}

	mimeType, data, err := InlineFile(ref)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("data:%s;base64,%s", mimeType, data), nil
}

// InlineFile reads a local file and returns its MIME type and base64 payload
// for providers that accept inline binary data.
func InlineFile(path string) (string, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read file %s: %w", path, err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}

	return mimeType, base64.StdEncoding.EncodeToString(raw), nil
}
