// Package structured parses model output into structured data when a JSON
// response format was requested. Models frequently wrap payloads in markdown
// fences or emit slightly malformed JSON, so parsing strips fences first and
// falls back to a repair pass before giving up.
package structured

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Parse extracts a JSON object or array from model output. Returns the
// decoded value, repairing near-JSON (unquoted keys, single quotes, trailing
// commas) when a strict decode fails.
func Parse(text string) (any, error) {
	var result any
	if err := Decode(text, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Decode unmarshals model output into v, stripping markdown fences and
// repairing near-JSON when a strict decode fails.
func Decode(text string, v any) error {
	content := StripFences(text)

	err := json.Unmarshal([]byte(content), v)
	if err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return fmt.Errorf("structured: decode: %w (repair also failed: %v)", err, repairErr)
	}

	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("structured: decode repaired output: %w", err)
	}

	return nil
}

// DecodeAs is the generic form of Decode.
func DecodeAs[T any](text string) (T, error) {
	var result T
	if err := Decode(text, &result); err != nil {
		return result, err
	}

	return result, nil
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, returning the inner content trimmed. Text without a fence is
// returned trimmed.
func StripFences(text string) string {
	content := strings.TrimSpace(text)

	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		// Drop the language tag line (e.g. "json").
		first := strings.TrimSpace(content[:idx])
		if !strings.ContainsAny(first, "{}[]\"") {
			content = content[idx+1:]
		}
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")

	return strings.TrimSpace(content)
}
