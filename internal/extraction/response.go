package extraction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gitlab.com/yelinaung/cashflow-ledger/internal/normalize"
)

// ErrNoJSON indicates the collaborator response contained no JSON object.
var ErrNoJSON = errors.New("no JSON object in response")

// ParseResponse extracts the single JSON object from a collaborator response,
// tolerating code fences and surrounding prose.
func ParseResponse(text string) (normalize.Fields, error) {
	jsonText := extractJSON(stripCodeFences(text))
	if jsonText == "" {
		return nil, ErrNoJSON
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(jsonText)))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}
	if fields == nil {
		return nil, ErrNoJSON
	}

	return normalize.Fields(fields), nil
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		// Drop the language tag on the opening fence.
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.Contains(rest[:nl], "{") {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		text = rest
	}
	return strings.TrimSpace(text)
}

// extractJSON returns the text from the first { to the last }.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(text, "}")
	if end == -1 || end <= start {
		return ""
	}

	return text[start : end+1]
}
