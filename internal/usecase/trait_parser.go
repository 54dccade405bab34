package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseTraitArray pulls the JSON trait array out of a model reply.
// Models wrap the array in prose or a code fence often enough that the
// parser tolerates any prefix and suffix: it takes the span from the
// first '[' to the last ']'. Non-string elements are skipped; strings
// are trimmed and empties dropped.
func ParseTraitArray(reply string) ([]string, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array found in reply")
	}

	var raw []any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse trait array: %w", err)
	}

	traits := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		traits = append(traits, s)
	}
	if len(traits) == 0 {
		return nil, fmt.Errorf("trait array contained no usable entries")
	}
	return traits, nil
}
