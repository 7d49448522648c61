package llm

import "strings"

// extractJSON strips markdown code fences from model output and returns the
// outermost JSON object, or "" if none is present.
func extractJSON(text string) string {
	clean := strings.TrimSpace(text)

	if idx := strings.Index(clean, "```json"); idx >= 0 {
		clean = clean[idx+len("```json"):]
		if end := strings.Index(clean, "```"); end >= 0 {
			clean = clean[:end]
		}
		clean = strings.TrimSpace(clean)
	} else if idx := strings.Index(clean, "```"); idx >= 0 {
		clean = clean[idx+len("```"):]
		if end := strings.Index(clean, "```"); end >= 0 {
			clean = clean[:end]
		}
		clean = strings.TrimSpace(clean)
	}

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end <= start {
		return ""
	}
	return clean[start : end+1]
}
