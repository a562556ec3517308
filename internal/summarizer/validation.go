package summarizer

import (
	"fmt"
	"strings"
)

// Common refusal openings from chat models
var refusalPatterns = []string{
	"i'm sorry, but i can't help with that",
	"i cannot help with that",
	"i can't assist with that",
	"i'm unable to help with that",
	"i apologize, but i cannot",
	"i'm not able to assist",
	"i cannot provide",
	"i'm sorry, i cannot",
	"i'm sorry, but i cannot",
	"as an ai",
}

// refusalWindow bounds how far into the summary a refusal pattern counts.
// Scripture itself can contain phrases like "I cannot provide".
const refusalWindow = 200

// refusalReason returns the matched pattern when text opens with a refusal, or ""
func refusalReason(text string) string {
	head := strings.ToLower(strings.TrimSpace(text))
	if len(head) > refusalWindow {
		head = head[:refusalWindow]
	}
	for _, pattern := range refusalPatterns {
		if strings.Contains(head, pattern) {
			return "contains refusal pattern: " + pattern
		}
	}
	return ""
}

// checkFinishReason reports whether the completion ended in a usable state
func checkFinishReason(finishReason string) (bool, string) {
	switch finishReason {
	case "", "stop", "length":
		// Empty happens with some compatible servers; length keeps a usable, shorter summary
		return true, ""
	case "content_filter":
		return false, "response blocked by content filter"
	default:
		return false, fmt.Sprintf("unexpected finish_reason: %s", finishReason)
	}
}
