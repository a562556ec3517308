package util

import (
	"regexp"
	"strings"
)

var (
	// Matches various think/reasoning tag formats
	thinkTagRegex = regexp.MustCompile(`(?i)<think(?:ing)?>([\s\S]*?)</think(?:ing)?>`)
	// Some models emit an opening tag and never close it before the answer
	unclosedThinkRegex = regexp.MustCompile(`(?i)^\s*<think(?:ing)?>[\s\S]*$`)
	// Markdown heading or bold title on the first line, e.g. "# Genesis 1" or "**Summary**"
	headingLineRegex = regexp.MustCompile(`^(#{1,6}\s+.*|\*\*[^*]+\*\*:?)$`)
)

// preamblePrefixes are lead-ins models add despite being told to output only the summary
var preamblePrefixes = []string{
	"here is a summary",
	"here's a summary",
	"here is the summary",
	"here's the summary",
	"summary:",
	"sure!",
	"sure,",
	"certainly!",
	"certainly,",
}

// ContainsThinkTags checks if the response contains think/reasoning tags
func ContainsThinkTags(response string) bool {
	return thinkTagRegex.MatchString(response)
}

// StripThinkTags removes think/reasoning blocks and trims the rest.
// A response that is nothing but an unclosed think block becomes empty.
func StripThinkTags(response string) string {
	result := thinkTagRegex.ReplaceAllString(response, "")
	if unclosedThinkRegex.MatchString(result) {
		return ""
	}
	return strings.TrimSpace(result)
}

// CleanSummary turns a raw chat response into summary text: think blocks,
// a leading preamble line and a leading heading are removed.
func CleanSummary(response string) string {
	text := StripThinkTags(response)
	if text == "" {
		return ""
	}

	for i := 0; i < 2; i++ {
		first, rest, found := strings.Cut(text, "\n")
		line := strings.TrimSpace(first)
		if !found {
			break
		}
		if isPreamble(line) || headingLineRegex.MatchString(line) {
			text = strings.TrimSpace(rest)
			continue
		}
		break
	}

	return text
}

func isPreamble(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range preamblePrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
