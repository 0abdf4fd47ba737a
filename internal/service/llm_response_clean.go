package service

import (
	"regexp"
	"strings"
)

var (
	fenceStartRe = regexp.MustCompile("(?s)^\\s*```(?:markdown|md|text)?[ \\t]*\\n")
	fenceEndRe   = regexp.MustCompile("(?s)\\n\\s*```\\s*$")
)

// CleanLLMTextResponse quita BOM y un fence ``` que envuelva toda la respuesta.
// Los fences internos se dejan tal cual.
func CleanLLMTextResponse(raw string) string {
	s := strings.TrimPrefix(raw, "\uFEFF")
	if strings.TrimSpace(s) == "" {
		return ""
	}

	if fenceStartRe.MatchString(s) && fenceEndRe.MatchString(s) {
		s = fenceStartRe.ReplaceAllString(s, "")
		s = fenceEndRe.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}
