package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Pre-compiled patterns for stripping the formatting quirks models wrap
// around JSON output.
var (
	codeFenceStartRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	codeFenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)//.*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// ParseResult represents the result of a JSON parse operation
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
}

// Parse attempts to parse JSON from model output with fallback strategies.
//
// Strategy sequence:
//  1. Direct JSON parse
//  2. Remove code fences and retry
//  3. Fix common JSON issues (trailing commas, unquoted keys, comments)
//  4. Extract JSON from mixed content and retry
func Parse[T any](text string, context string) ParseResult[T] {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return createError[T]("empty input", text, context)
	}

	if result, err := tryDirectParse[T](trimmed); err == nil {
		return ParseResult[T]{Success: true, Data: result, OriginalText: text}
	} else {
		slog.Debug("direct JSON parse failed, trying cleanup strategies",
			"error", err.Error(),
			"textPreview", truncate(text, 100),
			"context", context)
	}

	withoutFences := removeCodeFences(trimmed)
	if withoutFences != trimmed {
		if result, err := tryDirectParse[T](withoutFences); err == nil {
			return ParseResult[T]{Success: true, Data: result, OriginalText: text}
		}
	}

	cleaned := cleanupJSON(withoutFences)
	if result, err := tryDirectParse[T](cleaned); err == nil {
		return ParseResult[T]{Success: true, Data: result, OriginalText: text}
	}

	if extracted := extractJSON(cleaned); extracted != "" {
		if result, err := tryDirectParse[T](extracted); err == nil {
			return ParseResult[T]{Success: true, Data: result, OriginalText: text}
		}
	}

	return createError[T]("all JSON parsing strategies failed", text, context)
}

func tryDirectParse[T any](text string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(text), &result)
	return result, err
}

// removeCodeFences strips markdown code fences from text
func removeCodeFences(text string) string {
	cleaned := codeFenceStartRegex.ReplaceAllString(text, "$1")
	if cleaned == text {
		cleaned = codeFenceAnyRegex.ReplaceAllString(text, "$1")
	}

	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.TrimPrefix(cleaned, "`")
		cleaned = strings.TrimSuffix(cleaned, "`")
	}

	return strings.TrimSpace(cleaned)
}

// cleanupJSON fixes trailing commas, unquoted keys, and comments.
// Single quotes are left alone: rewriting them would break valid JSON
// containing apostrophes.
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	cleaned = singleLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = multiLineCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractJSON pulls a JSON object or array out of mixed prose. The
// first-character check prevents extracting {"id": 1} out of
// [{"id": 1}, {"id": 2}].
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)

	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '[':
			if match := arrayRegex.FindString(text); match != "" {
				return match
			}
		case '{':
			if match := objectRegex.FindString(text); match != "" {
				return match
			}
		}
	}

	if match := objectRegex.FindString(text); match != "" {
		return match
	}
	if match := arrayRegex.FindString(text); match != "" {
		return match
	}
	return ""
}

func createError[T any](message, text, context string) ParseResult[T] {
	var zero T
	errorMsg := message
	if context != "" {
		errorMsg = context + ": " + message
	}
	return ParseResult[T]{
		Success:      false,
		Data:         zero,
		Error:        errorMsg,
		OriginalText: text,
	}
}

// truncate shortens a string to maxLen characters for log output
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// errPreview formats a model response for inclusion in an error message
func errPreview(response string) string {
	return fmt.Sprintf("(response: %s)", truncate(response, 200))
}
