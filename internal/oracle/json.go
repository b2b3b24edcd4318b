package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled regexes for JSON repair of common model output errors.
var (
	// "value"\n"key": -> "value", "key":
	missingCommaBeforeKeyRegex = regexp.MustCompile(`(")\s*\n\s*("[\w][^"]*"\s*:)`)

	// 0.9\n"key": -> 0.9, "key":
	missingCommaAfterValueRegex = regexp.MustCompile(`(\d|true|false|null)\s*\n\s*("[\w][^"]*"\s*:)`)

	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)

	// {'key': -> {"key":
	singleQuoteKeyRegex = regexp.MustCompile(`([{,]\s*)'(\w+)'(\s*:)`)
)

// ParseJSON extracts the first JSON value from a model response and
// unmarshals it. Markdown fences and trailing prose are ignored, and a
// failed decode is retried once after repairing common syntax errors.
func ParseJSON[T any](response string) (T, error) {
	var result T

	cleaned := cleanResponse(response)
	if cleaned == "" {
		return result, fmt.Errorf("no JSON found in response")
	}

	idx := strings.IndexAny(cleaned, "{[")
	if idx == -1 {
		return result, fmt.Errorf("no JSON start ({ or [) found")
	}

	jsonPart := cleaned[idx:]
	if err := json.NewDecoder(strings.NewReader(jsonPart)).Decode(&result); err != nil {
		repaired := repairJSON(jsonPart)
		if repaired != jsonPart {
			var second T
			if err2 := json.NewDecoder(strings.NewReader(repaired)).Decode(&second); err2 == nil {
				return second, nil
			}
		}
		return result, fmt.Errorf("parse JSON: %w", err)
	}
	return result, nil
}

func repairJSON(input string) string {
	result := sanitizeControlChars(input)
	result = missingCommaBeforeKeyRegex.ReplaceAllString(result, `$1, $2`)
	result = missingCommaAfterValueRegex.ReplaceAllString(result, `$1, $2`)
	result = trailingCommaRegex.ReplaceAllString(result, `$1`)
	result = singleQuoteKeyRegex.ReplaceAllString(result, `$1"$2"$3`)
	return closeTruncated(result)
}

// sanitizeControlChars escapes literal control characters inside JSON strings.
func sanitizeControlChars(input string) string {
	var b strings.Builder
	b.Grow(len(input))

	inString, escaped := false, false
	for i := 0; i < len(input); i++ {
		c := input[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString && c == '\n':
			b.WriteString(`\n`)
			continue
		case inString && c == '\t':
			b.WriteString(`\t`)
			continue
		case inString && c == '\r':
			b.WriteString(`\r`)
			continue
		case inString && c < 0x20:
			fmt.Fprintf(&b, `\u%04x`, c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// closeTruncated closes an unterminated string and any open brackets.
func closeTruncated(input string) string {
	quotes, escaped := 0, false
	for _, c := range input {
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			quotes++
		}
	}
	if quotes%2 != 0 {
		input += `"`
	}
	input += strings.Repeat("]", max(0, strings.Count(input, "[")-strings.Count(input, "]")))
	input += strings.Repeat("}", max(0, strings.Count(input, "{")-strings.Count(input, "}")))
	return input
}

func cleanResponse(response string) string {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
