// Package parse extracts structured payloads from raw LLM responses.
//
// Providers differ in how faithfully they emit JSON: some return a clean
// payload, some wrap it in prose or markdown code fences, some truncate
// mid-object. Extraction is best-effort and never fatal: a response that
// defeats every strategy becomes the caller's fallback object, which
// downstream code treats as "zero findings this round".
package parse

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

// RawOutputLimit caps how much of an unparseable response is preserved in
// the fallback object's rawOutput field.
const RawOutputLimit = 2000

var (
	fenceRe      = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\\n?(.*?)```")
	whitespaceRe = regexp.MustCompile(`\s+`)
	objectRe     = regexp.MustCompile(`\{[^{}]*\}`)
)

// Extract pulls a JSON object out of raw text. Strategies are tried in
// order, each only if the previous failed:
//
//  1. direct parse of the trimmed text
//  2. content of the last fenced code block
//  3. each remaining fenced block, last to first
//  4. bracket-matched slice of the original untrimmed text, raw first,
//     then with all whitespace collapsed
//  5. a single regex-based object match as last resort
//
// A top-level JSON array is wrapped as {"items": [...]}. The result is
// passed through Normalize before being returned. The boolean reports
// whether any strategy succeeded.
func Extract(raw string) (map[string]interface{}, bool) {
	// Strategy 1: direct parse
	if obj, ok := tryParse(strings.TrimSpace(raw)); ok {
		return Normalize(obj), true
	}

	// Strategies 2 and 3: fenced code blocks, last to first
	blocks := fenceRe.FindAllStringSubmatch(raw, -1)
	for i := len(blocks) - 1; i >= 0; i-- {
		if obj, ok := tryParse(strings.TrimSpace(blocks[i][1])); ok {
			return Normalize(obj), true
		}
	}

	// Strategy 4: bracket-matched slice of the original untrimmed text
	if slice, ok := bracketSlice(raw); ok {
		if obj, ok := tryParse(slice); ok {
			return Normalize(obj), true
		}
		if obj, ok := tryParse(whitespaceRe.ReplaceAllString(slice, "")); ok {
			return Normalize(obj), true
		}
	}

	// Strategy 5: single heuristic object match
	if match := objectRe.FindString(raw); match != "" {
		if obj, ok := tryParse(match); ok {
			return Normalize(obj), true
		}
	}

	return nil, false
}

// ExtractOrDefault is Extract with the fallback contract of the engine:
// when every strategy fails the supplied default object is returned,
// augmented with a parse-failure marker and the (truncated) original text.
// It never returns nil and never panics, whatever the input.
func ExtractOrDefault(raw string, fallback map[string]interface{}) map[string]interface{} {
	if obj, ok := Extract(raw); ok {
		return obj
	}

	out := make(map[string]interface{}, len(fallback)+2)
	for k, v := range fallback {
		out[k] = v
	}
	out["reasoning"] = "parse failed"
	out["rawOutput"] = Truncate(raw, RawOutputLimit)
	return out
}

// Truncate limits s to at most max bytes without splitting a multi-byte
// rune; the cut backs up to the nearest rune boundary.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// tryParse attempts to parse s as a JSON object or array. Arrays are
// wrapped as {"items": [...]} so callers always see an object. Scalars are
// rejected, "42" or "true" is not a structured payload.
func tryParse(s string) (map[string]interface{}, bool) {
	if s == "" {
		return nil, false
	}

	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}

	switch val := v.(type) {
	case map[string]interface{}:
		return val, true
	case []interface{}:
		return map[string]interface{}{"items": val}, true
	default:
		return nil, false
	}
}

// bracketSlice returns the substring of raw between the first opening
// bracket and the last matching closing bracket of the same kind.
func bracketSlice(raw string) (string, bool) {
	objStart := strings.IndexByte(raw, '{')
	arrStart := strings.IndexByte(raw, '[')

	start := objStart
	closing := byte('}')
	if start == -1 || (arrStart != -1 && arrStart < start) {
		start = arrStart
		closing = ']'
	}
	if start == -1 {
		return "", false
	}

	end := strings.LastIndexByte(raw, closing)
	if end <= start {
		return "", false
	}

	return raw[start : end+1], true
}
