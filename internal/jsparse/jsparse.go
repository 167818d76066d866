// Package jsparse extracts data the remote site embeds in inline
// JavaScript: series.push({...}) calls on league pages and the
// seasons = [...] array on series pages. Objects are normalized to
// JSON when possible, with a regex pair-scan as a fallback for
// non-standard notation.
package jsparse

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Value is one parsed JavaScript scalar: int64, string, bool or nil.
type Value any

// Object is a parsed JavaScript object literal.
type Object map[string]Value

// Int returns the value as an int if it is numeric.
func (o Object) Int(key string) (int, bool) {
	switch v := o[key].(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Str returns the value as a string if present.
func (o Object) Str(key string) (string, bool) {
	if v, ok := o[key].(string); ok {
		return v, true
	}
	return "", false
}

var (
	seriesPushRe = regexp.MustCompile(`(?s)series\.push\(\{([^}]+)\}\)`)
	objectRe     = regexp.MustCompile(`\{([^{}]*(?:\{[^{}]*\}[^{}]*)*)\}`)
	keyRe        = regexp.MustCompile(`(\w+)\s*:`)
	pairRe       = regexp.MustCompile(`(\w+)\s*:\s*(?:(\d+)|"([^"]*)"|'([^']*)'|([a-zA-Z_]\w*))`)
)

// ExtractSeries parses every series.push({...}) call in the page.
// Objects missing an id or name are dropped.
func ExtractSeries(raw string) []Object {
	var out []Object
	for _, m := range seriesPushRe.FindAllStringSubmatch(raw, -1) {
		obj := ParseObject(m[1])
		if _, hasID := obj.Int("id"); !hasID {
			continue
		}
		if _, hasName := obj.Str("name"); !hasName {
			continue
		}
		out = append(out, obj)
	}
	return out
}

// ExtractSeasons parses the seasons = [...] assignment in the page.
func ExtractSeasons(raw string) []Object {
	return ExtractArray(raw, "seasons")
}

// ExtractObject parses a varName = {...}; assignment into a single
// object. Absent variables yield nil.
func ExtractObject(raw, varName string) Object {
	objRe := regexp.MustCompile(`(?s)` + regexp.QuoteMeta(varName) + `\s*=\s*\{(.*?)\};`)
	m := objRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	obj := ParseObject(m[1])
	if len(obj) == 0 {
		return nil
	}
	return obj
}

// ExtractArray parses a varName = [{...}, ...]; assignment into a list
// of objects. Absent variables yield an empty list.
func ExtractArray(raw, varName string) []Object {
	arrayRe := regexp.MustCompile(`(?s)` + regexp.QuoteMeta(varName) + `\s*=\s*\[(.*?)\];`)
	m := arrayRe.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	content := strings.TrimSpace(m[1])
	if content == "" {
		return nil
	}

	var out []Object
	for _, om := range objectRe.FindAllStringSubmatch(content, -1) {
		obj := ParseObject(om[1])
		if len(obj) > 0 {
			out = append(out, obj)
		}
	}
	return out
}

// ParseObject parses the content between an object literal's braces.
// JSON normalization is tried first; a regex pair-scan handles what
// JSON cannot.
func ParseObject(content string) Object {
	if obj, ok := parseAsJSON(content); ok {
		return obj
	}

	obj := Object{}
	for _, m := range pairRe.FindAllStringSubmatch(content, -1) {
		key := m[1]
		switch {
		case m[2] != "":
			n, err := strconv.ParseInt(m[2], 10, 64)
			if err == nil {
				obj[key] = n
			}
		case m[3] != "" || strings.Contains(m[0], `""`):
			obj[key] = m[3]
		case m[4] != "" || strings.Contains(m[0], "''"):
			obj[key] = m[4]
		case m[5] != "":
			switch m[5] {
			case "true":
				obj[key] = true
			case "false":
				obj[key] = false
			case "null":
				obj[key] = nil
			default:
				obj[key] = m[5]
			}
		}
	}
	return obj
}

func parseAsJSON(content string) (Object, bool) {
	normalized := keyRe.ReplaceAllString(content, `"$1":`)
	normalized = strings.ReplaceAll(normalized, "'", `"`)
	normalized = strings.TrimSpace(normalized)
	if !strings.HasPrefix(normalized, "{") {
		normalized = "{" + normalized + "}"
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(normalized), &raw); err != nil {
		return nil, false
	}
	obj := make(Object, len(raw))
	for k, v := range raw {
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			obj[k] = int64(f)
			continue
		}
		obj[k] = v
	}
	return obj, true
}
