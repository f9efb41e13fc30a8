// Package refresolve implements the reference-resolution template
// language (C2): the substring "<<path>>" anywhere inside a string is a
// reference into the run's Execution State (C1). Resolution is a pure
// function over the structured-value tree — no in-place mutation of
// action definitions, so tests stay trivial.
package refresolve

import (
	"encoding/json"
	"regexp"
	"strings"
)

// referencePattern matches "<<...>>" non-greedily so that two adjacent
// references on one line ("<<a>> and <<b>>") are captured as distinct
// matches rather than one spanning match. The original source's regex was
// greedy (`<<.*>>`); this module deliberately departs from that — see
// DESIGN.md's Open Question resolution — since the grammar in spec.md §6
// defines non-overlapping REF tokens.
var referencePattern = regexp.MustCompile(`<<.*?>>`)

// Lookup is the minimal interface refresolve needs out of the run's
// Execution State: dotted-path lookup.
type Lookup interface {
	Get(path string) (interface{}, bool)
}

// Resolve recursively resolves references inside value, using state for
// lookups. Objects are resolved entry-wise, arrays element-wise, strings
// per the rules below; every other JSON type is returned unchanged.
func Resolve(value interface{}, state Lookup) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = Resolve(inner, state)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, inner := range v {
			out[i] = Resolve(inner, state)
		}
		return out
	case string:
		return resolveString(v, state)
	default:
		return value
	}
}

// resolveString applies the singleton-preservation and mixed-context
// substitution rules to a single string value.
func resolveString(s string, state Lookup) interface{} {
	matches := referencePattern.FindAllString(s, -1)
	if matches == nil {
		return s
	}

	distinct := make(map[string]struct{}, len(matches))
	var totalLength int
	for _, m := range matches {
		if _, seen := distinct[m]; !seen {
			distinct[m] = struct{}{}
			totalLength += len(m)
		}
	}

	resolved := make(map[string]interface{}, len(distinct))
	for m := range distinct {
		path := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(m, "<<"), ">>"))
		value, ok := state.Get(path)
		if !ok {
			resolved[m] = ""
			continue
		}
		resolved[m] = value
	}

	// Singleton rule: exactly one distinct reference, spanning the whole
	// string with no surrounding text — return the resolved value
	// verbatim, preserving its JSON type.
	if len(distinct) == 1 && totalLength == len(s) {
		for _, v := range resolved {
			return v
		}
	}

	// Otherwise: splice each occurrence's JSON-serialized form into the
	// original string, producing a plain string result.
	out := s
	for m, v := range resolved {
		out = strings.ReplaceAll(out, m, jsonDisplay(v))
	}
	return out
}

// jsonDisplay renders a resolved value the way a template substitution
// expects: strings unquoted, everything else as compact JSON.
func jsonDisplay(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
