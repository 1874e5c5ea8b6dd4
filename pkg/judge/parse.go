package judge

import (
	"encoding/json"
	"fmt"
)

// marshalRequest encodes a Request as the single JSON object the wire
// protocol sends on the judge's stdin.
func marshalRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

// parseVerdict decodes raw judge output into a Verdict, applying
// greedy-fallback recovery: if the whole string isn't valid JSON, extract
// the first balanced "{...}" substring and try again, then
// the first balanced "[...]" substring (wrapped as a single-element verdict
// is not meaningful here, so only the object form is attempted in practice —
// the array fallback exists for judges that emit a one-element array).
func parseVerdict(raw []byte) (Verdict, error) {
	var v Verdict
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, nil
	}

	if obj := firstBalanced(raw, '{', '}'); obj != nil {
		if err := json.Unmarshal(obj, &v); err == nil {
			v.UsedFallback = true
			return v, nil
		}
	}

	if arr := firstBalanced(raw, '[', ']'); arr != nil {
		var items []Verdict
		if err := json.Unmarshal(arr, &items); err == nil && len(items) > 0 {
			items[0].UsedFallback = true
			return items[0], nil
		}
	}

	return Verdict{}, fmt.Errorf("no parseable verdict found in judge output")
}

// firstBalanced returns the first balanced, nesting-aware substring of raw
// delimited by open/close, honoring string literals so braces inside JSON
// string values don't unbalance the scan. Returns nil if none is found.
func firstBalanced(raw []byte, open, close byte) []byte {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
		case c == open:
			if depth == 0 {
				start = i
			}
			depth++
		case c == close:
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return raw[start : i+1]
				}
			}
		}
	}
	return nil
}
