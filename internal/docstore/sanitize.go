package docstore

// StripUnset removes nil values from a partial update, recursively through
// nested maps and slices. A partial update must never carry an unset field:
// merged into JSONB it would null out data the caller never meant to touch.
func StripUnset(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		if cleaned, ok := stripValue(v); ok {
			out[k] = cleaned
		}
	}
	return out
}

func stripValue(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return StripUnset(t), true
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			if cleaned, ok := stripValue(e); ok {
				out = append(out, cleaned)
			}
		}
		return out, true
	default:
		return v, true
	}
}
