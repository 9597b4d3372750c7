// ABOUTME: RFC-7396-style diff merge, constrained to exactly one level of recursion
package state

// Merge applies diff onto dst following three rules: a nil leaf
// deletes the key; an object value at a key whose existing value is
// also an object triggers one further level of this same merge;
// anything else replaces. Arrays are leaves and are always replaced
// wholesale, never merged element-wise. dst is not mutated; the
// result is a new map.
func Merge(dst, diff map[string]interface{}) map[string]interface{} {
	return mergeAtDepth(dst, diff, 1)
}

func mergeAtDepth(dst, diff map[string]interface{}, levelsRemaining int) map[string]interface{} {
	out := cloneMap(dst)
	if out == nil {
		out = map[string]interface{}{}
	}

	for k, v := range diff {
		if v == nil {
			delete(out, k)
			continue
		}

		if levelsRemaining > 0 {
			if diffObj, ok := v.(map[string]interface{}); ok {
				if existingObj, ok := out[k].(map[string]interface{}); ok {
					out[k] = mergeAtDepth(existingObj, diffObj, levelsRemaining-1)
					continue
				}
			}
		}

		out[k] = v
	}

	return out
}
