package canvas

// MergePayload computes a new payload from an existing payload and an
// incoming partial patch, type-aware. It is pure: neither input is mutated
// and the result shares no mutable structure with either, since the existing
// record may be concurrently read by a renderer.
//
// Form components merge patch "fields" against existing "fields" by field
// id: a matched field has its attributes shallow-merged with incoming keys
// winning; incoming fields with no existing counterpart are dropped
// (appending new fields is an add-field concern, not an update). Checklists
// get the same item-by-id treatment for API symmetry. Every other type is a
// shallow top-level merge where patch keys overwrite and absent keys are
// preserved.
func MergePayload(t ComponentType, existing, patch map[string]interface{}) map[string]interface{} {
	result := deepCopyMap(existing)
	if len(patch) == 0 {
		return result
	}

	switch t {
	case TypeForm:
		if incoming, ok := patch["fields"].([]interface{}); ok {
			result["fields"] = mergeRecordsByID(result["fields"], incoming)
			return result
		}
	case TypeChecklist:
		if incoming, ok := patch["items"].([]interface{}); ok {
			result["items"] = mergeRecordsByID(result["items"], incoming)
			return result
		}
	}

	for k, v := range patch {
		result[k] = deepCopyValue(v)
	}
	return result
}

// mergeRecordsByID merges a list of incoming partial records into a copy of
// the existing records, matching on the "id" key. Existing order is kept;
// unmatched incoming records are discarded.
func mergeRecordsByID(existing interface{}, incoming []interface{}) []interface{} {
	current, _ := existing.([]interface{})
	merged := make([]interface{}, 0, len(current))
	for _, rec := range current {
		merged = append(merged, deepCopyValue(rec))
	}

	for _, in := range incoming {
		patch, ok := in.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := patch["id"].(string)
		if id == "" {
			continue
		}
		for i, rec := range merged {
			target, ok := rec.(map[string]interface{})
			if !ok {
				continue
			}
			if tid, _ := target["id"].(string); tid == id {
				for k, v := range patch {
					target[k] = deepCopyValue(v)
				}
				merged[i] = target
				break
			}
		}
	}
	return merged
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		// Scalars (and anything JSON-decoded that is not a map or slice)
		// are immutable for our purposes.
		return val
	}
}
