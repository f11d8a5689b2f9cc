package canvas

import (
	"reflect"
	"testing"
)

func formData(fields ...map[string]interface{}) map[string]interface{} {
	fs := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		fs = append(fs, f)
	}
	return map[string]interface{}{"fields": fs}
}

func fieldAt(t *testing.T, data map[string]interface{}, idx int) map[string]interface{} {
	t.Helper()
	fields, ok := data["fields"].([]interface{})
	if !ok || idx >= len(fields) {
		t.Fatalf("no field at index %d in %v", idx, data)
	}
	f, ok := fields[idx].(map[string]interface{})
	if !ok {
		t.Fatalf("field %d is not a map", idx)
	}
	return f
}

func TestMergeFormFieldsByID(t *testing.T) {
	existing := formData(
		map[string]interface{}{"id": "bp", "label": "Blood Pressure", "value": ""},
		map[string]interface{}{"id": "hr", "label": "Heart Rate", "value": ""},
	)
	patch := formData(
		map[string]interface{}{"id": "bp", "value": "120/80"},
	)

	merged := MergePayload(TypeForm, existing, patch)

	bp := fieldAt(t, merged, 0)
	if bp["value"] != "120/80" {
		t.Errorf("expected bp value 120/80, got %v", bp["value"])
	}
	if bp["label"] != "Blood Pressure" {
		t.Errorf("field label was lost in merge: %v", bp["label"])
	}
	hr := fieldAt(t, merged, 1)
	if hr["value"] != "" {
		t.Errorf("untouched field was modified: %v", hr)
	}
}

func TestMergeFormUnmatchedFieldNotAppended(t *testing.T) {
	existing := formData(map[string]interface{}{"id": "bp", "value": ""})
	patch := formData(map[string]interface{}{"id": "newfield", "value": "x"})

	merged := MergePayload(TypeForm, existing, patch)
	fields := merged["fields"].([]interface{})
	if len(fields) != 1 {
		t.Fatalf("unmatched incoming field was appended: %v", fields)
	}
}

func TestMergeFormIdempotent(t *testing.T) {
	existing := formData(
		map[string]interface{}{"id": "bp", "label": "BP", "value": ""},
	)
	patch := formData(map[string]interface{}{"id": "bp", "value": "120/80"})

	once := MergePayload(TypeForm, existing, patch)
	twice := MergePayload(TypeForm, once, patch)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merge is not idempotent for identical patches:\nonce:  %v\ntwice: %v", once, twice)
	}
}

func TestMergeFormWithoutFieldsFallsBackToShallow(t *testing.T) {
	existing := map[string]interface{}{"note": "a", "keep": true}
	patch := map[string]interface{}{"note": "b"}

	merged := MergePayload(TypeForm, existing, patch)
	if merged["note"] != "b" || merged["keep"] != true {
		t.Errorf("unexpected shallow merge result: %v", merged)
	}
}

func TestMergeChecklistItemsByID(t *testing.T) {
	existing := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"id": "ascvd", "label": "ASCVD Risk", "checked": false},
			map[string]interface{}{"id": "vasc", "label": "CHA2DS2-VASc", "checked": false},
		},
	}
	patch := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"id": "ascvd", "checked": true},
		},
	}

	merged := MergePayload(TypeChecklist, existing, patch)
	items := merged["items"].([]interface{})
	first := items[0].(map[string]interface{})
	if first["checked"] != true || first["label"] != "ASCVD Risk" {
		t.Errorf("unexpected merged item: %v", first)
	}
	second := items[1].(map[string]interface{})
	if second["checked"] != false {
		t.Errorf("untouched item was modified: %v", second)
	}
}

func TestMergeGenericShallow(t *testing.T) {
	existing := map[string]interface{}{"bp": "", "pulse": "72", "temp": "98.6"}
	patch := map[string]interface{}{"bp": "120/80"}

	merged := MergePayload(TypeVitals, existing, patch)
	want := map[string]interface{}{"bp": "120/80", "pulse": "72", "temp": "98.6"}
	if !reflect.DeepEqual(merged, want) {
		t.Errorf("got %v, want %v", merged, want)
	}
}

func TestMergeEmptyPatchPreservesExisting(t *testing.T) {
	existing := map[string]interface{}{"bp": "120/80"}
	merged := MergePayload(TypeVitals, existing, nil)
	if !reflect.DeepEqual(merged, existing) {
		t.Errorf("got %v, want %v", merged, existing)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	existing := formData(map[string]interface{}{"id": "bp", "value": ""})
	patch := formData(map[string]interface{}{"id": "bp", "value": "120/80"})

	_ = MergePayload(TypeForm, existing, patch)

	if fieldAt(t, existing, 0)["value"] != "" {
		t.Error("merge mutated the existing payload")
	}
	if fieldAt(t, patch, 0)["value"] != "120/80" {
		t.Error("merge mutated the patch")
	}
}

func TestMergeResultSharesNoStructure(t *testing.T) {
	existing := map[string]interface{}{
		"nested": map[string]interface{}{"a": "1"},
	}
	merged := MergePayload(TypeVitals, existing, map[string]interface{}{"b": "2"})

	merged["nested"].(map[string]interface{})["a"] = "tampered"
	if existing["nested"].(map[string]interface{})["a"] != "1" {
		t.Error("merge result aliases the existing payload")
	}
}
