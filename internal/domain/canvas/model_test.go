package canvas

import (
	"testing"
)

func TestValidType(t *testing.T) {
	for ct := range validComponentTypes {
		if !ValidType(ct) {
			t.Errorf("expected %s to be valid", ct)
		}
	}
	for _, ct := range []ComponentType{"", "holographic_scan", "Vitals"} {
		if ValidType(ct) {
			t.Errorf("expected %q to be invalid", ct)
		}
	}
}

func TestCanonicalTitle(t *testing.T) {
	if got := CanonicalTitle(TypeVitals); got != "Vital Signs" {
		t.Errorf("expected Vital Signs, got %q", got)
	}
	if got := CanonicalTitle(TypeChiefComplaints); got != "Chief Complaints" {
		t.Errorf("expected Chief Complaints, got %q", got)
	}
	// Unknown types fall back to the raw type string.
	if got := CanonicalTitle("mystery"); got != "mystery" {
		t.Errorf("expected raw fallback, got %q", got)
	}
}

func TestComponentValidate(t *testing.T) {
	cases := []struct {
		name    string
		comp    Component
		wantErr bool
	}{
		{"valid", Component{ID: "c1", Type: TypeVitals}, false},
		{"missing id", Component{Type: TypeVitals}, true},
		{"missing type", Component{ID: "c1"}, true},
		{"unknown type", Component{ID: "c1", Type: "xray_vision"}, true},
	}
	for _, tc := range cases {
		err := tc.comp.Validate()
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestFormPayload(t *testing.T) {
	payload := FormPayload(
		FormField{ID: "bp", Label: "Blood Pressure", Type: "text", Width: "half"},
		FormField{ID: "smoker", Label: "Smoker", Type: "select", Options: []string{"Yes", "No"}, Required: true},
	)

	fields, ok := payload["fields"].([]interface{})
	if !ok || len(fields) != 2 {
		t.Fatalf("unexpected fields: %v", payload)
	}

	bp := fields[0].(map[string]interface{})
	if bp["id"] != "bp" || bp["label"] != "Blood Pressure" || bp["type"] != "text" {
		t.Errorf("unexpected field map: %v", bp)
	}
	// Value is always present so merges can fill it in later.
	if v, present := bp["value"]; !present || v != "" {
		t.Errorf("expected empty value key, got %v", bp)
	}
	if _, present := bp["options"]; present {
		t.Error("options must be omitted when empty")
	}

	smoker := fields[1].(map[string]interface{})
	opts, ok := smoker["options"].([]interface{})
	if !ok || len(opts) != 2 || opts[0] != "Yes" {
		t.Errorf("unexpected options: %v", smoker["options"])
	}
	if smoker["required"] != true {
		t.Error("required flag was dropped")
	}
}

func TestChecklistPayload(t *testing.T) {
	payload := ChecklistPayload(
		ChecklistItem{ID: "ascvd", Label: "ASCVD Risk", Checked: true},
		ChecklistItem{ID: "vasc", Label: "CHA2DS2-VASc"},
	)

	items := payload["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0].(map[string]interface{})
	if first["id"] != "ascvd" || first["checked"] != true {
		t.Errorf("unexpected item: %v", first)
	}
	second := items[1].(map[string]interface{})
	if second["checked"] != false {
		t.Errorf("unchecked item must carry checked=false, got %v", second)
	}
}

func TestPrescriptionPayload(t *testing.T) {
	payload := PrescriptionPayload(
		Medication{ID: "m1", Name: "Atorvastatin", Quantity: "20mg", Frequency: "OD", Duration: "30 days", Timing: "Night"},
		Medication{ID: "m2", Name: "Aspirin"},
	)

	meds := payload["medications"].([]interface{})
	if len(meds) != 2 {
		t.Fatalf("expected 2 medications, got %d", len(meds))
	}
	first := meds[0].(map[string]interface{})
	if first["name"] != "Atorvastatin" || first["frequency"] != "OD" {
		t.Errorf("unexpected medication: %v", first)
	}
	second := meds[1].(map[string]interface{})
	if _, present := second["quantity"]; present {
		t.Error("empty quantity must be omitted")
	}
}

func TestTagsPayload(t *testing.T) {
	payload := TagsPayload("Chest pain", "Dyspnea")
	tags := payload["tags"].([]interface{})
	if len(tags) != 2 || tags[0] != "Chest pain" {
		t.Errorf("unexpected tags: %v", tags)
	}
}
