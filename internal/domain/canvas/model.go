// Package canvas implements the consultation canvas: an ordered collection
// of clinical UI components and the reconciliation engine that applies the
// assistant's structured tool calls (add/update/remove) to it. The canvas is
// the shared surface between the clinician's manual edits and the
// assistant's chat-driven edits; merge and highlight semantics keep the two
// from clobbering each other.
package canvas

import (
	"fmt"
)

// ComponentType identifies the kind of clinical UI block a component renders.
type ComponentType string

const (
	TypeVitals          ComponentType = "vitals"
	TypeDiagnosis       ComponentType = "diagnosis"
	TypePrescription    ComponentType = "prescription"
	TypeNotes           ComponentType = "notes"
	TypeLabOrder        ComponentType = "lab_order"
	TypeDentalChart     ComponentType = "dental_chart"
	TypeForm            ComponentType = "form"
	TypeChecklist       ComponentType = "checklist"
	TypeChiefComplaints ComponentType = "chief_complaints"

	TypeCardiacVitals   ComponentType = "cardiac_vitals"
	TypePediatricVitals ComponentType = "pediatric_vitals"
	TypeObstetricVitals ComponentType = "obstetric_vitals"
	TypeCardiacExam     ComponentType = "cardiac_examination"
	TypeRespiratoryExam ComponentType = "respiratory_examination"
	TypeAbdominalExam   ComponentType = "abdominal_examination"
	TypeNeuroExam       ComponentType = "neurological_examination"
	TypeMSKExam         ComponentType = "musculoskeletal_examination"
	TypeDermExam        ComponentType = "dermatological_examination"
	TypeEyeExam         ComponentType = "ophthalmic_examination"
	TypeENTExam         ComponentType = "ent_examination"
	TypeRiskCalculator  ComponentType = "risk_calculator"
	TypeBodyMap         ComponentType = "body_map"
)

var validComponentTypes = map[ComponentType]bool{
	TypeVitals: true, TypeDiagnosis: true, TypePrescription: true,
	TypeNotes: true, TypeLabOrder: true, TypeDentalChart: true,
	TypeForm: true, TypeChecklist: true, TypeChiefComplaints: true,
	TypeCardiacVitals: true, TypePediatricVitals: true, TypeObstetricVitals: true,
	TypeCardiacExam: true, TypeRespiratoryExam: true, TypeAbdominalExam: true,
	TypeNeuroExam: true, TypeMSKExam: true, TypeDermExam: true,
	TypeEyeExam: true, TypeENTExam: true, TypeRiskCalculator: true,
	TypeBodyMap: true,
}

var canonicalTitles = map[ComponentType]string{
	TypeVitals:          "Vital Signs",
	TypeDiagnosis:       "Diagnosis",
	TypePrescription:    "Medications",
	TypeNotes:           "Clinical Notes",
	TypeLabOrder:        "Lab Orders",
	TypeDentalChart:     "Dental Chart",
	TypeForm:            "Examination",
	TypeChecklist:       "Checklist",
	TypeChiefComplaints: "Chief Complaints",
	TypeCardiacVitals:   "Cardiac Vitals",
	TypePediatricVitals: "Pediatric Vitals",
	TypeObstetricVitals: "Obstetric Vitals",
	TypeCardiacExam:     "Cardiac Examination",
	TypeRespiratoryExam: "Respiratory Examination",
	TypeAbdominalExam:   "Abdominal Examination",
	TypeNeuroExam:       "Neurological Examination",
	TypeMSKExam:         "Musculoskeletal Examination",
	TypeDermExam:        "Dermatological Examination",
	TypeEyeExam:         "Ophthalmic Examination",
	TypeENTExam:         "ENT Examination",
	TypeRiskCalculator:  "Risk Calculators",
	TypeBodyMap:         "Body Map",
}

// ValidType reports whether t is a known component type.
func ValidType(t ComponentType) bool {
	return validComponentTypes[t]
}

// CanonicalTitle returns the display label used when a component is created
// without an explicit title.
func CanonicalTitle(t ComponentType) string {
	if title, ok := canonicalTitles[t]; ok {
		return title
	}
	return string(t)
}

// Component is one clinical UI block's state. The Data payload is
// type-dependent and semantically opaque to the collection; its shape is
// only interpreted by the merge resolver and the seeding service.
type Component struct {
	ID            string                 `json:"id"`
	Type          ComponentType          `json:"type"`
	Title         string                 `json:"title,omitempty"`
	Data          map[string]interface{} `json:"data"`
	IsEditable    bool                   `json:"isEditable"`
	IsHighlighted bool                   `json:"isHighlighted,omitempty"`
}

// Validate checks the invariants required before a component enters a
// collection.
func (c *Component) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("component id is required")
	}
	if c.Type == "" {
		return fmt.Errorf("component type is required")
	}
	if !ValidType(c.Type) {
		return fmt.Errorf("invalid component type: %s", c.Type)
	}
	return nil
}

// clone returns a deep copy so callers can never alias a collection's
// internal payload maps.
func (c *Component) clone() *Component {
	cp := *c
	cp.Data = deepCopyMap(c.Data)
	return &cp
}

// Summary is the projection of a component sent to the Clinical Assistant.
// It deliberately omits id, isEditable and isHighlighted to keep the prompt
// small; the assistant therefore addresses components by type only.
type Summary struct {
	Type  ComponentType          `json:"type"`
	Title string                 `json:"title,omitempty"`
	Data  map[string]interface{} `json:"data"`
}

// FormField is the documented payload shape for one entry in a form
// component's "fields" list.
type FormField struct {
	ID       string   `json:"id"`
	Label    string   `json:"label,omitempty"`
	Type     string   `json:"type,omitempty"`
	Options  []string `json:"options,omitempty"`
	Value    string   `json:"value,omitempty"`
	Width    string   `json:"width,omitempty"`
	Required bool     `json:"required,omitempty"`
}

func (f FormField) toMap() map[string]interface{} {
	m := map[string]interface{}{"id": f.ID}
	if f.Label != "" {
		m["label"] = f.Label
	}
	if f.Type != "" {
		m["type"] = f.Type
	}
	if len(f.Options) > 0 {
		opts := make([]interface{}, 0, len(f.Options))
		for _, o := range f.Options {
			opts = append(opts, o)
		}
		m["options"] = opts
	}
	m["value"] = f.Value
	if f.Width != "" {
		m["width"] = f.Width
	}
	if f.Required {
		m["required"] = true
	}
	return m
}

// ChecklistItem is the documented payload shape for one entry in a checklist
// component's "items" list.
type ChecklistItem struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

func (i ChecklistItem) toMap() map[string]interface{} {
	return map[string]interface{}{
		"id":      i.ID,
		"label":   i.Label,
		"checked": i.Checked,
	}
}

// Medication is the documented payload shape for one entry in a prescription
// component's "medications" list.
type Medication struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Quantity    string `json:"quantity,omitempty"`
	Frequency   string `json:"frequency,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Timing      string `json:"timing,omitempty"`
	Instruction string `json:"instruction,omitempty"`
}

func (m Medication) toMap() map[string]interface{} {
	out := map[string]interface{}{"id": m.ID, "name": m.Name}
	if m.Quantity != "" {
		out["quantity"] = m.Quantity
	}
	if m.Frequency != "" {
		out["frequency"] = m.Frequency
	}
	if m.Duration != "" {
		out["duration"] = m.Duration
	}
	if m.Timing != "" {
		out["timing"] = m.Timing
	}
	if m.Instruction != "" {
		out["instruction"] = m.Instruction
	}
	return out
}

// FormPayload builds a form component payload from typed fields.
func FormPayload(fields ...FormField) map[string]interface{} {
	fs := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		fs = append(fs, f.toMap())
	}
	return map[string]interface{}{"fields": fs}
}

// ChecklistPayload builds a checklist component payload from typed items.
func ChecklistPayload(items ...ChecklistItem) map[string]interface{} {
	is := make([]interface{}, 0, len(items))
	for _, i := range items {
		is = append(is, i.toMap())
	}
	return map[string]interface{}{"items": is}
}

// PrescriptionPayload builds a prescription component payload from typed
// medication rows.
func PrescriptionPayload(meds ...Medication) map[string]interface{} {
	ms := make([]interface{}, 0, len(meds))
	for _, m := range meds {
		ms = append(ms, m.toMap())
	}
	return map[string]interface{}{"medications": ms}
}

// TagsPayload builds a chief-complaints payload from free-text tags.
func TagsPayload(tags ...string) map[string]interface{} {
	ts := make([]interface{}, 0, len(tags))
	for _, t := range tags {
		ts = append(ts, t)
	}
	return map[string]interface{}{"tags": ts}
}
