package seeding

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cliniq/emr/internal/domain/canvas"
)

// confidenceFloor is the minimum overall analysis confidence required before
// database-driven components enter the seed. Below it the seed is
// specialty-only.
const confidenceFloor = 0.5

// Seeder builds the initial canvas for a doctor's new workspace.
type Seeder struct {
	directory *Directory
	analyzer  *Analyzer
	logger    zerolog.Logger
}

// NewSeeder creates a seeder over the given directory and analyzer.
func NewSeeder(directory *Directory, analyzer *Analyzer, logger zerolog.Logger) *Seeder {
	return &Seeder{directory: directory, analyzer: analyzer, logger: logger}
}

// Directory exposes the doctor roster backing this seeder.
func (s *Seeder) Directory() *Directory {
	return s.directory
}

// Seed returns the ordered component drafts for the given doctor's initial
// canvas. Drafts carry no ids; the workspace mints them at insertion. Chief
// complaints always lead, pre-filled with the doctor's common diagnoses; the
// rest depends on analysis confidence and specialty.
func (s *Seeder) Seed(ctx context.Context, doctorID string) ([]*canvas.Component, error) {
	doctor := s.directory.Get(doctorID)
	specialty := doctor.Specialty
	if specialty == "" {
		specialty = "General Practitioner"
	}

	analysis := s.analyzer.Analyze(ctx)
	s.logger.Debug().
		Str("doctor_id", doctor.ID).
		Str("specialty", specialty).
		Float64("confidence", analysis.OverallConfidence).
		Msg("seeding workspace")

	var drafts []*canvas.Component

	drafts = append(drafts, &canvas.Component{
		Type:  canvas.TypeChiefComplaints,
		Title: "Chief Complaints",
		Data:  canvas.TagsPayload(doctor.Diagnoses...),
	})

	if analysis.OverallConfidence > confidenceFloor {
		for _, req := range analysis.Recommended {
			switch req.Type {
			case canvas.TypeVitals:
				drafts = append(drafts, vitalsForSpecialty(specialty))
			case canvas.TypePrescription:
				drafts = append(drafts, prescriptionFor(doctor))
			}
		}
	}

	drafts = append(drafts, specialtySections(specialty)...)

	if !hasType(drafts, canvas.TypePrescription) {
		drafts = append(drafts, prescriptionFor(doctor))
	}

	for _, d := range drafts {
		if d.Data == nil {
			d.Data = map[string]interface{}{}
		}
	}
	return drafts, nil
}

// vitalsForSpecialty picks the vitals variant for the doctor's field.
func vitalsForSpecialty(specialty string) *canvas.Component {
	switch {
	case strings.Contains(specialty, "Cardio"):
		return &canvas.Component{
			Type:  canvas.TypeVitals,
			Title: "Cardiac Vitals",
			Data:  map[string]interface{}{"bp": "", "pulse": "", "spo2": "", "jvp": ""},
		}
	case strings.Contains(specialty, "Pediatric"):
		return &canvas.Component{
			Type:  canvas.TypeVitals,
			Title: "Pediatric Vitals",
			Data:  map[string]interface{}{"weight": "", "height": "", "head": "", "temp": ""},
		}
	default:
		return &canvas.Component{
			Type:  canvas.TypeVitals,
			Title: "Vital Signs",
			Data:  map[string]interface{}{"bp": "", "pulse": "", "temp": ""},
		}
	}
}

// prescriptionFor pre-fills the medication list from the doctor's usual
// prescriptions.
func prescriptionFor(doctor DoctorProfile) *canvas.Component {
	meds := make([]canvas.Medication, 0, len(doctor.Medications))
	for _, name := range doctor.Medications {
		meds = append(meds, canvas.Medication{
			ID:        uuid.New().String(),
			Name:      name,
			Frequency: "1-0-1",
			Duration:  "5 days",
		})
	}
	return &canvas.Component{
		Type:  canvas.TypePrescription,
		Title: "Medications",
		Data:  canvas.PrescriptionPayload(meds...),
	}
}

// specialtySections returns the extra examination sections for the doctor's
// field. They are added regardless of analysis confidence.
func specialtySections(specialty string) []*canvas.Component {
	switch {
	case strings.Contains(specialty, "Cardio"):
		return []*canvas.Component{
			{
				Type:  canvas.TypeForm,
				Title: "Cardiac Examination",
				Data: canvas.FormPayload(
					canvas.FormField{ID: "h1", Label: "Heart Sounds", Type: "select", Options: []string{"Normal", "Murmur"}, Width: "half"},
					canvas.FormField{ID: "edema", Label: "Pedal Edema", Type: "checkbox", Width: "half"},
				),
			},
			{
				Type:  canvas.TypeChecklist,
				Title: "Risk Calculators",
				Data: canvas.ChecklistPayload(
					canvas.ChecklistItem{ID: "ascvd", Label: "ASCVD Risk"},
					canvas.ChecklistItem{ID: "vasc", Label: "CHA2DS2-VASc"},
				),
			},
		}
	case strings.Contains(specialty, "Dentist"):
		return []*canvas.Component{
			{Type: canvas.TypeDentalChart, Title: "Dental Charting", Data: map[string]interface{}{}},
			{
				Type:  canvas.TypeForm,
				Title: "Oral Hygiene",
				Data: canvas.FormPayload(
					canvas.FormField{ID: "oh1", Label: "Gingival Status", Type: "select", Options: []string{"Healthy", "Gingivitis"}, Width: "full"},
				),
			},
		}
	case strings.Contains(specialty, "Pediatric"):
		return []*canvas.Component{
			{
				Type:  canvas.TypeForm,
				Title: "Growth Chart",
				Data: canvas.FormPayload(
					canvas.FormField{ID: "pct", Label: "Weight Percentile", Type: "number", Width: "half"},
				),
			},
		}
	case strings.Contains(specialty, "Derm"):
		return []*canvas.Component{
			{Type: canvas.TypeBodyMap, Title: "Skin Lesion Map", Data: map[string]interface{}{}},
			{
				Type:  canvas.TypeForm,
				Title: "Dermatological Exam",
				Data: canvas.FormPayload(
					canvas.FormField{ID: "d1", Label: "Primary Lesion", Type: "text", Width: "full"},
				),
			},
		}
	default:
		return nil
	}
}

func hasType(comps []*canvas.Component, t canvas.ComponentType) bool {
	for _, c := range comps {
		if c.Type == t {
			return true
		}
	}
	return false
}
