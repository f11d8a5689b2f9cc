// Package seeding implements the Template Seeding Service: given a doctor's
// profile it produces the initial canvas components for a new workspace. The
// seed combines multi-method database structure analysis with
// specialty-specific sections, so a cardiologist opens a workspace that
// already carries cardiac vitals and risk calculators while a dentist gets a
// dental chart.
package seeding

import (
	"strings"
	"sync"
)

// DoctorProfile is one entry in the doctor directory.
type DoctorProfile struct {
	ID            string   `json:"doctor_id"`
	Name          string   `json:"name"`
	Specialty     string   `json:"specialty"`
	Qualification string   `json:"qualification"`
	Experience    int      `json:"years_of_experience"`
	ClinicName    string   `json:"clinic_name"`
	Diagnoses     []string `json:"common_diagnoses"`
	Medications   []string `json:"common_meds"`
}

// Directory is a thread-safe doctor profile registry. It ships pre-loaded
// with the demo roster and accepts registrations at runtime.
type Directory struct {
	mu       sync.RWMutex
	profiles map[string]*DoctorProfile
	order    []string
}

// NewDirectory creates a directory seeded with the built-in roster.
func NewDirectory() *Directory {
	d := &Directory{profiles: make(map[string]*DoctorProfile)}
	for i := range builtinRoster {
		p := builtinRoster[i]
		d.profiles[p.ID] = &p
		d.order = append(d.order, p.ID)
	}
	return d
}

// Register adds or replaces a profile.
func (d *Directory) Register(p DoctorProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.profiles[p.ID]; !ok {
		d.order = append(d.order, p.ID)
	}
	d.profiles[p.ID] = &p
}

// Get returns the profile for id. Unknown ids fall back to the first
// registered profile so a demo workspace never fails to open.
func (d *Directory) Get(id string) DoctorProfile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if p, ok := d.profiles[id]; ok {
		return *p
	}
	return *d.profiles[d.order[0]]
}

// FindBySpecialty returns the first profile whose specialty contains the
// given term, case-insensitively, falling back to the first profile.
func (d *Directory) FindBySpecialty(term string) DoctorProfile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	needle := strings.ToLower(term)
	for _, id := range d.order {
		p := d.profiles[id]
		if strings.Contains(strings.ToLower(p.Specialty), needle) {
			return *p
		}
	}
	return *d.profiles[d.order[0]]
}

// List returns every profile in registration order.
func (d *Directory) List() []DoctorProfile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]DoctorProfile, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, *d.profiles[id])
	}
	return out
}

var builtinRoster = []DoctorProfile{
	{
		ID:            "DOC001",
		Name:          "Dr. Rajesh Kumar",
		Specialty:     "Cardiologist",
		Qualification: "MBBS, MD (Cardiology), DM (Cardiology)",
		Experience:    15,
		ClinicName:    "HeartCare Cardiac Center",
		Diagnoses:     []string{"Hypertension", "Coronary Artery Disease", "Heart Failure"},
		Medications:   []string{"Aspirin 75mg", "Metoprolol 50mg", "Atorvastatin 20mg"},
	},
	{
		ID:            "DOC002",
		Name:          "Dr. Priya Sharma",
		Specialty:     "General Practitioner",
		Qualification: "MBBS",
		Experience:    8,
		ClinicName:    "City General Clinic",
		Diagnoses:     []string{"Upper Respiratory Infection", "Fever", "Hypertension"},
		Medications:   []string{"Paracetamol 500mg", "Amoxicillin 500mg"},
	},
	{
		ID:            "DOC003",
		Name:          "Dr. Amit Desai",
		Specialty:     "Dentist",
		Qualification: "BDS, MDS (Conservative Dentistry & Endodontics)",
		Experience:    12,
		ClinicName:    "SmileCare Dental Clinic",
		Diagnoses:     []string{"Dental Caries", "Pulpitis", "Gingivitis"},
		Medications:   []string{"Amoxicillin 500mg", "Ibuprofen 400mg"},
	},
	{
		ID:            "DOC004",
		Name:          "Dr. Sneha Reddy",
		Specialty:     "General Practitioner",
		Qualification: "MBBS",
		Experience:    0,
		ClinicName:    "Community Health Center",
	},
	{
		ID:            "DOC005",
		Name:          "Dr. Anita Verma",
		Specialty:     "Pediatrician",
		Qualification: "MBBS, MD (Pediatrics), DCH",
		Experience:    10,
		ClinicName:    "Little Angels Child Care",
		Diagnoses:     []string{"URI", "Fever", "Vaccination"},
		Medications:   []string{"Paracetamol Syrup", "Amoxicillin Suspension"},
	},
	{
		ID:            "DOC006",
		Name:          "Dr. Vikram Singh",
		Specialty:     "Internal Medicine",
		Qualification: "MBBS, MD (Internal Medicine)",
		Experience:    18,
		ClinicName:    "Metro City Hospital",
		Diagnoses:     []string{"Diabetes Mellitus Type 2", "Hypertension", "Hypothyroidism"},
		Medications:   []string{"Metformin 500mg", "Atorvastatin 20mg"},
	},
	{
		ID:            "DOC007",
		Name:          "Dr. Kavita Menon",
		Specialty:     "Dermatologist",
		Qualification: "MBBS, MD (Dermatology)",
		Experience:    9,
		ClinicName:    "Glow Dermatology Clinic",
		Diagnoses:     []string{"Acne Vulgaris", "Atopic Dermatitis", "Psoriasis"},
		Medications:   []string{"Tretinoin Cream", "Clindamycin Gel"},
	},
	{
		ID:            "DOC008",
		Name:          "Dr. Rahul Joshi",
		Specialty:     "Orthopedic Surgeon",
		Qualification: "MBBS, MS (Orthopedics)",
		Experience:    14,
		ClinicName:    "BoneHealth Orthopedic Center",
		Diagnoses:     []string{"Osteoarthritis", "Fracture", "Low Back Pain"},
		Medications:   []string{"Diclofenac 50mg", "Calcium + Vitamin D3"},
	},
}
