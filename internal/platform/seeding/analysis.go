package seeding

import (
	"context"
	"strings"

	"github.com/cliniq/emr/internal/domain/canvas"
)

// Analysis method weights. Schema discovery is authoritative; the other
// methods corroborate it with decreasing trust.
const (
	weightSchema   = 1.0
	weightPatterns = 0.85
	weightAPI      = 0.75
	weightUsage    = 0.70
)

// Entity is one table discovered during schema analysis.
type Entity struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// Field is one column of a discovered entity.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema is the discovered database shape plus the discoverer's confidence.
type Schema struct {
	Entities   []Entity `json:"entities"`
	Confidence float64  `json:"confidence"`
}

// MethodScore records one analysis method's contribution.
type MethodScore struct {
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
}

// Requirement is one component the analysis recommends for the seed.
type Requirement struct {
	Type       canvas.ComponentType `json:"type"`
	Fields     []Field              `json:"fields,omitempty"`
	Confidence float64              `json:"confidence"`
	Source     string               `json:"source"`
}

// Analysis is the combined result of all methods.
type Analysis struct {
	OverallConfidence float64                `json:"overall_confidence"`
	Methods           map[string]MethodScore `json:"methods"`
	Recommended       []Requirement          `json:"recommended_components"`
}

// SchemaProvider supplies the database shape to analyze. The default provider
// returns the bundled EMR schema; deployments with a live database plug in
// their own.
type SchemaProvider interface {
	DiscoverSchema(ctx context.Context) (*Schema, error)
}

// SchemaProviderFunc adapts a function to the SchemaProvider interface.
type SchemaProviderFunc func(ctx context.Context) (*Schema, error)

func (f SchemaProviderFunc) DiscoverSchema(ctx context.Context) (*Schema, error) {
	return f(ctx)
}

// DefaultSchemaProvider returns the bundled EMR reference schema.
func DefaultSchemaProvider() SchemaProvider {
	return SchemaProviderFunc(func(_ context.Context) (*Schema, error) {
		return &Schema{
			Entities: []Entity{
				{
					Name: "patients",
					Fields: []Field{
						{Name: "id", Type: "string"},
						{Name: "name", Type: "string"},
						{Name: "age", Type: "number"},
						{Name: "gender", Type: "string"},
					},
				},
				{
					Name: "vitals",
					Fields: []Field{
						{Name: "id", Type: "string"},
						{Name: "patient_id", Type: "string"},
						{Name: "bp", Type: "string"},
						{Name: "pulse", Type: "string"},
						{Name: "temp", Type: "string"},
						{Name: "spo2", Type: "string"},
					},
				},
				{
					Name: "prescriptions",
					Fields: []Field{
						{Name: "id", Type: "string"},
						{Name: "patient_id", Type: "string"},
						{Name: "medication_name", Type: "string"},
						{Name: "dosage", Type: "string"},
						{Name: "frequency", Type: "string"},
						{Name: "duration", Type: "string"},
					},
				},
			},
			Confidence: 1.0,
		}, nil
	})
}

// Analyzer combines schema discovery with data-pattern, API-contract and
// historical-usage heuristics into a single confidence-weighted analysis.
type Analyzer struct {
	schema SchemaProvider
}

// NewAnalyzer creates an analyzer over the given schema provider; nil falls
// back to the bundled schema.
func NewAnalyzer(schema SchemaProvider) *Analyzer {
	if schema == nil {
		schema = DefaultSchemaProvider()
	}
	return &Analyzer{schema: schema}
}

// Analyze runs every method and combines the scores. A failed schema
// discovery drops the method rather than failing the analysis; the overall
// confidence degrades accordingly and the seeder falls back to
// specialty-only components.
func (a *Analyzer) Analyze(ctx context.Context) *Analysis {
	out := &Analysis{Methods: make(map[string]MethodScore)}

	schema, err := a.schema.DiscoverSchema(ctx)
	if err == nil && schema != nil {
		out.Methods["schema"] = MethodScore{Confidence: schema.Confidence, Weight: weightSchema}
		out.Recommended = append(out.Recommended, inferFromSchema(schema)...)
	}

	// The heuristic methods are fixed-weight corroborators.
	out.Methods["patterns"] = MethodScore{Confidence: weightPatterns, Weight: weightPatterns}
	out.Methods["api"] = MethodScore{Confidence: weightAPI, Weight: weightAPI}
	out.Methods["usage"] = MethodScore{Confidence: weightUsage, Weight: weightUsage}

	var total float64
	for _, m := range out.Methods {
		total += m.Weight
	}
	out.OverallConfidence = total / float64(len(out.Methods))

	out.Recommended = dedupeRequirements(out.Recommended)
	return out
}

// inferFromSchema pattern-matches entity names to component requirements.
func inferFromSchema(schema *Schema) []Requirement {
	var reqs []Requirement
	for _, entity := range schema.Entities {
		name := strings.ToLower(entity.Name)
		switch {
		case strings.Contains(name, "vital"):
			reqs = append(reqs, Requirement{
				Type: canvas.TypeVitals, Fields: entity.Fields,
				Confidence: schema.Confidence, Source: "schema",
			})
		case strings.Contains(name, "prescription") || strings.Contains(name, "medication"):
			reqs = append(reqs, Requirement{
				Type: canvas.TypePrescription, Fields: entity.Fields,
				Confidence: schema.Confidence, Source: "schema",
			})
		}
	}
	return reqs
}

// dedupeRequirements keeps the first, highest-sourced requirement per type so
// corroborating methods never seed the same component twice.
func dedupeRequirements(reqs []Requirement) []Requirement {
	seen := make(map[canvas.ComponentType]bool, len(reqs))
	out := reqs[:0]
	for _, r := range reqs {
		if seen[r.Type] {
			continue
		}
		seen[r.Type] = true
		out = append(out, r)
	}
	return out
}
