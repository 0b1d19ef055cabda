package catalog

import (
	"strings"
)

// OtherCategory is the catch-all top-level group; it accepts any subcategory.
const OtherCategory = "Other"

// Subcategory is a leaf of the taxonomy with its prompt description.
type Subcategory struct {
	Name        string
	Description string
}

// Category is a top-level group of the taxonomy.
type Category struct {
	Name          string
	Subcategories []Subcategory
}

// Taxonomy is the fixed two-level category system used for classification.
type Taxonomy struct {
	Categories []Category
}

// DefaultTaxonomy returns the medical AI category system.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{Categories: []Category{
		{Name: "Clinical Applications", Subcategories: []Subcategory{
			{"Diagnostics & Prognostics", "AI for disease detection, outcome prediction, and clinical decision support"},
			{"Treatment & Intervention", "Personalized medicine, surgical robotics, treatment optimization"},
			{"Monitoring & Supportive Care", "Mental health tools, wearables, remote monitoring, real-time alert systems"},
		}},
		{Name: "Healthcare Operations", Subcategories: []Subcategory{
			{"Administrative Automation", "Patient flow, documentation, scheduling, billing"},
			{"Data Infrastructure", "EMR integration, interoperability solutions, clinical data management"},
			{"Operational Excellence", "Resource allocation, workflow optimization"},
		}},
		{Name: "Research & Development", Subcategories: []Subcategory{
			{"Drug Discovery & Development", "Target identification, molecular design, clinical trial optimization"},
			{"Public Health & Epidemiology", "Disease surveillance, outbreak modeling, population health"},
		}},
		{Name: "Evaluation & Implementation", Subcategories: []Subcategory{
			{"Model Assessment", "Benchmarking, validation, evaluation frameworks specific to healthcare"},
			{"Explainability & Transparency", "Interpretable models, clinical reasoning, trust-building mechanisms"},
			{"Integration Challenges", "Implementation science, workflow integration, adoption strategies"},
		}},
		{Name: "Ethical & Societal Implications", Subcategories: []Subcategory{
			{"Equity & Fairness", "Algorithmic bias, health disparities, inclusive design"},
			{"Privacy & Security", "Patient data protection, cybersecurity, consent management"},
			{"Policy & Regulation", "Guidelines, compliance frameworks, liability considerations"},
			{"Environmental Impact", "Computational resource usage, sustainability concerns"},
		}},
		{Name: "Education & Workforce", Subcategories: []Subcategory{
			{"Clinician Education", "AI literacy for healthcare professionals, training approaches"},
			{"Patient Education", "Health literacy, AI-enabled health education, preventative medicine"},
			{"Workforce Transformation", "Role evolution, new specialties, human-AI collaboration"},
		}},
		{Name: OtherCategory, Subcategories: []Subcategory{
			{"", "All other articles that don't fit a specific category"},
		}},
	}}
}

// Contains reports whether main/sub is a valid pair. Matching ignores case and
// surrounding whitespace.
func (t Taxonomy) Contains(main, sub string) bool {
	main = normalize(main)
	sub = normalize(sub)
	for _, cat := range t.Categories {
		if normalize(cat.Name) != main {
			continue
		}
		if cat.Name == OtherCategory {
			return true
		}
		for _, s := range cat.Subcategories {
			if normalize(s.Name) == sub {
				return true
			}
		}
		return false
	}
	return false
}

// Canonical returns the configured spelling of main/sub when the pair is known.
func (t Taxonomy) Canonical(main, sub string) (string, string, bool) {
	for _, cat := range t.Categories {
		if normalize(cat.Name) != normalize(main) {
			continue
		}
		if cat.Name == OtherCategory {
			return cat.Name, strings.TrimSpace(sub), true
		}
		for _, s := range cat.Subcategories {
			if normalize(s.Name) == normalize(sub) {
				return cat.Name, s.Name, true
			}
		}
	}
	return main, sub, false
}

// Prompt renders the taxonomy as the block embedded in classification prompts.
func (t Taxonomy) Prompt() string {
	var b strings.Builder
	b.WriteString("Main Categories and Subcategories:\n")
	for _, cat := range t.Categories {
		b.WriteString("\n")
		b.WriteString(cat.Name)
		b.WriteString("\n")
		for _, s := range cat.Subcategories {
			b.WriteString("- ")
			if s.Name != "" {
				b.WriteString(s.Name)
				b.WriteString(": ")
			}
			b.WriteString(s.Description)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
