package entities

import "time"

// Section keys of a clinical note.
const (
	SectionSubjective = "subjective"
	SectionObjective  = "objective"
	SectionAssessment = "assessment"
	SectionPlan       = "plan"
)

// SectionOrder lists section keys in note order.
var SectionOrder = []string{SectionSubjective, SectionObjective, SectionAssessment, SectionPlan}

// NoteSections holds the four narrative sections of a SOAP note.
type NoteSections struct {
	Subjective string `json:"subjective"`
	Objective  string `json:"objective"`
	Assessment string `json:"assessment"`
	Plan       string `json:"plan"`
}

// Map returns the non-empty sections keyed by section name.
func (s NoteSections) Map() map[string]string {
	out := make(map[string]string, 4)
	for key, text := range map[string]string{
		SectionSubjective: s.Subjective,
		SectionObjective:  s.Objective,
		SectionAssessment: s.Assessment,
		SectionPlan:       s.Plan,
	} {
		if text != "" {
			out[key] = text
		}
	}
	return out
}

// IsEmpty reports whether every section is blank.
func (s NoteSections) IsEmpty() bool {
	return s.Subjective == "" && s.Objective == "" && s.Assessment == "" && s.Plan == ""
}

// ParseOutcome tells a structured generation apart from a degraded one.
type ParseOutcome string

const (
	// ParseStructured means the model output parsed into sections.
	ParseStructured ParseOutcome = "structured"
	// ParseDegraded means parsing failed; sections are empty and RawResponse holds the output.
	ParseDegraded ParseOutcome = "degraded"
)

// TermAnnotation marks a clinical term inside a note section.
// Text[Start:End] (in characters) equals Term case-insensitively.
type TermAnnotation struct {
	Term       string `json:"term"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Definition string `json:"definition"`
}

// ClinicalNote is the structured note produced from one transcript.
type ClinicalNote struct {
	ID           string                      `json:"id" db:"id"`
	TranscriptID string                      `json:"transcript_id" db:"transcript_id"`
	Sections     NoteSections                `json:"sections"`
	Entities     map[string][]string         `json:"entities"`
	Annotations  map[string][]TermAnnotation `json:"annotations,omitempty"`
	Outcome      ParseOutcome                `json:"outcome" db:"outcome"`
	RawResponse  string                      `json:"raw_response,omitempty" db:"raw_response"`
	Model        string                      `json:"model" db:"model"`
	Tier         Tier                        `json:"tier" db:"tier"`
	ContentHash  string                      `json:"content_hash" db:"content_hash"`
	CreatedAt    time.Time                   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at" db:"updated_at"`
}

// Degraded reports whether the note failed to parse.
func (n *ClinicalNote) Degraded() bool {
	return n.Outcome == ParseDegraded
}
