package evaluation

import "time"

// Difficulty grades how hard a golden transcript is to document.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid checks if the difficulty is one of the defined constants.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// GoldenCase is a labeled transcript with the note content it should produce.
type GoldenCase struct {
	ID               string     `json:"id"`
	Transcript       string     `json:"transcript"`
	Specialty        string     `json:"specialty,omitempty"`
	ExpectedSections []string   `json:"expected_sections"`
	ExpectedTerms    []string   `json:"expected_terms"`
	Difficulty       Difficulty `json:"difficulty"`
}

// CaseResult is the outcome for one golden case.
type CaseResult struct {
	CaseID        string        `json:"case_id"`
	Difficulty    Difficulty    `json:"difficulty"`
	Outcome       string        `json:"outcome"`
	SectionRecall float64       `json:"section_recall"`
	TermRecall    float64       `json:"term_recall"`
	Latency       time.Duration `json:"latency"`
	Error         string        `json:"error,omitempty"`
}

// Summary aggregates results across all golden cases. Failed cases count as
// zero recall.
type Summary struct {
	TotalCases       int                             `json:"total_cases"`
	Failed           int                             `json:"failed"`
	Degraded         int                             `json:"degraded"`
	AvgSectionRecall float64                         `json:"avg_section_recall"`
	AvgTermRecall    float64                         `json:"avg_term_recall"`
	AvgLatency       time.Duration                   `json:"avg_latency"`
	ByDifficulty     map[Difficulty]*DifficultyStats `json:"by_difficulty"`
	Results          []CaseResult                    `json:"results"`
}

// DifficultyStats holds metrics grouped by difficulty.
type DifficultyStats struct {
	Count            int     `json:"count"`
	AvgSectionRecall float64 `json:"avg_section_recall"`
	AvgTermRecall    float64 `json:"avg_term_recall"`
}
