package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
)

const clinicalNoteSystemPrompt = `You are a clinical documentation assistant. Turn the visit transcript into a SOAP note. Return ONLY valid JSON with this schema:
{
  "subjective": string (history and symptoms as reported by the patient),
  "objective": string (examination findings, vitals and results stated in the visit),
  "assessment": string (the clinician's impression and differential),
  "plan": string (tests, treatment, follow-up and patient instructions),
  "entities": {
    "conditions": string[],
    "medications": string[],
    "symptoms": string[],
    "procedures": string[]
  }
}
Use only information present in the transcript. Leave a section as an empty string when the transcript has nothing for it. Do not invent vitals, doses or diagnoses.`

const clinicalGuidelinesAddendum = `
When the assessment names a condition with a widely used practice guideline, align the plan wording with that guideline and say which guideline in one short clause. Never add treatment the clinician did not state.`

const terminologySystemPrompt = `You annotate clinical terms in note sections for patients. Return ONLY valid JSON mapping each section name to a list of annotations:
{
  "<section>": [ { "term": string, "start": integer, "end": integer, "definition": string } ]
}
start and end are character offsets into that section's text, end exclusive. term must be copied exactly from the text. definition is one plain-language sentence. Annotate abbreviations, drug names and diagnostic terms a patient may not know. Omit sections with nothing to annotate.`

const educationSystemPrompt = `You write patient education material. Explain the topic in plain language at the requested reading level, using short paragraphs and concrete next steps. Do not give individual medical advice beyond what the clinician's note states, and tell the reader to contact their care team with questions.`

func buildClinicalNoteSystemPrompt(profile entities.TierProfile) string {
	if profile.GuidelinesEnabled {
		return clinicalNoteSystemPrompt + clinicalGuidelinesAddendum
	}
	return clinicalNoteSystemPrompt
}

func buildClinicalNoteUserPrompt(text string, meta entities.VisitMetadata) string {
	visitDate := "unknown"
	if !meta.VisitDate.IsZero() {
		visitDate = meta.VisitDate.Format("2006-01-02")
	}
	return fmt.Sprintf(
		"Specialty: %s\nVisit date: %s\nPractitioner: %s\n\nTranscript:\n%s\n",
		orUnknown(meta.Specialty), visitDate, orUnknown(meta.Practitioner), text,
	)
}

func buildTerminologyUserPrompt(sections map[string]string) (string, error) {
	data, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return "", err
	}
	return "Note sections:\n" + string(data) + "\n", nil
}

func buildEducationUserPrompt(req EducationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	fmt.Fprintf(&b, "Reading level: %s\n", orDefault(req.ReadingLevel, "grade 6"))
	if req.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", req.Language)
	}
	if req.NoteContext != "" {
		fmt.Fprintf(&b, "\nClinician's note for context:\n%s\n", req.NoteContext)
	}
	return b.String()
}

func orUnknown(s string) string {
	return orDefault(s, "unknown")
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// cleanJSON strips an optional markdown code fence around model output.
func cleanJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
