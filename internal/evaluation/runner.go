package evaluation

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
)

// NoteProducer drafts an annotated note for a transcript.
type NoteProducer interface {
	Draft(ctx context.Context, transcript string, meta entities.VisitMetadata) (*entities.ClinicalNote, error)
}

// Runner runs evaluation across a set of golden cases, one at a time.
type Runner struct {
	producer NoteProducer
	logger   zerolog.Logger
}

func NewRunner(producer NoteProducer) *Runner {
	return &Runner{
		producer: producer,
		logger:   log.Logger.With().Str("component", "evaluation_runner").Logger(),
	}
}

func (r *Runner) Run(ctx context.Context, cases []GoldenCase) (*Summary, error) {
	summary := &Summary{
		TotalCases:   len(cases),
		ByDifficulty: make(map[Difficulty]*DifficultyStats),
	}

	for _, gc := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := time.Now()
		note, err := r.producer.Draft(ctx, gc.Transcript, entities.VisitMetadata{Specialty: gc.Specialty})
		result := CaseResult{
			CaseID:     gc.ID,
			Difficulty: gc.Difficulty,
			Latency:    time.Since(start),
		}

		if err != nil {
			result.Outcome = "failed"
			result.Error = err.Error()
			summary.Failed++
			r.logger.Warn().Err(err).Str("case_id", gc.ID).Msg("golden case failed")
		} else {
			result.Outcome = string(note.Outcome)
			if note.Degraded() {
				summary.Degraded++
			}
			result.SectionRecall = Recall(gc.ExpectedSections, presentSections(note))
			result.TermRecall = Recall(gc.ExpectedTerms, annotatedTerms(note))
		}

		r.addResult(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func presentSections(note *entities.ClinicalNote) []string {
	sections := note.Sections.Map()
	out := make([]string, 0, len(sections))
	for key := range sections {
		out = append(out, key)
	}
	return out
}

func annotatedTerms(note *entities.ClinicalNote) []string {
	var out []string
	for _, annotations := range note.Annotations {
		for _, a := range annotations {
			out = append(out, a.Term)
		}
	}
	return out
}

func (r *Runner) addResult(s *Summary, res CaseResult) {
	s.Results = append(s.Results, res)
	s.AvgSectionRecall += res.SectionRecall
	s.AvgTermRecall += res.TermRecall
	s.AvgLatency += res.Latency

	if _, ok := s.ByDifficulty[res.Difficulty]; !ok {
		s.ByDifficulty[res.Difficulty] = &DifficultyStats{}
	}
	ds := s.ByDifficulty[res.Difficulty]
	ds.Count++
	ds.AvgSectionRecall += res.SectionRecall
	ds.AvgTermRecall += res.TermRecall
}

func (r *Runner) finalizeSummary(s *Summary) {
	if s.TotalCases > 0 {
		n := float64(s.TotalCases)
		s.AvgSectionRecall /= n
		s.AvgTermRecall /= n
		s.AvgLatency /= time.Duration(s.TotalCases)
	}

	for _, ds := range s.ByDifficulty {
		if ds.Count > 0 {
			n := float64(ds.Count)
			ds.AvgSectionRecall /= n
			ds.AvgTermRecall /= n
		}
	}
}
