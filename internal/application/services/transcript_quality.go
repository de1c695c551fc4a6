package services

import (
	"strings"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
)

// DefaultMinTranscriptWords is the sufficiency threshold when none is configured.
const DefaultMinTranscriptWords = 50

// TranscriptQualityEvaluator flags transcripts too short for a useful note.
// The verdict is advisory; it never blocks processing.
type TranscriptQualityEvaluator struct {
	minWords int
}

// NewTranscriptQualityEvaluator creates an evaluator with the given word threshold.
func NewTranscriptQualityEvaluator(minWords int) *TranscriptQualityEvaluator {
	if minWords <= 0 {
		minWords = DefaultMinTranscriptWords
	}
	return &TranscriptQualityEvaluator{minWords: minWords}
}

// Evaluate counts whitespace-separated words.
func (e *TranscriptQualityEvaluator) Evaluate(text string) entities.TranscriptQuality {
	words := len(strings.Fields(text))
	return entities.TranscriptQuality{
		WordCount:  words,
		Sufficient: words >= e.minWords,
	}
}
