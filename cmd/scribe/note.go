package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/visitscribe/internal/application/services"
	"github.com/zatekoja/visitscribe/internal/domain/entities"
)

var noteOpts struct {
	file         string
	tier         string
	effort       string
	specialty    string
	practitioner string
	visitDate    string
}

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Generate and annotate a note for one transcript file",
	Long: `Runs generation and terminology annotation for a transcript file and
prints the note as JSON on stdout. Nothing is persisted and no budget is consumed.`,
	RunE: runNote,
}

func init() {
	f := noteCmd.Flags()
	f.StringVarP(&noteOpts.file, "file", "f", "", "transcript text file (required)")
	f.StringVar(&noteOpts.tier, "tier", "", "basic, enhanced or maximum")
	f.StringVar(&noteOpts.effort, "effort", "", "low, medium, high or max")
	f.StringVar(&noteOpts.specialty, "specialty", "", "visit specialty")
	f.StringVar(&noteOpts.practitioner, "practitioner", "", "practitioner name")
	f.StringVar(&noteOpts.visitDate, "visit-date", "", "visit date (YYYY-MM-DD)")
	_ = noteCmd.MarkFlagRequired("file")
}

func runNote(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// stdout carries the note.
	a, err := bootstrap(ctx, "cli", os.Stderr, true)
	if err != nil {
		return err
	}
	defer a.shutdown(ctx)

	text, err := os.ReadFile(noteOpts.file)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}

	meta := entities.VisitMetadata{Specialty: noteOpts.specialty, Practitioner: noteOpts.practitioner}
	if noteOpts.visitDate != "" {
		meta.VisitDate, err = time.Parse("2006-01-02", noteOpts.visitDate)
		if err != nil {
			return fmt.Errorf("invalid --visit-date: %w", err)
		}
	}
	tier, effort := a.defaults.Resolve(noteOpts.tier, noteOpts.effort)

	quality := services.NewTranscriptQualityEvaluator(a.cfg.Pipeline.MinTranscriptWords).Evaluate(string(text))
	if !quality.Sufficient {
		log.Warn().Int("word_count", quality.WordCount).Msg("transcript below quality threshold, generating anyway")
	}

	note, err := a.drafter(tier, effort).Draft(ctx, string(text), meta)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(note)
}
