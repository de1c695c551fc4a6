package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zatekoja/visitscribe/internal/evaluation"
)

var evaluateOpts struct {
	golden           string
	tier             string
	effort           string
	minSectionRecall float64
	minTermRecall    float64
	maxFailed        int
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score note generation against a golden transcript set",
	Long: `Drafts a note for every golden case, measures section and annotated-term
recall, and prints the summary as JSON on stdout. Exits non-zero when a
threshold is missed.`,
	RunE: runEvaluate,
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evaluateOpts.golden, "golden", "config/golden_cases.json", "golden case file")
	f.StringVar(&evaluateOpts.tier, "tier", "", "basic, enhanced or maximum")
	f.StringVar(&evaluateOpts.effort, "effort", "", "low, medium, high or max")
	f.Float64Var(&evaluateOpts.minSectionRecall, "min-section-recall", 0, "fail below this average section recall")
	f.Float64Var(&evaluateOpts.minTermRecall, "min-term-recall", 0, "fail below this average term recall")
	f.IntVar(&evaluateOpts.maxFailed, "max-failed", 0, "fail when more cases error out")
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx, "evaluate", os.Stderr, true)
	if err != nil {
		return err
	}
	defer a.shutdown(ctx)

	cases, err := evaluation.LoadGoldenCases(evaluateOpts.golden)
	if err != nil {
		return err
	}
	if err := evaluation.ValidateGoldenCases(cases); err != nil {
		return err
	}

	tier, effort := a.defaults.Resolve(evaluateOpts.tier, evaluateOpts.effort)
	log.Info().Int("cases", len(cases)).Str("tier", string(tier)).Str("effort", string(effort)).Msg("starting evaluation")

	summary, err := evaluation.NewRunner(a.drafter(tier, effort)).Run(ctx, cases)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return err
	}

	thresholds := evaluation.Thresholds{
		MinSectionRecall: evaluateOpts.minSectionRecall,
		MinTermRecall:    evaluateOpts.minTermRecall,
		MaxFailed:        evaluateOpts.maxFailed,
	}
	if violations := thresholds.Check(summary); len(violations) > 0 {
		return fmt.Errorf("evaluation below thresholds: %s", strings.Join(violations, "; "))
	}
	return nil
}
