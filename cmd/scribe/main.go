// scribe runs the clinical text pipeline.
//
// Usage:
//
//	scribe serve                       HTTP API (note requests, education streaming, budget)
//	scribe worker                      background note job runner
//	scribe note --file transcript.txt  one-shot note generation to stdout
//	scribe evaluate --golden cases.json score generation against labeled transcripts
//	scribe migrate                     create the transcript and note tables
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Clinical visit transcript to structured note pipeline",
	Long:  "scribe turns visit transcripts into structured clinical notes with\nvalidated terminology annotations, and streams patient education material.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
