package entities

import "time"

// NoteJob asks a worker to run the note pipeline for one transcript.
type NoteJob struct {
	ID           string    `json:"id"`
	TranscriptID string    `json:"transcript_id"`
	Identity     string    `json:"identity"`
	Tier         Tier      `json:"tier"`
	Effort       Effort    `json:"effort"`
	Attempt      int       `json:"attempt"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}
