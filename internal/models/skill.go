// Package models defines the domain types for skilltally.
package models

import "time"

// SkillCount is one entry of the aggregated skill table.
type SkillCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Outcome describes what a scan did with a single note.
type Outcome string

const (
	OutcomeCounted          Outcome = "counted"
	OutcomeFiltered         Outcome = "filtered"
	OutcomeSkippedIndex     Outcome = "skipped_index"
	OutcomeSkippedProcessed Outcome = "skipped_processed"
)

// NoteResult is the per-file record produced by a scan.
type NoteResult struct {
	Path    string   `json:"path"`
	Outcome Outcome  `json:"outcome"`
	Skills  []string `json:"skills,omitempty"`
	Marked  bool     `json:"marked"`
}

// Run summarises one pipeline execution.
type Run struct {
	ID         int64        `json:"id,omitempty"`
	UID        string       `json:"uid"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Scanned    int          `json:"scanned"`
	Counted    int          `json:"counted"`
	Filtered   int          `json:"filtered"`
	Skipped    int          `json:"skipped"`
	Marked     int          `json:"marked"`
	Increments int          `json:"increments"`
	Top        []SkillCount `json:"top,omitempty"`
	Notes      []NoteResult `json:"notes,omitempty"`
}
