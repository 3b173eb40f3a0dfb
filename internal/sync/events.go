package sync

import "time"

// Event types pushed to connected clients.
const (
	TypeWelcome       = "welcome"
	TypeTermsAppended = "terms.appended"
	TypeSyncFinished  = "sync.finished"
)

// TermsEvent announces rows a run appended to the ledger.
type TermsEvent struct {
	Type  string    `json:"type"`
	RunID string    `json:"run_id"`
	Count int       `json:"count"`
	Terms []string  `json:"terms"`
	At    time.Time `json:"at"`
}

// SyncEvent summarizes a finished run, whether or not it appended anything.
type SyncEvent struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Collected int       `json:"collected"`
	Appended  int       `json:"appended"`
	Skipped   string    `json:"skipped,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

type welcomeEvent struct {
	Type      string `json:"type"`
	Transport string `json:"transport"`
	Clients   int    `json:"clients"`
}
