package domain

import "time"

type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

type LogAction string

const (
	ActionStart         LogAction = "start"
	ActionFetched       LogAction = "fetched"
	ActionCreated       LogAction = "created"
	ActionUpdated       LogAction = "updated"
	ActionDeleted       LogAction = "deleted"
	ActionError         LogAction = "error"
	ActionEnd           LogAction = "end"
	ActionSkippedDelete LogAction = "skipped_delete"
	ActionImageSkipped  LogAction = "image_skipped"
)

// LogDetails carries structured context for a log entry. It is a plain
// value so that disabled loggers never allocate.
type LogDetails struct {
	Count      int    `json:"count,omitempty"`
	DocumentID int64  `json:"document_id,omitempty"`
	Error      string `json:"error,omitempty"`
	Created    int    `json:"created,omitempty"`
	Updated    int    `json:"updated,omitempty"`
	Deleted    int    `json:"deleted,omitempty"`
	URL        string `json:"url,omitempty"`
}

// LogExtra is the optional context attached to a log call.
type LogExtra struct {
	RemoteEventID string
	EventTitle    string
	TenantName    string
	Details       LogDetails
}

// LogEntry is one persisted sync log row.
type LogEntry struct {
	ID            int64
	RunID         string
	Timestamp     time.Time
	Level         LogLevel
	Action        LogAction
	RemoteEventID string
	EventTitle    string
	TenantName    string
	Message       string
	Details       LogDetails
}

// LogQuery selects a page of log entries, optionally for a single run.
type LogQuery struct {
	Page    int
	PerPage int
	RunID   string
}

// DefaultLogPageSize is used when a query leaves PerPage unset.
const DefaultLogPageSize = 50

// Normalize clamps page and page size to usable values.
func (q LogQuery) Normalize() LogQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultLogPageSize
	}
	return q
}

// LogPage is a page of log entries, newest first.
type LogPage struct {
	Entries []LogEntry
	Total   int
	Pages   int
}

// RunSummary groups the log entries of one sync run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	EndedAt    time.Time
	EntryCount int
}

// DefaultRetentionDays applies when the configured retention is below one day.
const DefaultRetentionDays = 30

// RetentionDays returns days, or the default when days < 1.
func RetentionDays(days int) int {
	if days < 1 {
		return DefaultRetentionDays
	}
	return days
}
