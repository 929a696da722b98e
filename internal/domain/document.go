package domain

import "time"

// DocumentStatus is the local lifecycle status of a mirrored event.
type DocumentStatus string

const (
	DocumentPublished DocumentStatus = "published"
	DocumentDraft     DocumentStatus = "draft"
)

// Document is the local mirror of one remote event.
type Document struct {
	LocalID       int64
	TenantID      string // empty for legacy documents
	RemoteEventID string
	Title         string
	Description   string
	Status        DocumentStatus
	StartAt       time.Time
	EndAt         time.Time
	VenueName     string
	PriceDisplay  string
	MinPrice      int64
	MaxPrice      int64
	Capacity      int64
	Remaining     int64
	ImageURL      string
	RawPayload    []byte
	LastSyncedAt  time.Time
	CreatedAt     time.Time
}

// Scope returns the scope the document belongs to.
func (d Document) Scope() Scope {
	return TenantScope(d.TenantID)
}

// EventFields is the mapped content written on create and update.
type EventFields struct {
	Title        string
	Description  string
	Status       DocumentStatus
	StartAt      time.Time
	EndAt        time.Time
	VenueName    string
	PriceDisplay string
	MinPrice     int64
	MaxPrice     int64
	Capacity     int64
	Remaining    int64
	ImageURL     string
	RawPayload   []byte
	LastSyncedAt time.Time

	// Meta is written through the store's key-value metadata.
	Meta map[string]string
}

// Image is a fetched primary image ready to attach to a document.
type Image struct {
	SourceURL   string
	ContentType string
	Width       int
	Height      int
	Data        []byte
}
