package types

import "time"

// ResourceDescriptor is what the catalog sends when a didactic file is
// attached to a course: an opaque id, a human title and the Drive file id.
type ResourceDescriptor struct {
	ResourceID      string `json:"resource_id"`
	Title           string `json:"resource_title"`
	DriveID         string `json:"drive_id"`
	SyllabusEventID int64  `json:"syllabus_event_id,omitempty"`
}

// Resource is the ledger's primary record for one ingested file.
// VectorIDs stays empty until a full embedding pass succeeds; a record with
// an empty list is the recoverable "registered but unembedded" state.
type Resource struct {
	ResourceID      string   `json:"resource_id"`
	Title           string   `json:"resource_title"`
	DriveID         string   `json:"drive_id"`
	FileHash        string   `json:"file_hash"`
	StoragePath     string   `json:"storage_path"`
	SyllabusEventID int64    `json:"syllabus_event_id,omitempty"`
	VectorIDs       []string `json:"vector_ids"`
}

// Embedded returns whether the resource completed a full embedding pass.
func (r *Resource) Embedded() bool {
	return r != nil && len(r.VectorIDs) > 0
}

// ChunkMetadata is copied onto every vector record at embedding time so
// matches carry their provenance.
type ChunkMetadata struct {
	ResourceID      string
	Title           string
	FileHash        string
	StoragePath     string
	SyllabusEventID int64
}

func (m ChunkMetadata) AsMap() map[string]any {
	out := map[string]any{
		"resource_id":    m.ResourceID,
		"resource_title": m.Title,
		"file_hash":      m.FileHash,
		"storage_path":   m.StoragePath,
	}
	if m.SyllabusEventID != 0 {
		out["syllabus_event_id"] = m.SyllabusEventID
	}
	return out
}

// ChatTurn is one user/assistant exchange in the conversation log.
type ChatTurn struct {
	UserMessage string    `json:"user_message"`
	AIMessage   string    `json:"ai_message"`
	Prompt      string    `json:"prompt,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Deleted     bool      `json:"deleted"`
}

// CatalogEntry is the local SQLite mirror of the upstream syllabus→resource
// projection. Only the three columns the retrieval scope needs.
type CatalogEntry struct {
	ID                  uint   `gorm:"primaryKey"`
	SyllabusEventID     int64  `gorm:"index"`
	ResourceReferenceID int64
	ResourceID          string `gorm:"index"`
}

func (CatalogEntry) TableName() string { return "catalog_entry" }
