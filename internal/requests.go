package internal

import (
	"io"

	"github.com/derWhity/bhajanbook/internal/models"
)

// -- Request data -----------------------------------------------------------------------------------------------------

// SongQuery describes a search inside the song catalog
type SongQuery struct {
	// Literal text to search for in titles, keywords and bodies
	Query string
	// Category to restrict the search to - "all" or empty searches every category
	Category string
	// Include the song bodies in the result
	FullBody bool
}

// songUpdateRequest carries the changes to a song together with its ID from the path
type songUpdateRequest struct {
	ID    string
	Patch models.SongPatch
}

// categoryRequest is the body of a request for adding a category
type categoryRequest struct {
	Name string `json:"name"`
}

// renameRequest is the body of a gathering rename
type renameRequest struct {
	ID   string `json:"-"`
	Name string `json:"name"`
}

// sessionCreateRequest plans a new session of a gathering
type sessionCreateRequest struct {
	GatheringID string `json:"-"`
	// Calendar date in YYYY-MM-DD format
	Date string `json:"date"`
	// Optional notes
	Notes string `json:"notes"`
}

// SessionUpdate contains the changeable base data of a session. Nil fields are left untouched
type SessionUpdate struct {
	Status *models.SessionStatus `json:"status,omitempty"`
	Notes  *string               `json:"notes,omitempty"`
}

// sessionUpdateRequest carries a SessionUpdate together with the session ID from the path
type sessionUpdateRequest struct {
	ID     string
	Update SessionUpdate
}

// entriesRequest replaces the full playlist of a session
type entriesRequest struct {
	SessionID string                 `json:"-"`
	Entries   []models.PlaylistEntry `json:"entries"`
}

// addEntryRequest appends a song to a session's playlist
type addEntryRequest struct {
	SessionID string `json:"-"`
	SongID    string `json:"songId"`
	Note      string `json:"note"`
}

// removeEntryRequest removes the entry at the given 0-based index
type removeEntryRequest struct {
	SessionID string
	Index     int
}

// reorderRequest brings the entries of a session into a new order
type reorderRequest struct {
	SessionID string   `json:"-"`
	Order     []string `json:"order"`
}

// importRequest starts an import of the given directory
type importRequest struct {
	Dir string `json:"dir"`
}

// ocrRequest carries an uploaded image
type ocrRequest struct {
	Image    io.Reader
	Language string
}
