package models

import "time"

// SessionStatus is the life cycle status of a scheduled session
type SessionStatus string

const (
	// SessionUpcoming is the status of a freshly planned session
	SessionUpcoming SessionStatus = "UPCOMING"
	// SessionCompleted is the status of a session that took place
	SessionCompleted SessionStatus = "COMPLETED"
	// SessionCancelled is the status of a session that has been called off
	SessionCancelled SessionStatus = "CANCELLED"
)

// CanBecome checks if a session in this status may move to the given status
func (s SessionStatus) CanBecome(next SessionStatus) bool {
	if s == next {
		return true
	}
	return s == SessionUpcoming && (next == SessionCompleted || next == SessionCancelled)
}

// ValidSessionStatus checks if the given value is a known session status
func ValidSessionStatus(s SessionStatus) bool {
	return s == SessionUpcoming || s == SessionCompleted || s == SessionCancelled
}

// A PlaylistEntry is one ordered reference to a song inside a session
type PlaylistEntry struct {
	// Internal ID of the entry
	ID string `db:"id" json:"id"`
	// The song being referenced
	SongID string `db:"songId" json:"songId" validate:"required"`
	// Copy of the song's title at the time it was added
	Title string `db:"title" json:"title"`
	// Copy of the song's local title at the time it was added
	LocalTitle string `db:"localTitle" json:"localTitle"`
	// 1-based position inside the session
	Position int `db:"position" json:"position"`
	// Optional remark
	Note string `db:"note" json:"note,omitempty"`
}

// A Session is one scheduled occurrence of a gathering with its ordered song list
type Session struct {
	// Internal ID
	ID string `db:"id" json:"id"`
	// The gathering this session belongs to
	GatheringID string `db:"gatheringId" json:"gatheringId" validate:"required"`
	// The calendar date of the session (UTC midnight)
	Date time.Time `db:"date" json:"date"`
	// See the Session* status constants
	Status SessionStatus `db:"status" json:"status" validate:"required,oneof=UPCOMING COMPLETED CANCELLED"`
	// The ordered playlist
	Entries []PlaylistEntry `db:"-" json:"entries"`
	// Free text notes
	Notes string `db:"notes" json:"notes"`
	// Creation date of this entry
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}

// Clone returns a deep copy of the session so that entry slices are not shared
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Entries = make([]PlaylistEntry, len(s.Entries))
	copy(c.Entries, s.Entries)
	return &c
}
