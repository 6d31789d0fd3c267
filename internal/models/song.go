package models

import "time"

const (
	// CategoryCommunity is the reserved category for songs submitted by the community. Only songs in this category
	// may be edited or deleted
	CategoryCommunity = "user-added"
	// CategoryAll is the sentinel category that disables category filtering
	CategoryAll = "all"
)

// A Song is a devotional song text (bhajan) stored in the catalog
type Song struct {
	// Internal ID of the song
	ID string `db:"id" json:"id"`
	// The primary (transliterated) title
	Title string `db:"title" json:"title" validate:"required"`
	// The title in the song's original script
	LocalTitle string `db:"localTitle" json:"localTitle" validate:"required"`
	// Category tag of the song - see the configured category list
	Category string `db:"category" json:"category" validate:"required"`
	// The sanitized lyrics. Left empty in list views
	Body string `db:"body" json:"body,omitempty" validate:"required"`
	// Additional search terms
	Keywords []string `db:"-" json:"keywords,omitempty"`
	// Name of the file the lyrics originally came from. Unique inside the catalog
	LyricsFile string `db:"lyricsFile" json:"lyricsFile"`
	// Is there an English translation?
	HasEnglish bool `db:"hasEnglish" json:"isEng"`
	// Is there a Hindi version?
	HasHindi bool `db:"hasHindi" json:"isHnd"`
	// Is there a German translation?
	HasGerman bool `db:"hasGerman" json:"isGer"`
	// Is there an audio recording?
	HasAudio bool `db:"hasAudio" json:"isAudio"`
	// Where the audio recording can be found
	AudioURL string `db:"audioUrl" json:"audioUrl,omitempty"`
	// Creation date of this entry
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}

// IsCommunity checks if the song belongs to the community category and may therefore be changed
func (s *Song) IsCommunity() bool {
	return s.Category == CategoryCommunity
}

// SongPatch contains the fields of a song that may be changed after creation. Nil fields are left untouched
type SongPatch struct {
	Title      *string   `json:"title,omitempty"`
	LocalTitle *string   `json:"localTitle,omitempty"`
	Body       *string   `json:"body,omitempty"`
	Keywords   *[]string `json:"keywords,omitempty"`
	AudioURL   *string   `json:"audioUrl,omitempty"`
}

// Apply writes the patched fields to the given song
func (p SongPatch) Apply(s *Song) {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.LocalTitle != nil {
		s.LocalTitle = *p.LocalTitle
	}
	if p.Body != nil {
		s.Body = *p.Body
	}
	if p.Keywords != nil {
		s.Keywords = append([]string(nil), (*p.Keywords)...)
	}
	if p.AudioURL != nil {
		s.AudioURL = *p.AudioURL
	}
}

// Snapshot is a full copy of the catalog taken for offline use
type Snapshot struct {
	// All songs including their bodies
	Songs []Song `json:"songs"`
	// When the snapshot has been downloaded
	TakenAt time.Time `json:"takenAt"`
}
