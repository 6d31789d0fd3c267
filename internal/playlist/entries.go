// Package playlist edits the ordered song lists of scheduled sessions. The functions in this file are pure and never
// touch the input slices; the Manager adds optimistic local state and background persistence on top of them
package playlist

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/derWhity/bhajanbook/internal/models"
)

var (
	// ErrIndexOutOfRange is returned when an entry index does not point into the playlist
	ErrIndexOutOfRange = fmt.Errorf("entry index out of range")
	// ErrInvalidPermutation is returned when a new order does not name every entry of the playlist exactly once
	ErrInvalidPermutation = fmt.Errorf("order is not a permutation of the playlist entries")
)

// Renumber returns a copy of the entries with positions 1..N following the slice order
func Renumber(entries []models.PlaylistEntry) []models.PlaylistEntry {
	ret := make([]models.PlaylistEntry, len(entries))
	copy(ret, entries)
	for i := range ret {
		ret[i].Position = i + 1
	}
	return ret
}

// Dense checks if the positions of the entries are exactly 1..N in slice order
func Dense(entries []models.PlaylistEntry) bool {
	for i, e := range entries {
		if e.Position != i+1 {
			return false
		}
	}
	return true
}

// Append adds a song to the end of the playlist. The entry copies the song's titles
func Append(entries []models.PlaylistEntry, song *models.Song, note string) []models.PlaylistEntry {
	ret := make([]models.PlaylistEntry, 0, len(entries)+1)
	ret = append(ret, entries...)
	ret = append(ret, models.PlaylistEntry{
		ID:         uuid.New().String(),
		SongID:     song.ID,
		Title:      song.Title,
		LocalTitle: song.LocalTitle,
		Note:       note,
	})
	return Renumber(ret)
}

// RemoveAt removes the entry at the given 0-based index and closes the gap
func RemoveAt(entries []models.PlaylistEntry, index int) ([]models.PlaylistEntry, error) {
	if index < 0 || index >= len(entries) {
		return nil, ErrIndexOutOfRange
	}
	ret := make([]models.PlaylistEntry, 0, len(entries)-1)
	ret = append(ret, entries[:index]...)
	ret = append(ret, entries[index+1:]...)
	return Renumber(ret), nil
}

// Permute brings the entries into the order given by their IDs
func Permute(entries []models.PlaylistEntry, order []string) ([]models.PlaylistEntry, error) {
	if len(order) != len(entries) {
		return nil, ErrInvalidPermutation
	}
	byID := make(map[string]models.PlaylistEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	if len(byID) != len(entries) {
		// Duplicate IDs in the playlist itself
		return nil, ErrInvalidPermutation
	}
	ret := make([]models.PlaylistEntry, 0, len(order))
	for _, id := range order {
		e, ok := byID[id]
		if !ok {
			return nil, ErrInvalidPermutation
		}
		delete(byID, id)
		ret = append(ret, e)
	}
	return Renumber(ret), nil
}
