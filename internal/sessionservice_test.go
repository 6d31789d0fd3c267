package internal

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/bhajanbook/internal/models"
)

func TestGatheringRules(t *testing.T) {
	env := setupEnv(t, nil)
	list, err := env.gatherings.List(env.ctx)
	require.NoError(t, err)
	require.Len(t, list, 4)

	// Recurring gatherings cannot be renamed
	_, err = env.gatherings.Rename(env.ctx, list[0].ID, "Other")
	assertHTTPError(t, err, http.StatusForbidden, ErrCodePermissionDenied)

	g, err := env.gatherings.Create(env.ctx, &models.Gathering{Name: " Birthday ", Type: models.GatheringYouth})
	require.NoError(t, err)
	assert.Equal(t, models.GatheringUserEvent, g.Type)
	assert.Equal(t, models.DefaultUserLocation, g.Location)
	assert.Equal(t, "Birthday", g.Name)

	g, err = env.gatherings.Rename(env.ctx, g.ID, "Birthday Sabha")
	require.NoError(t, err)
	assert.Equal(t, "Birthday Sabha", g.Name)

	_, err = env.gatherings.Rename(env.ctx, g.ID, "  ")
	assertHTTPError(t, err, http.StatusBadRequest, ErrCodeRequiredFieldMissing)

	_, err = env.gatherings.Create(env.ctx, &models.Gathering{})
	assertHTTPError(t, err, http.StatusBadRequest, ErrCodeRequiredFieldMissing)

	require.NoError(t, env.gatherings.Delete(env.ctx, g.ID))
	_, err = env.gatherings.Get(env.ctx, g.ID)
	assertHTTPError(t, err, http.StatusNotFound, ErrCodeGatheringNotFound)
	assertHTTPError(t, env.gatherings.Delete(env.ctx, g.ID), http.StatusNotFound, ErrCodeGatheringNotFound)
}

func TestSeedingOnlyHappensOnce(t *testing.T) {
	env := setupEnv(t, nil)
	conf := env.config.GetConfig(env.ctx)
	require.NoError(t, SeedGatherings(env.ctx, env.gathRepo, conf.SeedGatherings, env.logger))
	num, err := env.gathRepo.Count(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(len(conf.SeedGatherings)), num)
}

// newSession creates a user event with one session
func newSession(t *testing.T, env *testEnv) *models.Session {
	t.Helper()
	g, err := env.gatherings.Create(env.ctx, &models.Gathering{Name: "Satsang"})
	require.NoError(t, err)
	sess, err := env.sessions.Create(env.ctx, g.ID, time.Date(2024, 8, 25, 18, 30, 0, 0, time.Local), " bring books ")
	require.NoError(t, err)
	return sess
}

func TestCreateSession(t *testing.T) {
	env := setupEnv(t, nil)
	sess := newSession(t, env)
	assert.Equal(t, models.SessionUpcoming, sess.Status)
	assert.Equal(t, time.Date(2024, 8, 25, 0, 0, 0, 0, time.UTC), sess.Date)
	assert.Equal(t, "bring books", sess.Notes)
	assert.Empty(t, sess.Entries)

	list, err := env.sessions.ListForGathering(env.ctx, sess.GatheringID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sess.ID, list[0].ID)

	_, err = env.sessions.Create(env.ctx, "missing", time.Now(), "")
	assertHTTPError(t, err, http.StatusNotFound, ErrCodeGatheringNotFound)
	_, err = env.sessions.Create(env.ctx, sess.GatheringID, time.Time{}, "")
	assertHTTPError(t, err, http.StatusBadRequest, ErrCodeRequiredFieldMissing)
	_, err = env.sessions.ListForGathering(env.ctx, "missing")
	assertHTTPError(t, err, http.StatusNotFound, ErrCodeGatheringNotFound)
}

func TestSessionStatusTransitions(t *testing.T) {
	env := setupEnv(t, nil)
	sess := newSession(t, env)

	bogus := models.SessionStatus("POSTPONED")
	_, err := env.sessions.Update(env.ctx, sess.ID, SessionUpdate{Status: &bogus})
	assertHTTPError(t, err, http.StatusBadRequest, ErrCodeIllegalValue)

	done := models.SessionCompleted
	notes := "went well"
	updated, err := env.sessions.Update(env.ctx, sess.ID, SessionUpdate{Status: &done, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, updated.Status)
	assert.Equal(t, "went well", updated.Notes)

	upcoming := models.SessionUpcoming
	_, err = env.sessions.Update(env.ctx, sess.ID, SessionUpdate{Status: &upcoming})
	assertHTTPError(t, err, http.StatusBadRequest, ErrCodeIllegalValue)

	stored, err := env.sessions.Get(env.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, stored.Status)

	_, err = env.sessions.Update(env.ctx, "missing", SessionUpdate{Notes: &notes})
	assertHTTPError(t, err, http.StatusNotFound, ErrCodeSessionNotFound)
}

func positions(entries []models.PlaylistEntry) map[string]int {
	ret := map[string]int{}
	for _, e := range entries {
		ret[e.SongID] = e.Position
	}
	return ret
}

func TestPlaylistOperations(t *testing.T) {
	env := setupEnv(t, nil)
	env.addSong(t, "a", "Arti", "mangalacharan")
	env.addSong(t, "b", "Bhajan", "sant-kirtan")
	env.addSong(t, "c", "Chesta", models.CategoryCommunity)
	sess := newSession(t, env)

	var err error
	for _, id := range []string{"a", "b", "c"} {
		sess, err = env.sessions.AddEntry(env.ctx, sess.ID, id, "")
		require.NoError(t, err)
	}
	require.Len(t, sess.Entries, 3)
	assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 3}, positions(sess.Entries))
	assert.Equal(t, "Arti", sess.Entries[0].Title)

	order := []string{sess.Entries[2].ID, sess.Entries[0].ID, sess.Entries[1].ID}
	sess, err = env.sessions.Reorder(env.ctx, sess.ID, order)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"c": 1, "a": 2, "b": 3}, positions(sess.Entries))

	_, err = env.sessions.Reorder(env.ctx, sess.ID, order[:2])
	assertHTTPError(t, err, http.StatusBadRequest, ErrCodeInvalidPermutation)

	sess, err = env.sessions.RemoveEntry(env.ctx, sess.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"c": 1, "b": 2}, positions(sess.Entries))

	_, err = env.sessions.RemoveEntry(env.ctx, sess.ID, 2)
	assertHTTPError(t, err, http.StatusBadRequest, ErrCodeIndexOutOfRange)
	stored, err := env.sessions.Get(env.ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Entries, 2)

	_, err = env.sessions.AddEntry(env.ctx, sess.ID, "missing", "")
	assertHTTPError(t, err, http.StatusNotFound, ErrCodeSongNotFound)
	_, err = env.sessions.AddEntry(env.ctx, "missing", "a", "")
	assertHTTPError(t, err, http.StatusNotFound, ErrCodeSessionNotFound)
}

func TestUpdateEntries(t *testing.T) {
	env := setupEnv(t, nil)
	env.addSong(t, "a", "Arti", "mangalacharan")
	env.addSong(t, "b", "Bhajan", "sant-kirtan")
	sess := newSession(t, env)

	sess, err := env.sessions.UpdateEntries(env.ctx, sess.ID, []models.PlaylistEntry{
		{SongID: "b", Position: 7, Note: "slow"},
		{SongID: "a", Title: "Kept title"},
		{SongID: "b"},
	})
	require.NoError(t, err)
	require.Len(t, sess.Entries, 3)
	for i, e := range sess.Entries {
		assert.Equal(t, i+1, e.Position)
		assert.NotEmpty(t, e.ID)
	}
	assert.Equal(t, "Bhajan", sess.Entries[0].Title)
	assert.Equal(t, "slow", sess.Entries[0].Note)
	assert.Equal(t, "Kept title", sess.Entries[1].Title)

	_, err = env.sessions.UpdateEntries(env.ctx, sess.ID, []models.PlaylistEntry{{SongID: "nope"}})
	assertHTTPError(t, err, http.StatusNotFound, ErrCodeSongNotFound)
	_, err = env.sessions.UpdateEntries(env.ctx, sess.ID, []models.PlaylistEntry{{}})
	assertHTTPError(t, err, http.StatusBadRequest, ErrCodeRequiredFieldMissing)
	_, err = env.sessions.UpdateEntries(env.ctx, "missing", nil)
	assertHTTPError(t, err, http.StatusNotFound, ErrCodeSessionNotFound)

	// Songs removed from the catalog stay in the playlist with their titles
	require.NoError(t, env.songRepo.Delete(env.ctx, "a"))
	stored, err := env.sessions.Get(env.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kept title", stored.Entries[1].Title)
}

func TestSuggestDate(t *testing.T) {
	env := setupEnv(t, nil)
	// Friday, 1st of November 2024 moves forward to Sunday
	assert.Equal(t,
		time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC),
		env.sessions.SuggestDate(env.ctx, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)),
	)
	// Wednesday moves back
	assert.Equal(t,
		time.Date(2024, 10, 27, 0, 0, 0, 0, time.UTC),
		env.sessions.SuggestDate(env.ctx, time.Date(2024, 10, 30, 0, 0, 0, 0, time.UTC)),
	)
}

func TestDeleteSession(t *testing.T) {
	env := setupEnv(t, nil)
	sess := newSession(t, env)
	require.NoError(t, env.sessions.Delete(env.ctx, sess.ID))
	assertHTTPError(t, env.sessions.Delete(env.ctx, sess.ID), http.StatusNotFound, ErrCodeSessionNotFound)
}
