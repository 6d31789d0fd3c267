package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derWhity/bhajanbook/internal/database"
	"github.com/derWhity/bhajanbook/internal/migrate"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
	sessionrepo "github.com/derWhity/bhajanbook/internal/repos/session/sqlite"
)

func TestGatheringLifecycle(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	defer db.Close()
	logger := logrus.NewEntry(logrus.New())
	require.NoError(t, migrate.ExecuteMigrationsOnDb(db, logger))
	r := New(db, logger)
	sessions := sessionrepo.New(db, logger)

	num, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(0), num)

	require.NoError(t, r.Create(ctx, &models.Gathering{ID: "u", Name: "Birthday", Location: models.DefaultUserLocation, Type: models.GatheringUserEvent}))
	require.NoError(t, r.Create(ctx, &models.Gathering{ID: "p", Name: "Sunday Parivaar Sabha", Location: "Global", Type: models.GatheringParivaar}))

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Recurring gatherings are listed first
	assert.Equal(t, "p", list[0].ID)
	assert.Equal(t, models.GatheringUserEvent, list[1].Type)

	g, err := r.GetByID(ctx, "u")
	require.NoError(t, err)
	g.Name = "Birthday Sabha"
	require.NoError(t, r.Update(ctx, g))
	g, err = r.GetByID(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "Birthday Sabha", g.Name)

	// Deleting cascades to the sessions of the gathering but leaves others alone
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, sessions.Create(ctx, &models.Session{ID: "s1", GatheringID: "u", Date: date, Status: models.SessionUpcoming}))
	require.NoError(t, sessions.Create(ctx, &models.Session{ID: "s2", GatheringID: "p", Date: date, Status: models.SessionUpcoming}))
	_, err = sessions.UpdateEntries(ctx, "s1", []models.PlaylistEntry{{ID: "e1", SongID: "x"}})
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, "u"))
	_, err = r.GetByID(ctx, "u")
	assert.Equal(t, repos.ErrEntityNotExisting, err)
	_, err = sessions.FindByID(ctx, "s1")
	assert.Equal(t, repos.ErrEntityNotExisting, err)
	_, err = sessions.FindByID(ctx, "s2")
	assert.NoError(t, err)
	var orphans int
	require.NoError(t, db.Get(&orphans, "SELECT COUNT(*) FROM SessionEntries WHERE sessionId = 's1'"))
	assert.Equal(t, 0, orphans)

	assert.Equal(t, repos.ErrEntityNotExisting, r.Delete(ctx, "u"))
	assert.Equal(t, repos.ErrEntityNotExisting, r.Update(ctx, &models.Gathering{ID: "gone", Name: "x", Type: models.GatheringUserEvent}))
}
