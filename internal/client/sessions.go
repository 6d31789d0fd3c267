package client

import (
	"context"
	"net/http"
	"time"

	"github.com/derWhity/bhajanbook/internal/festival"
	"github.com/derWhity/bhajanbook/internal/models"
)

// Sessions returns the sessions of a gathering ordered by date. Their playlists are not included
func (c *Client) Sessions(ctx context.Context, gatheringID string) ([]models.Session, error) {
	var ret []models.Session
	if _, err := c.do(ctx, http.MethodGet, nil, nil, &ret, "gatherings", gatheringID, "sessions"); err != nil {
		return nil, err
	}
	return ret, nil
}

// CreateSession plans a new session of a gathering
func (c *Client) CreateSession(ctx context.Context, gatheringID string, date time.Time, notes string) (*models.Session, error) {
	body := map[string]string{
		"date":  date.Format(festival.DateLayout),
		"notes": notes,
	}
	var s models.Session
	if _, err := c.do(ctx, http.MethodPost, nil, body, &s, "gatherings", gatheringID, "sessions"); err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByID implements playlist.Store and returns the session including its playlist
func (c *Client) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if _, err := c.do(ctx, http.MethodGet, nil, nil, &s, "sessions", id); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSession changes the status or the notes of a session. Nil values are left untouched
func (c *Client) UpdateSession(ctx context.Context, id string, status *models.SessionStatus, notes *string) (*models.Session, error) {
	body := struct {
		Status *models.SessionStatus `json:"status,omitempty"`
		Notes  *string               `json:"notes,omitempty"`
	}{status, notes}
	var s models.Session
	if _, err := c.do(ctx, http.MethodPut, nil, body, &s, "sessions", id); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession removes a session
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, nil, nil, nil, "sessions", id)
	return err
}

// UpdateEntries implements playlist.Store and replaces the full playlist of a session
func (c *Client) UpdateEntries(ctx context.Context, id string, entries []models.PlaylistEntry) (*models.Session, error) {
	body := map[string][]models.PlaylistEntry{"entries": entries}
	var s models.Session
	if _, err := c.do(ctx, http.MethodPut, nil, body, &s, "sessions", id, "entries"); err != nil {
		return nil, err
	}
	return &s, nil
}
