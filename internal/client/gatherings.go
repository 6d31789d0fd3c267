package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/derWhity/bhajanbook/internal/festival"
	"github.com/derWhity/bhajanbook/internal/models"
)

// Gatherings returns all gatherings ordered by name
func (c *Client) Gatherings(ctx context.Context) ([]models.Gathering, error) {
	var ret []models.Gathering
	if _, err := c.do(ctx, http.MethodGet, nil, nil, &ret, "gatherings"); err != nil {
		return nil, err
	}
	return ret, nil
}

// Gathering returns a single gathering
func (c *Client) Gathering(ctx context.Context, id string) (*models.Gathering, error) {
	var g models.Gathering
	if _, err := c.do(ctx, http.MethodGet, nil, nil, &g, "gatherings", id); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGathering creates a user event
func (c *Client) CreateGathering(ctx context.Context, name, location, description string) (*models.Gathering, error) {
	req := models.Gathering{Name: name, Location: location, Description: description}
	var g models.Gathering
	if _, err := c.do(ctx, http.MethodPost, nil, req, &g, "gatherings"); err != nil {
		return nil, err
	}
	return &g, nil
}

// RenameGathering renames a user event
func (c *Client) RenameGathering(ctx context.Context, id, name string) (*models.Gathering, error) {
	var g models.Gathering
	body := map[string]string{"name": name}
	if _, err := c.do(ctx, http.MethodPut, nil, body, &g, "gatherings", id); err != nil {
		return nil, err
	}
	return &g, nil
}

// DeleteGathering removes a gathering and its sessions
func (c *Client) DeleteGathering(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, nil, nil, nil, "gatherings", id)
	return err
}

// SuggestDate asks the server on which day a session for the festival should be held
func (c *Client) SuggestDate(ctx context.Context, festivalDate time.Time) (time.Time, error) {
	var res struct {
		Date string `json:"date"`
	}
	query := url.Values{"festival": []string{festivalDate.Format(festival.DateLayout)}}
	if _, err := c.do(ctx, http.MethodGet, query, nil, &res, "suggest"); err != nil {
		return time.Time{}, err
	}
	return festival.ParseDate(res.Date)
}
