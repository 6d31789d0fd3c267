package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/derWhity/bhajanbook/internal/catalog"
	"github.com/derWhity/bhajanbook/internal/filter"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/repos"
)

// Search runs a catalog search on the server and returns the result as the server reports it
func (c *Client) Search(ctx context.Context, f filter.Filter, includeBody bool) (catalog.Result, error) {
	query := f.Values()
	if includeBody {
		query.Set("full", strconv.FormatBool(true))
	}
	var res catalog.Result
	header, err := c.do(ctx, http.MethodGet, query, nil, &res, "songs")
	if err != nil {
		return catalog.Result{}, err
	}
	if src := header.Get(catalogSourceHeader); src != "" {
		res.Status = catalog.Status(src)
	}
	return res, nil
}

// Find implements catalog.Store. Only live answers count: a server that answers from its own snapshot or not at all
// is an unavailable store, so the caller falls back to its local snapshot and never stores stale data as fresh
func (c *Client) Find(ctx context.Context, f filter.Filter, includeBody bool) ([]models.Song, error) {
	res, err := c.Search(ctx, f, includeBody)
	if err != nil {
		return nil, err
	}
	if res.Status != catalog.StatusLive {
		return nil, repos.Unavailable(
			fmt.Errorf("server answered with catalog source '%s'", res.Status),
			"Find: Server catalog not live",
		)
	}
	if res.Songs == nil {
		res.Songs = []models.Song{}
	}
	return res.Songs, nil
}

// GetSong loads a single song including its body
func (c *Client) GetSong(ctx context.Context, id string) (*models.Song, error) {
	var song models.Song
	if _, err := c.do(ctx, http.MethodGet, nil, nil, &song, "songs", id); err != nil {
		return nil, err
	}
	return &song, nil
}

// CreateSong adds a song to the catalog and returns it as stored by the server
func (c *Client) CreateSong(ctx context.Context, song *models.Song) (*models.Song, error) {
	var created models.Song
	if _, err := c.do(ctx, http.MethodPost, nil, song, &created, "songs"); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateSong changes a community song
func (c *Client) UpdateSong(ctx context.Context, id string, patch models.SongPatch) (*models.Song, error) {
	var updated models.Song
	if _, err := c.do(ctx, http.MethodPut, nil, patch, &updated, "songs", id); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSong removes a community song
func (c *Client) DeleteSong(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, nil, nil, nil, "songs", id)
	return err
}

// Categories returns the categories known to the server
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var ret []string
	if _, err := c.do(ctx, http.MethodGet, nil, nil, &ret, "categories"); err != nil {
		return nil, err
	}
	return ret, nil
}

// AddCategory registers a new category and returns the updated list
func (c *Client) AddCategory(ctx context.Context, name string) ([]string, error) {
	var ret []string
	body := map[string]string{"name": name}
	if _, err := c.do(ctx, http.MethodPost, nil, body, &ret, "categories"); err != nil {
		return nil, err
	}
	return ret, nil
}

// RefreshServerSnapshot makes the server download its own offline snapshot and returns the number of songs in it
func (c *Client) RefreshServerSnapshot(ctx context.Context) (int, error) {
	var res struct {
		Songs int `json:"songs"`
	}
	if _, err := c.do(ctx, http.MethodPost, url.Values{}, nil, &res, "catalog", "snapshot"); err != nil {
		return 0, err
	}
	return res.Songs, nil
}
