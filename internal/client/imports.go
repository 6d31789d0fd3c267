package client

import (
	"context"
	"net/http"

	"github.com/derWhity/bhajanbook/internal/importer"
)

// StartImport queues an import of a directory on the server
func (c *Client) StartImport(ctx context.Context, dir string) (*importer.Job, error) {
	var job importer.Job
	body := map[string]string{"dir": dir}
	if _, err := c.do(ctx, http.MethodPost, nil, body, &job, "imports"); err != nil {
		return nil, err
	}
	return &job, nil
}

// Imports returns all imports known to the server
func (c *Client) Imports(ctx context.Context) ([]importer.Job, error) {
	var ret []importer.Job
	if _, err := c.do(ctx, http.MethodGet, nil, nil, &ret, "imports"); err != nil {
		return nil, err
	}
	return ret, nil
}
