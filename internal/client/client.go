// Package client talks to a BhajanBook server over its HTTP API. It maps the server's error envelope back onto the
// repository error taxonomy so that the catalog façade and the playlist manager can use it as their remote store
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/derWhity/bhajanbook/internal/log"
	"github.com/derWhity/bhajanbook/internal/repos"
)

const (
	apiBasePath = "/api"
	// Must match the header the server sets on catalog searches
	catalogSourceHeader = "X-Catalog-Source"
)

// HTTPError is a client error reported by the server, like a failed validation
type HTTPError struct {
	// HTTP status of the response
	Status int
	// Machine-readable error code
	Code string
	// Human-readable message
	Message string
	// Additional information sent by the server
	Details json.RawMessage
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// envelope is the response format of every API call
type envelope struct {
	OK      bool            `json:"ok"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"errorMessage"`
	Details json.RawMessage `json:"errorDetails"`
}

// Client is a BhajanBook API client
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *logrus.Entry
}

// New creates a client for the server at the given base URL
func New(server string, timeout time.Duration, logger *logrus.Entry) (*Client, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	base, err := url.Parse(server)
	if err != nil {
		return nil, errors.Wrapf(err, "New: Illegal server address '%s'", server)
	}
	return &Client{
		base:   base,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// target builds the URL of an API resource
func (c *Client) target(query url.Values, segments ...string) *url.URL {
	u := *c.base
	u.Path = path.Join("/", c.base.Path, apiBasePath, path.Join(segments...))
	u.RawPath = ""
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return &u
}

// encodeRequest writes the request as JSON body. Nil requests are sent without body
func encodeRequest(ctx context.Context, r *http.Request, request interface{}) error {
	if request == nil {
		return nil
	}
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	return httptransport.EncodeJSONRequest(ctx, r, request)
}

// makeDecoder returns a response decoder that unpacks the envelope into result and keeps the response header
func makeDecoder(result interface{}, header *http.Header) httptransport.DecodeResponseFunc {
	return func(_ context.Context, resp *http.Response) (interface{}, error) {
		if header != nil {
			*header = resp.Header
		}
		var env envelope
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, repos.Unavailable(err, "decode: Failed to read response")
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &env); err != nil && resp.StatusCode < 300 {
				return nil, repos.Unavailable(err, "decode: Response is no valid JSON")
			}
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, errors.Wrap(repos.ErrEntityNotExisting, env.Message)
		case resp.StatusCode >= 500:
			return nil, repos.Unavailable(
				fmt.Errorf("%s: %s", env.Error, env.Message),
				fmt.Sprintf("decode: Server answered with status %d", resp.StatusCode),
			)
		case resp.StatusCode >= 300:
			return nil, &HTTPError{
				Status:  resp.StatusCode,
				Code:    env.Error,
				Message: env.Message,
				Details: env.Details,
			}
		}
		if result != nil && len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, result); err != nil {
				return nil, repos.Unavailable(err, "decode: Failed to decode response data")
			}
		}
		return result, nil
	}
}

// classify makes sure every failure is part of the repository error taxonomy. Transport failures count as an
// unavailable store
func classify(err error) error {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) || errors.Is(err, repos.ErrEntityNotExisting) || repos.IsUnavailable(err) {
		return err
	}
	return repos.Unavailable(err, "Server cannot be reached")
}

// do runs a single API call. The response data is decoded into result if it is not nil
func (c *Client) do(
	ctx context.Context,
	method string,
	query url.Values,
	request interface{},
	result interface{},
	segments ...string,
) (http.Header, error) {
	var header http.Header
	tgt := c.target(query, segments...)
	c.logger.WithFields(logrus.Fields{
		log.FldPath: tgt.Path,
		"method":    method,
	}).Debug("Calling server")
	ep := httptransport.NewClient(
		method,
		tgt,
		encodeRequest,
		makeDecoder(result, &header),
		httptransport.SetClient(c.http),
	).Endpoint()
	_, err := ep(ctx, request)
	return header, classify(err)
}
