// Package bufferclient is a typed client for the Buffer API operations the
// edge proxy exposes. It talks either to Buffer directly or through the proxy.
package bufferclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"example.com/bufferproxy/internal/logger"
	"example.com/bufferproxy/internal/models"
)

const DefaultBaseURL = "https://api.bufferapp.com/1"

const (
	defaultPage  = 1
	defaultCount = 20
)

var logg = logger.New()

// Mode selects the wire target of a Client.
type Mode int

const (
	// Direct calls the Buffer API and appends .json to endpoint paths.
	Direct Mode = iota
	// Proxied calls the edge router, which maps bare paths onto Buffer endpoints.
	Proxied
)

func (m Mode) String() string {
	if m == Proxied {
		return "proxied"
	}
	return "direct"
}

// Client is safe for concurrent use.
type Client struct {
	mode    Mode
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBaseURL overrides the target base URL.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// NewDirect returns a client calling the Buffer API with token.
func NewDirect(token string, opts ...Option) *Client {
	return newClient(Direct, DefaultBaseURL, token, opts)
}

// NewProxied returns a client calling the edge router mounted at baseURL
// (e.g. "https://example.com/api/buffer"). token may be empty when the proxy
// holds a fallback credential.
func NewProxied(baseURL, token string, opts ...Option) *Client {
	return newClient(Proxied, baseURL, token, opts)
}

func newClient(mode Mode, base, token string, opts []Option) *Client {
	c := &Client{
		mode:    mode,
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode reports the wire target chosen at construction.
func (c *Client) Mode() Mode { return c.mode }

// GetUser returns the account behind the token. Useful to validate a token.
func (c *Client) GetUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/user", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProfiles lists the connected social profiles.
func (c *Client) GetProfiles(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	if err := c.do(ctx, http.MethodGet, "/profiles", nil, nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetPendingUpdates lists queued updates. Non-positive page/count use 1/20.
func (c *Client) GetPendingUpdates(ctx context.Context, profileID string, page, count int) (*models.UpdatesList, error) {
	return c.listUpdates(ctx, profileID, "pending", page, count)
}

// GetSentUpdates lists already sent updates. Non-positive page/count use 1/20.
func (c *Client) GetSentUpdates(ctx context.Context, profileID string, page, count int) (*models.UpdatesList, error) {
	return c.listUpdates(ctx, profileID, "sent", page, count)
}

func (c *Client) listUpdates(ctx context.Context, profileID, kind string, page, count int) (*models.UpdatesList, error) {
	if page <= 0 {
		page = defaultPage
	}
	if count <= 0 {
		count = defaultCount
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("count", strconv.Itoa(count))

	var list models.UpdatesList
	path := "/profiles/" + url.PathEscape(profileID) + "/updates/" + kind
	if err := c.do(ctx, http.MethodGet, path, query, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// CreateUpdate schedules (or, with Now, sends) an update on every profile in opts.
func (c *Client) CreateUpdate(ctx context.Context, opts models.CreateUpdateOptions) (*models.UpdateResponse, error) {
	var resp models.UpdateResponse
	if err := c.do(ctx, http.MethodPost, "/updates/create", nil, EncodeCreateUpdate(opts), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ShuffleUpdates randomises the order of a profile's queue.
func (c *Client) ShuffleUpdates(ctx context.Context, profileID string) (*models.ShuffleResponse, error) {
	var resp models.ShuffleResponse
	path := "/profiles/" + url.PathEscape(profileID) + "/updates/shuffle"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EncodeCreateUpdate serialises opts as the form Buffer expects.
func EncodeCreateUpdate(opts models.CreateUpdateOptions) url.Values {
	form := url.Values{}
	form.Set("text", opts.Text)
	for _, id := range opts.ProfileIDs {
		form.Add("profile_ids[]", id)
	}
	if opts.Now {
		form.Set("now", "true")
	}
	if opts.Top {
		form.Set("top", "true")
	}
	if opts.ScheduledAt != "" {
		form.Set("scheduled_at", opts.ScheduledAt)
	}
	if m := opts.Media; m != nil {
		for key, value := range map[string]string{
			"media[link]":        m.Link,
			"media[description]": m.Description,
			"media[title]":       m.Title,
			"media[picture]":     m.Picture,
			"media[thumbnail]":   m.Thumbnail,
		} {
			if value != "" {
				form.Set(key, value)
			}
		}
	}
	return form
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if c.mode == Direct {
		u += ".json"
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do performs one request. A nil form sends no body.
func (c *Client) do(ctx context.Context, method, path string, query, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("buffer %s %s: build request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logg.Error("bufferclient", "Buffer API request failed ["+path+"]", err)
		return fmt.Errorf("buffer %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp)
		logg.Error("bufferclient", "Buffer API request failed ["+path+"]", apiErr)
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("buffer %s %s: decode response: %w", method, path, err)
	}
	return nil
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return e.Message }

func newAPIError(resp *http.Response) *APIError {
	var body struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: body.Message}
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("Buffer API Error: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
