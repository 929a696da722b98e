// Package tickettailor is the upstream box office API client.
package tickettailor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/neomorfeo/boxsync/internal/domain"
)

const (
	DefaultBaseURL  = "https://api.tickettailor.com/v1"
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 100
	DefaultMaxPages = 100

	maxBodyBytes  = 32 << 20
	maxErrorBytes = 64 << 10
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	PageSize          int
	MaxPages          int
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client talks to the upstream REST API with one tenant's key. Each request
// authenticates with HTTP Basic using the key as username.
type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	pageSize int
	maxPages int
}

// New creates a client for apiKey.
func New(apiKey string, opts Options) *Client {
	c := &Client{
		apiKey:   strings.TrimSpace(apiKey),
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     opts.HTTPClient,
		pageSize: opts.PageSize,
		maxPages: opts.MaxPages,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.pageSize <= 0 || c.pageSize > DefaultPageSize {
		c.pageSize = DefaultPageSize
	}
	if c.maxPages <= 0 {
		c.maxPages = DefaultMaxPages
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// Page is one page of a list endpoint.
type Page struct {
	Items []json.RawMessage
	// NextCursor is the ID of the last item, set only when HasNext is true.
	NextCursor string
	HasNext    bool
}

type listEnvelope struct {
	Data  []json.RawMessage `json:"data"`
	Links struct {
		Next *string `json:"next"`
	} `json:"links"`
}

// FetchPage fetches one page of resource starting after cursor.
func (c *Client) FetchPage(ctx context.Context, resource, cursor string) (Page, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		params.Set("starting_after", cursor)
	}

	var env listEnvelope
	if err := c.get(ctx, resource, params, &env); err != nil {
		return Page{}, err
	}

	page := Page{Items: env.Data}
	if env.Links.Next != nil && *env.Links.Next != "" && len(env.Data) > 0 {
		page.HasNext = true
		page.NextCursor = itemID(env.Data[len(env.Data)-1])
	}
	return page, nil
}

// FetchAll follows the cursor until the listing ends. It fails with
// domain.ErrPageLimitExceeded instead of truncating when the listing does
// not end within MaxPages pages.
func (c *Client) FetchAll(ctx context.Context, resource string) ([]json.RawMessage, error) {
	var all []json.RawMessage
	cursor := ""

	for range c.maxPages {
		page, err := c.FetchPage(ctx, resource, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if !page.HasNext {
			return all, nil
		}
		if page.NextCursor == "" {
			return nil, &APIError{Message: fmt.Sprintf("cannot paginate %s: last item has no id", resource)}
		}
		cursor = page.NextCursor
	}

	return nil, &APIError{
		Message: fmt.Sprintf("%s: more than %d pages", resource, c.maxPages),
		Err:     domain.ErrPageLimitExceeded,
	}
}

type overviewResponse struct {
	BoxOfficeName string `json:"box_office_name"`
	Currency      struct {
		Code string `json:"code"`
	} `json:"currency"`
}

// Overview returns the account summary. It doubles as credential validation.
func (c *Client) Overview(ctx context.Context) (domain.AccountOverview, error) {
	var resp overviewResponse
	if err := c.get(ctx, "overview", nil, &resp); err != nil {
		return domain.AccountOverview{}, err
	}
	return domain.AccountOverview{
		BoxOfficeName: resp.BoxOfficeName,
		Currency:      strings.ToLower(resp.Currency.Code),
	}, nil
}

// Ping checks connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "ping", nil, nil)
}

func (c *Client) get(ctx context.Context, resource string, params url.Values, out any) error {
	if c.apiKey == "" {
		return domain.ErrMissingAPIKey
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return transportError(err)
		}
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(resource, "/")
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("building request: %v", err), Err: err}
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp.StatusCode, readErrorMessage(resp.Body))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBytes))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return transportError(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("invalid JSON response: %v", err), Err: err}
	}
	return nil
}

// readErrorMessage extracts the upstream "message" field from an error body.
func readErrorMessage(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBytes))
	if err != nil || len(body) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	return payload.Message
}

func itemID(raw json.RawMessage) string {
	var item struct {
		ID flexString `json:"id"`
	}
	if json.Unmarshal(raw, &item) != nil {
		return ""
	}
	return string(item.ID)
}
