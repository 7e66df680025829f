// Package lookup asks the upstream GraphQL endpoint where an account is
// based.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/flagged-dev/flagged/pkg/whttp"
)

const (
	DefaultEndpoint = "https://x.com/i/api/graphql"
	DefaultQueryID  = "XRqGa7EeokUU5kppkh13EA"
	operationName   = "AboutAccountQuery"
	locationPath    = "data.user_result_by_screen_name.result.about_profile.account_based_in"
	csrfCookieName  = "ct0"
)

var (
	// ErrRateLimited means the endpoint answered 429.
	ErrRateLimited = errors.New("lookup: rate limited")
	// ErrMalformed means the body was not valid JSON.
	ErrMalformed = errors.New("lookup: malformed response")
)

// StatusError is returned for any other non-2xx answer.
type StatusError struct {
	Code  int
	Title string // <title> of an HTML error page, if any
}

func (e *StatusError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("lookup: unexpected status %d (%s)", e.Code, e.Title)
	}
	return fmt.Sprintf("lookup: unexpected status %d", e.Code)
}

type Config struct {
	Endpoint    string
	QueryID     string
	BearerToken string
	// Cookie is the raw Cookie header of a logged-in session. The CSRF
	// token is taken from its ct0 value.
	Cookie  string
	Retries int
	Timeout time.Duration
	Logger  retryablehttp.LeveledLogger
}

type Client struct {
	cfg  Config
	csrf string
	http *retryablehttp.Client
}

func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.QueryID == "" {
		cfg.QueryID = DefaultQueryID
	}
	return &Client{
		cfg:  cfg,
		csrf: CSRFToken(cfg.Cookie),
		http: whttp.NewClient(cfg.Retries, cfg.Timeout, cfg.Logger),
	}
}

// CSRFToken extracts the ct0 value from a Cookie header.
func CSRFToken(cookieHeader string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name != csrfCookieName {
			continue
		}
		if v, err := url.QueryUnescape(value); err == nil {
			return v
		}
		return value
	}
	return ""
}

// QueryURL builds the GET URL for one handle.
func (c *Client) QueryURL(handle string) string {
	vars, _ := json.Marshal(map[string]string{"screenName": handle})
	return strings.TrimRight(c.cfg.Endpoint, "/") + "/" + c.cfg.QueryID + "/" + operationName +
		"?variables=" + url.QueryEscape(string(vars))
}

// Lookup returns the self-reported location of handle. A nil location with
// a nil error means the account reports none.
func (c *Client) Lookup(ctx context.Context, handle string) (*string, error) {
	req := &whttp.WHTTPReq{
		Method: http.MethodGet,
		URL:    c.QueryURL(handle),
		Headers: []whttp.WHTTPHeader{
			{Name: "Content-Type", Value: "application/json"},
			{Name: "X-Csrf-Token", Value: c.csrf},
		},
	}
	if c.cfg.BearerToken != "" {
		req.Headers = append(req.Headers, whttp.WHTTPHeader{Name: "Authorization", Value: "Bearer " + c.cfg.BearerToken})
	}
	if c.cfg.Cookie != "" {
		req.Headers = append(req.Headers, whttp.WHTTPHeader{Name: "Cookie", Value: c.cfg.Cookie})
	}

	res, err := whttp.SendHTTPRequest(ctx, req, c.http)
	if err != nil {
		return nil, err
	}

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case res.StatusCode < 200 || res.StatusCode > 299:
		return nil, &StatusError{Code: res.StatusCode, Title: res.HTTPTitle}
	}

	return ParseLocation(res.BodyString)
}

// ParseLocation pulls the location field out of a response body.
func ParseLocation(body string) (*string, error) {
	if !gjson.Valid(body) {
		return nil, ErrMalformed
	}
	v := gjson.Get(body, locationPath)
	if v.Type != gjson.String || v.Str == "" {
		return nil, nil
	}
	loc := v.Str
	return &loc, nil
}
