// Package remote provides an HTTP client for a taudash server.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/autoperf/taudash/internal/profile"
)

// ErrConnection is wrapped by every error caused by the transport or by an
// undecodable response.
var ErrConnection = eris.New("cannot reach taudash server")

// Login and session status values reported by the server.
const (
	StatusSucceed = "Succeed"
	StatusGood    = "Good"
)

// Client talks to a taudash server. It keeps the login session cookie, so
// one Client corresponds to one server session.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config holds configuration for creating a client.
type Config struct {
	URL           string
	APIKey        string
	AllowInsecure bool
	Timeout       time.Duration
}

// Credentials are the login form fields. Password is sent once and never
// stored.
type Credentials struct {
	Driver   string
	Host     string
	Name     string
	User     string
	Password string
}

// SessionInfo describes the database bound to the current session.
type SessionInfo struct {
	Status string `json:"status"`
	DBHost string `json:"dbhost"`
	DBName string `json:"dbname"`
	DBUser string `json:"dbuser"`
	Driver string `json:"driver"`
}

// LoggedIn reports whether the server accepted the session.
func (s SessionInfo) LoggedIn() bool { return s.Status == StatusGood }

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("server URL is required")
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("URL scheme must be http or https, got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return nil, fmt.Errorf("server URL must include a host (e.g., http://127.0.0.1:8080)")
	}

	// Plain HTTP is fine on loopback; anywhere else the database password
	// would cross the network in the clear.
	if parsedURL.Scheme == "http" && !cfg.AllowInsecure && !isLoopback(parsedURL.Hostname()) {
		return nil, fmt.Errorf("HTTPS required for remote connections\n\n" +
			"Options:\n" +
			"  1. Use HTTPS: [client] url = \"https://perfhost:8080\"\n" +
			"  2. For trusted networks: add 'allow_insecure = true' to [client] in config.toml")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an authenticated HTTP request.
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(ErrConnection, "%s %s: %v", method, path, err)
	}
	return resp, nil
}

// getJSON fetches path and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return handleErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(ErrConnection, "decode %s: %v", path, err)
	}
	return nil
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// APIError is a non-200 response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Code)
}

// handleErrorResponse reads an error response and returns an *APIError.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && (ae.Message != "" || ae.Error != "") {
		return &APIError{StatusCode: resp.StatusCode, Code: ae.Error, Message: ae.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
}

// Login binds the database described by creds to this client's session.
// It returns false, nil when the server could not open the database.
func (c *Client) Login(ctx context.Context, creds Credentials) (bool, error) {
	form := url.Values{}
	form.Set("dbhost", creds.Host)
	form.Set("dbname", creds.Name)
	form.Set("dbuser", creds.User)
	form.Set("dbpass", creds.Password)
	if creds.Driver != "" {
		form.Set("driver", creds.Driver)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/login",
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, handleErrorResponse(resp)
	}
	var lr struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return false, eris.Wrapf(ErrConnection, "decode login response: %v", err)
	}
	return lr.Status == StatusSucceed, nil
}

// LoggedIn asks the server whether this client's session is live.
func (c *Client) LoggedIn(ctx context.Context) (SessionInfo, error) {
	var info SessionInfo
	err := c.getJSON(ctx, "/api/loggedIn", &info)
	return info, err
}

// Logout ends the server session.
func (c *Client) Logout(ctx context.Context) error {
	var msg string
	return c.getJSON(ctx, "/api/logout", &msg)
}

// Applications lists application names.
func (c *Client) Applications(ctx context.Context) ([]profile.Application, error) {
	var names []string
	if err := c.getJSON(ctx, "/api/applications", &names); err != nil {
		return nil, err
	}
	apps := make([]profile.Application, 0, len(names))
	for _, n := range names {
		apps = append(apps, profile.Application{Name: n})
	}
	return apps, nil
}

// Trials lists the trials of an application in server order.
func (c *Client) Trials(ctx context.Context, appName string) ([]profile.Trial, error) {
	var o profile.Ordered
	path := "/api/trials?" + url.Values{"appName": {appName}}.Encode()
	if err := c.getJSON(ctx, path, &o); err != nil {
		return nil, err
	}
	return decoded(o.Trials())
}

// AllTrials lists every trial.
func (c *Client) AllTrials(ctx context.Context) ([]profile.Trial, error) {
	var o profile.Ordered
	if err := c.getJSON(ctx, "/api/trials", &o); err != nil {
		return nil, err
	}
	return decoded(o.Trials())
}

// Metrics lists the metrics of a trial.
func (c *Client) Metrics(ctx context.Context, trialID int64) ([]profile.Metric, error) {
	var o profile.Ordered
	if err := c.getJSON(ctx, "/api/metrics/"+strconv.FormatInt(trialID, 10), &o); err != nil {
		return nil, err
	}
	return decoded(o.Metrics())
}

// Threads lists the threads of a trial.
func (c *Client) Threads(ctx context.Context, trialID int64) ([]profile.Thread, error) {
	var o profile.Ordered
	if err := c.getJSON(ctx, "/api/threads/"+strconv.FormatInt(trialID, 10), &o); err != nil {
		return nil, err
	}
	return decoded(o.Threads())
}

// Metadata returns the primary metadata of a trial.
func (c *Client) Metadata(ctx context.Context, trialID int64) ([]profile.MetadataEntry, error) {
	var o profile.Ordered
	if err := c.getJSON(ctx, "/api/metadata/"+strconv.FormatInt(trialID, 10), &o); err != nil {
		return nil, err
	}
	return o.Metadata(), nil
}

// Profile returns timer rows. Type, offset and limit are passed through as
// given; the server applies defaults.
func (c *Client) Profile(ctx context.Context, q profile.Query) ([]profile.ProfileRow, error) {
	params := url.Values{}
	if q.Type != "" {
		params.Set("type", string(q.Type))
	}
	if q.Offset != 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit != 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	path := fmt.Sprintf("/api/profile/%d/%d", q.ThreadID, q.MetricID)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	rows := []profile.ProfileRow{}
	if err := c.getJSON(ctx, path, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// decoded converts an id-keyed object decoding failure into a connection
// error, matching how malformed responses are treated elsewhere.
func decoded[T any](v []T, err error) ([]T, error) {
	if err != nil {
		return nil, eris.Wrapf(ErrConnection, "decode response: %v", err)
	}
	if v == nil {
		v = []T{}
	}
	return v, nil
}
