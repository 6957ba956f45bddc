package riverwatchsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Riverwatch HTTP API client. Admin calls need a
// session: call Login first, and the client carries the session cookie
// on later requests.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration

	sessionCookie *http.Cookie
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Report represents the API report model.
type Report struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Latitude           *float64 `json:"latitude,omitempty"`
	Longitude          *float64 `json:"longitude,omitempty"`
	Address            string   `json:"address,omitempty"`
	ReportType         string   `json:"report_type"`
	Severity           string   `json:"severity"`
	Status             string   `json:"status"`
	ConfirmationsCount int      `json:"confirmations_count"`
	IsAnonymous        bool     `json:"is_anonymous"`
	ImageURLs          []string `json:"image_urls,omitempty"`
	AdminNotes         *string  `json:"admin_notes,omitempty"`
	LastUpdatedBy      *string  `json:"last_updated_by,omitempty"`
	CreatedAt          string   `json:"created_at"`
}

// Confirmation is the result of confirming a report.
type Confirmation struct {
	ID                 string `json:"id"`
	ReportID           string `json:"report_id"`
	UserIdentifier     string `json:"user_identifier"`
	ConfirmationsCount int    `json:"confirmations_count"`
	CreatedAt          string `json:"created_at"`
}

// AdminLog is one audit entry.
type AdminLog struct {
	ID        string         `json:"id"`
	ReportID  string         `json:"report_id"`
	Action    string         `json:"action"`
	AdminUser string         `json:"admin_user"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// AdminReport is a report with its audit entries joined in.
type AdminReport struct {
	Report
	UserName  *string    `json:"user_name,omitempty"`
	UserEmail *string    `json:"user_email,omitempty"`
	UserPhone *string    `json:"user_phone,omitempty"`
	Logs      []AdminLog `json:"logs"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedReports wraps list responses with cursors.
type PaginatedReports struct {
	Items      []Report `json:"items"`
	NextCursor string   `json:"next_cursor"`
}

// PaginatedAdminReports wraps the admin listing.
type PaginatedAdminReports struct {
	Items      []AdminReport `json:"items"`
	NextCursor string        `json:"next_cursor"`
}

// CreateReportOptions are the fields of a new report.
type CreateReportOptions struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Address     string   `json:"address,omitempty"`
	ReportType  string   `json:"report_type"`
	Severity    string   `json:"severity"`
	UserName    string   `json:"user_name,omitempty"`
	UserEmail   string   `json:"user_email,omitempty"`
	UserPhone   string   `json:"user_phone,omitempty"`
	IsAnonymous *bool    `json:"is_anonymous,omitempty"`
	ImageURLs   []string `json:"image_urls,omitempty"`
}

// CreateReport submits a report.
func (c *Client) CreateReport(ctx context.Context, opts CreateReportOptions) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodPost, "v1/reports", opts, &resp)
	return resp, err
}

// GetReport fetches a report by id.
func (c *Client) GetReport(ctx context.Context, id string) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodGet, "v1/reports/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListReports returns a page of reports.
func (c *Client) ListReports(ctx context.Context, limit int, cursor string) (PaginatedReports, error) {
	endpoint := "v1/reports"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedReports
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Confirm records a confirmation of a report.
func (c *Client) Confirm(ctx context.Context, reportID, userIdentifier string) (Confirmation, error) {
	body := map[string]any{
		"report_id":       reportID,
		"user_identifier": userIdentifier,
	}
	var resp Confirmation
	err := c.do(ctx, http.MethodPost, "v1/confirmations", body, &resp)
	return resp, err
}

// Login starts an admin session. The session cookie is kept on the
// client for later admin calls.
func (c *Client) Login(ctx context.Context, password string) error {
	body := map[string]any{"password": password}
	resp, err := c.doRaw(ctx, http.MethodPost, "v1/admin/auth", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "admin_session" {
			c.sessionCookie = cookie
			return nil
		}
	}
	return fmt.Errorf("login response missing session cookie")
}

// Logout drops the admin session.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "v1/admin/auth/logout", nil, nil)
	c.sessionCookie = nil
	return err
}

// ListAdminReports returns the admin listing with audit trails.
func (c *Client) ListAdminReports(ctx context.Context, limit int, cursor string) (PaginatedAdminReports, error) {
	endpoint := "v1/admin/reports"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedAdminReports
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UpdateReport applies an admin update to a report.
func (c *Client) UpdateReport(ctx context.Context, reportID string, status, adminNotes *string) (AdminReport, error) {
	updates := map[string]any{}
	if status != nil {
		updates["status"] = *status
	}
	if adminNotes != nil {
		updates["admin_notes"] = *adminNotes
	}
	body := map[string]any{
		"reportId": reportID,
		"updates":  updates,
	}
	var resp AdminReport
	err := c.do(ctx, http.MethodPatch, "v1/admin/reports", body, &resp)
	return resp, err
}

// DeleteReport removes a report. Requires an admin session.
func (c *Client) DeleteReport(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v1/reports/"+url.PathEscape(id), nil, nil)
}

// ListLogs returns audit entries.
func (c *Client) ListLogs(ctx context.Context, reportID string, limit int) ([]AdminLog, error) {
	endpoint := "v1/admin/logs"
	params := url.Values{}
	if reportID != "" {
		params.Set("report_id", reportID)
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var resp struct {
		Items []AdminLog `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	resp, err := c.doRaw(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionCookie != nil {
		req.AddCookie(c.sessionCookie)
	}
	return c.HTTPClient.Do(req)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
